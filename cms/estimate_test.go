package cms

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/digitorus/pdfseal/internal/testpki"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate_LengthIndependence(t *testing.T) {
	pki := testpki.NewTestPKI(t)
	key, chain := pki.SignerChain("Estimator")

	for _, digest := range []string{DigestSHA1, DigestSHA256, DigestSHA512} {
		t.Run(digest, func(t *testing.T) {
			first, err := Estimate(Detached{}, key, chain, digest)
			require.NoError(t, err)
			second, err := Estimate(Detached{}, key, chain, digest)
			require.NoError(t, err)
			assert.Equal(t, first, second)

			inputs := [][]byte{
				[]byte("a"),
				bytes.Repeat([]byte{0xff}, BufferSize+1),
				bytes.Repeat([]byte("document bytes"), 50000),
			}
			for _, in := range inputs {
				blob, err := Sign(bytes.NewReader(in), key, chain, digest)
				require.NoError(t, err)
				assert.Len(t, blob, first, "input of %d bytes", len(in))
			}
		})
	}
}

func TestEstimate_ECDSAUpperBound(t *testing.T) {
	pki := testpki.NewTestPKIWithConfig(t, testpki.TestPKIConfig{Profile: testpki.ECDSA_P256, IntermediateCAs: 1})
	key, chain := pki.SignerChain("ECDSA Estimator")

	size, err := Estimate(Detached{}, key, chain, DigestSHA256)
	require.NoError(t, err)

	for i := 0; i < 32; i++ {
		blob, err := Sign(strings.NewReader(strings.Repeat("x", i+1)), key, chain, DigestSHA256)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(blob), size)
	}
}

func TestEstimate_Errors(t *testing.T) {
	pki := testpki.NewTestPKI(t)
	key, chain := pki.SignerChain("Estimator Errors")

	_, err := Estimate(Detached{}, key, chain, "")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

	_, err = Estimate(Detached{}, key, nil, DigestSHA256)
	assert.ErrorIs(t, err, ErrEmptyChain)

	boom := errors.New("boom")
	_, err = Estimate(failingEngine{boom}, key, chain, DigestSHA256)
	assert.ErrorIs(t, err, boom)
}

type failingEngine struct{ err error }

func (f failingEngine) Sign(io.Reader, crypto.Signer, []*x509.Certificate, string) ([]byte, error) {
	return nil, f.err
}
