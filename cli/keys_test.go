package cli

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/digitorus/pdfseal/internal/testpki"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCertificatesAndKey(t *testing.T) {
	dir := t.TempDir()
	pki := testpki.NewTestPKI(t)
	key, chain := pki.SignerChain("Loader")
	files := testpki.WritePEM(t, dir, key, chain)

	signer, loaded, err := LoadCertificatesAndKey(files.Cert, files.Key, "")
	require.NoError(t, err)
	assert.IsType(t, &rsa.PrivateKey{}, signer)
	require.Len(t, loaded, 1)
	assert.Equal(t, chain[0].Raw, loaded[0].Raw)

	_, loaded, err = LoadCertificatesAndKey(files.Cert, files.Key, files.Chain)
	require.NoError(t, err)
	require.Len(t, loaded, len(chain))
	for i := range chain {
		assert.Equal(t, chain[i].Raw, loaded[i].Raw)
	}

	_, _, err = LoadCertificatesAndKey(filepath.Join(dir, "nonexistent"), files.Key, "")
	assert.Error(t, err)
	_, _, err = LoadCertificatesAndKey(files.Cert, filepath.Join(dir, "nonexistent"), "")
	assert.Error(t, err)
	_, _, err = LoadCertificatesAndKey(files.Cert, files.Key, filepath.Join(dir, "nonexistent"))
	assert.Error(t, err)

	// Certificates of another hierarchy do not chain the leaf.
	other := testpki.NewTestPKI(t)
	foreign := filepath.Join(dir, "foreign.crt")
	require.NoError(t, os.WriteFile(foreign, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: other.RootCert.Raw}), 0600))
	_, _, err = LoadCertificatesAndKey(files.Cert, files.Key, foreign)
	assert.Error(t, err)

	// An intermediate alone is not a trust anchor.
	partial := filepath.Join(dir, "partial.crt")
	require.NoError(t, os.WriteFile(partial, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: pki.IntermediateCerts[0].Raw}), 0600))
	_, _, err = LoadCertificatesAndKey(files.Cert, files.Key, partial)
	assert.Error(t, err)
}

func TestLoadCertificatesAndKey_Formats(t *testing.T) {
	dir := t.TempDir()
	pki := testpki.NewTestPKIWithConfig(t, testpki.TestPKIConfig{Profile: testpki.ECDSA_P384, IntermediateCAs: 1})
	key, chain := pki.SignerChain("EC Loader")

	// DER certificate and SEC 1 EC key.
	certPath := filepath.Join(dir, "signer.der")
	require.NoError(t, os.WriteFile(certPath, chain[0].Raw, 0600))
	ecDER, err := x509.MarshalECPrivateKey(key.(*ecdsa.PrivateKey))
	require.NoError(t, err)
	keyPath := filepath.Join(dir, "signer.key")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: ecDER}), 0600))

	signer, loaded, err := LoadCertificatesAndKey(certPath, keyPath, "")
	require.NoError(t, err)
	assert.IsType(t, &ecdsa.PrivateKey{}, signer)
	assert.Equal(t, chain[0].Raw, loaded[0].Raw)

	// PKCS#1 RSA key.
	rsaKey := testpki.GenerateKey(t, testpki.RSA_2048).(*rsa.PrivateKey)
	rsaPath := filepath.Join(dir, "rsa.key")
	require.NoError(t, os.WriteFile(rsaPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)}), 0600))
	signer, err = parsePrivateKey(mustRead(t, rsaPath))
	require.NoError(t, err)
	assert.IsType(t, &rsa.PrivateKey{}, signer)

	_, err = parsePrivateKey([]byte("garbage"))
	assert.Error(t, err)
	_, err = parseCertificate(nil)
	assert.Error(t, err)
}

func TestLoadPKCS12(t *testing.T) {
	dir := t.TempDir()
	key, chain := testpki.NewTestPKI(t).SignerChain("Keystore")
	files := testpki.WritePKCS12(t, dir, "secret", key, chain)

	signer, loaded, err := LoadPKCS12(files.P12, "secret")
	require.NoError(t, err)
	assert.NotNil(t, signer)
	require.Len(t, loaded, len(chain))
	assert.Equal(t, chain[0].Raw, loaded[0].Raw)

	_, _, err = LoadPKCS12(files.P12, "wrong")
	assert.Error(t, err)
	_, _, err = LoadPKCS12(filepath.Join(dir, "missing.p12"), "secret")
	assert.Error(t, err)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
