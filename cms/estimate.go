package cms

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/x509"
	"fmt"

	"github.com/digitorus/pkcs7"
)

// probe is the throw-away content signed to learn the signature size. A
// detached signature's length does not depend on the content it covers.
var probe = []byte("fake")

// derSlack covers the length octets of enclosing DER structures growing
// when an ECDSA signature is longer than the probe's.
const derSlack = 8

// Estimate signs a fixed probe with the given engine, key, chain and digest
// and returns the length of the result. The same inputs must be used for
// the real signature.
//
// RSA and Ed25519 signatures have a fixed size so the probe length is exact.
// ECDSA signatures are DER integers whose length varies by a few bytes, so
// for those keys the estimate is padded up to the largest encoding.
func Estimate(e Engine, key crypto.Signer, chain []*x509.Certificate, digestName string) (int, error) {
	if _, _, err := Lookup(digestName); err != nil {
		return 0, err
	}
	if err := checkSigner(key, chain); err != nil {
		return 0, err
	}

	blob, err := e.Sign(bytes.NewReader(probe), key, chain, digestName)
	if err != nil {
		return 0, fmt.Errorf("sign probe: %w", err)
	}
	size := len(blob)

	pub, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return size, nil
	}

	max, err := PublicKeySignatureSize(pub)
	if err != nil {
		return 0, err
	}
	p7, err := pkcs7.Parse(blob)
	if err != nil {
		return 0, fmt.Errorf("parse probe signature: %w", err)
	}
	if len(p7.Signers) == 0 {
		return 0, fmt.Errorf("probe signature has no signer")
	}
	if headroom := max - len(p7.Signers[0].EncryptedDigest); headroom > 0 {
		size += headroom
	}
	return size + derSlack, nil
}
