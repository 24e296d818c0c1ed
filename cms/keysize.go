package cms

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/digitorus/pkcs7"
)

var (
	ErrNilSigner      = errors.New("signer cannot be nil")
	ErrNilPublicKey   = errors.New("public key cannot be nil")
	ErrEmptyChain     = errors.New("certificate chain cannot be empty")
	ErrUnsupportedKey = errors.New("unsupported key type")
	ErrKeyMismatch    = errors.New("signer public key does not match certificate")
)

// DefaultSignatureSize is the fallback raw signature size for unrecognized key types.
const DefaultSignatureSize = 8192

// PublicKeySignatureSize returns the maximum raw signature size for a public key.
// Do not use Certificate.SignatureAlgorithm for this, that is how the CA signed
// the certificate and says nothing about signatures this key produces.
func PublicKeySignatureSize(pub crypto.PublicKey) (int, error) {
	if pub == nil {
		return 0, ErrNilPublicKey
	}

	switch k := pub.(type) {
	case *rsa.PublicKey:
		if k.N == nil {
			return 0, fmt.Errorf("%w: RSA key has nil modulus", ErrUnsupportedKey)
		}
		return k.Size(), nil

	case *ecdsa.PublicKey:
		if k.Curve == nil {
			return 0, fmt.Errorf("%w: ECDSA key has nil curve", ErrUnsupportedKey)
		}
		// SEQUENCE { r INTEGER, s INTEGER } per RFC 3279 section 2.2.3:
		// two coordinates plus tag/length bytes and a possible sign byte each.
		coordSize := (k.Curve.Params().BitSize + 7) / 8
		return 2*coordSize + 9, nil

	case ed25519.PublicKey:
		return ed25519.SignatureSize, nil

	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	}
}

// ValidateSignerCertificateMatch checks that the signer's public key matches the certificate.
func ValidateSignerCertificateMatch(signer crypto.Signer, cert *x509.Certificate) error {
	if signer == nil {
		return ErrNilSigner
	}
	if cert == nil {
		return ErrEmptyChain
	}

	signerPub := signer.Public()
	if signerPub == nil {
		return ErrNilPublicKey
	}

	signerPubBytes, err := x509.MarshalPKIXPublicKey(signerPub)
	if err != nil {
		return fmt.Errorf("failed to marshal signer public key: %w", err)
	}

	certPubBytes, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to marshal certificate public key: %w", err)
	}

	if !bytes.Equal(signerPubBytes, certPubBytes) {
		return ErrKeyMismatch
	}
	return nil
}

// HeuristicSize predicts an upper bound for a SignedData blob without
// signing anything. It adds the raw signature size, the digest twice (file
// digest and signing certificate attribute), every certificate in its
// degenerate form and the issuer name on top of a fixed base for the
// structure and the remaining attributes.
func HeuristicSize(chain []*x509.Certificate, hash crypto.Hash) (int, error) {
	if len(chain) == 0 || chain[0] == nil {
		return 0, ErrEmptyChain
	}

	size := 512

	sigSize, err := PublicKeySignatureSize(chain[0].PublicKey)
	if err != nil {
		sigSize = DefaultSignatureSize
	}
	size += sigSize
	size += hash.Size() * 2
	size += len(chain[0].RawIssuer)

	for _, cert := range chain {
		degenerated, err := pkcs7.DegenerateCertificate(cert.Raw)
		if err != nil {
			return 0, fmt.Errorf("failed to degenerate certificate: %w", err)
		}
		size += len(degenerated)
	}

	return size, nil
}
