// Package cms produces the PKCS#7/CMS SignedData blobs embedded in signed
// PDF documents and predicts how large they will be.
package cms

import (
	"bytes"
	"crypto"
	"crypto/sha1"
	"crypto/x509"
	"errors"
	"fmt"
	"io"

	"github.com/digitorus/pkcs7"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// BufferSize is the chunk size used to drain signing input streams.
const BufferSize = 2048

// Engine produces a DER encoded SignedData over everything read from r.
type Engine interface {
	Sign(r io.Reader, key crypto.Signer, chain []*x509.Certificate, digestName string) ([]byte, error)
}

// Detached is the Engine used for adbe.pkcs7.detached signatures: the
// SignedData carries the signer chain and a signature over signed
// attributes holding the content digest, but not the content itself.
type Detached struct{}

// Sign implements Engine.
func (Detached) Sign(r io.Reader, key crypto.Signer, chain []*x509.Certificate, digestName string) ([]byte, error) {
	hash, oid, err := Lookup(digestName)
	if err != nil {
		return nil, err
	}
	if err := checkSigner(key, chain); err != nil {
		return nil, err
	}

	content, err := drain(r)
	if err != nil {
		return nil, fmt.Errorf("read signing input: %w", err)
	}

	// pkcs7 needs every byte to sign in memory.
	signedData, err := pkcs7.NewSignedData(content)
	if err != nil {
		return nil, fmt.Errorf("new signed data: %w", err)
	}
	signedData.SetDigestAlgorithm(oid)

	signingCertificate, err := signingCertificateAttribute(chain[0], hash)
	if err != nil {
		return nil, fmt.Errorf("signing certificate attribute: %w", err)
	}

	config := pkcs7.SignerInfoConfig{
		ExtraSignedAttributes: []pkcs7.Attribute{*signingCertificate},
	}
	if err := signedData.AddSignerChain(chain[0], key, chain[1:], config); err != nil {
		return nil, fmt.Errorf("add signer chain: %w", err)
	}

	// PDF needs a detached signature, meaning the content isn't included.
	signedData.Detach()

	return signedData.Finish()
}

// Sign signs r with the Detached engine.
func Sign(r io.Reader, key crypto.Signer, chain []*x509.Certificate, digestName string) ([]byte, error) {
	return Detached{}.Sign(r, key, chain, digestName)
}

// SealDigest produces the SignedData used by the legacy adbe.pkcs7.sha1
// sub filter: the SHA-1 digest of r is the encapsulated content and the
// structure is not detached.
func SealDigest(r io.Reader, key crypto.Signer, chain []*x509.Certificate) ([]byte, error) {
	if err := checkSigner(key, chain); err != nil {
		return nil, err
	}

	h := sha1.New()
	buf := make([]byte, BufferSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return nil, fmt.Errorf("read signing input: %w", err)
	}

	signedData, err := pkcs7.NewSignedData(h.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("new signed data: %w", err)
	}
	signedData.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA1)

	if err := signedData.AddSignerChain(chain[0], key, chain[1:], pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("add signer chain: %w", err)
	}

	return signedData.Finish()
}

// TrimPadding returns the leading DER element of blob, dropping the zero
// bytes a signature placeholder is padded with.
func TrimPadding(blob []byte) ([]byte, error) {
	var element cryptobyte.String
	input := cryptobyte.String(blob)
	if !input.ReadASN1Element(&element, cryptobyte_asn1.SEQUENCE) {
		return nil, errors.New("signature does not start with a DER sequence")
	}
	for _, b := range input {
		if b != 0 {
			return nil, errors.New("non-zero bytes after signature")
		}
	}
	return element, nil
}

func checkSigner(key crypto.Signer, chain []*x509.Certificate) error {
	if key == nil {
		return ErrNilSigner
	}
	if len(chain) == 0 || chain[0] == nil {
		return ErrEmptyChain
	}
	return ValidateSignerCertificateMatch(key, chain[0])
}

func drain(r io.Reader) ([]byte, error) {
	var content bytes.Buffer
	buf := make([]byte, BufferSize)
	for {
		n, err := r.Read(buf)
		content.Write(buf[:n])
		if err == io.EOF {
			return content.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
