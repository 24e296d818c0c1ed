package cms

import (
	"crypto"
	"crypto/x509"
	"encoding/asn1"

	"github.com/digitorus/pkcs7"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidSigningCertificate   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 12}
	oidSigningCertificateV2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47}
)

// signingCertificateAttribute binds the signer certificate to the signature
// (RFC 5035). SHA-1 uses the original ESS SigningCertificate, anything else
// SigningCertificateV2 where SHA-256 is the implied default algorithm.
func signingCertificateAttribute(cert *x509.Certificate, hash crypto.Hash) (*pkcs7.Attribute, error) {
	h := hash.New()
	h.Write(cert.Raw)

	var b cryptobyte.Builder
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // SigningCertificate
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // []ESSCertID, []ESSCertIDv2
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // ESSCertID, ESSCertIDv2
				if hash != crypto.SHA1 && hash != crypto.SHA256 {
					b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // AlgorithmIdentifier
						b.AddASN1ObjectIdentifier(getOIDFromHashAlgorithm(hash))
					})
				}
				b.AddASN1OctetString(h.Sum(nil)) // certHash
			})
		})
	})

	sse, err := b.Bytes()
	if err != nil {
		return nil, err
	}

	attr := pkcs7.Attribute{
		Type:  oidSigningCertificateV2,
		Value: asn1.RawValue{FullBytes: sse},
	}
	if hash == crypto.SHA1 {
		attr.Type = oidSigningCertificate
	}
	return &attr, nil
}
