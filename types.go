package pdfseal

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"strconv"
	"strings"

	"github.com/digitorus/pdfseal/sign"
)

// SignatureMethod selects how the signature is embedded in the document.
type SignatureMethod int

const (
	// SignatureField signs in one pass with a legacy SHA-1 digest embedded
	// in the SignedData (adbe.pkcs7.sha1).
	SignatureField SignatureMethod = iota + 1

	// PKCS7Object reserves a placeholder sized by a probe signature and
	// embeds a detached SignedData (adbe.pkcs7.detached).
	PKCS7Object
)

// String returns the method tag.
func (m SignatureMethod) String() string {
	switch m {
	case SignatureField:
		return "SIGNATURE_FIELD"
	case PKCS7Object:
		return "PKCS7_OBJECT"
	default:
		return "SignatureMethod(" + strconv.Itoa(int(m)) + ")"
	}
}

// SignatureType is one member of the closed set of supported signature
// encodings. ID is stable and may be persisted.
type SignatureType struct {
	ID            int
	Name          string
	HashAlgorithm string
	Method        SignatureMethod
	Description   string
}

var (
	SignatureFieldSHA1 = SignatureType{
		ID:          0,
		Name:        "SIGNATURE_FIELD_SHA1",
		Method:      SignatureField,
		Description: "A pdf signature field with SHA-1 hash algorithm.",
	}
	// PKCS7ObjectMD5 is listed for compatibility with existing type ids but
	// cannot sign: the CMS engine has no MD5 digest, so Sign fails with
	// AlgorithmUnsupported before any file is written.
	PKCS7ObjectMD5 = SignatureType{
		ID:            1,
		Name:          "PKCS7_OBJECT_MD5",
		HashAlgorithm: "MD5",
		Method:        PKCS7Object,
		Description:   "A pdf PKCS7 object with MD5 hash algorithm.",
	}
	PKCS7ObjectSHA1 = SignatureType{
		ID:            2,
		Name:          "PKCS7_OBJECT_SHA1",
		HashAlgorithm: "SHA-1",
		Method:        PKCS7Object,
		Description:   "A pdf PKCS7 object with SHA-1 hash algorithm.",
	}
	PKCS7ObjectSHA256 = SignatureType{
		ID:            3,
		Name:          "PKCS7_OBJECT_SHA256",
		HashAlgorithm: "SHA-256",
		Method:        PKCS7Object,
		Description:   "A pdf PKCS7 object with SHA-256 hash algorithm.",
	}
	PKCS7ObjectSHA512 = SignatureType{
		ID:            4,
		Name:          "PKCS7_OBJECT_SHA512",
		HashAlgorithm: "SHA-512",
		Method:        PKCS7Object,
		Description:   "A pdf PKCS7 object with SHA-512 hash algorithm.",
	}
)

var signatureTypes = []SignatureType{
	SignatureFieldSHA1,
	PKCS7ObjectMD5,
	PKCS7ObjectSHA1,
	PKCS7ObjectSHA256,
	PKCS7ObjectSHA512,
}

// SignatureTypes returns every registered signature type ordered by ID.
func SignatureTypes() []SignatureType {
	return append([]SignatureType(nil), signatureTypes...)
}

// SignatureTypeByID returns the registered signature type with the given id.
func SignatureTypeByID(id int) (SignatureType, error) {
	for _, t := range signatureTypes {
		if t.ID == id {
			return t, nil
		}
	}
	return SignatureType{}, fmt.Errorf("unknown signature type id %d", id)
}

// ParseSignatureType accepts a registered name, case-insensitive, or a
// numeric id.
func ParseSignatureType(s string) (SignatureType, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		return SignatureTypeByID(id)
	}
	for _, t := range signatureTypes {
		if strings.EqualFold(t.Name, s) {
			return t, nil
		}
	}
	return SignatureType{}, fmt.Errorf("unknown signature type %q", s)
}

// Validate checks the hash algorithm name against the method: PKCS7Object
// types need one, the SignatureField type must not carry one.
func (t SignatureType) Validate() error {
	switch t.Method {
	case PKCS7Object:
		if t.HashAlgorithm == "" {
			return fmt.Errorf("signature type %s has no hash algorithm", t.Name)
		}
	case SignatureField:
		if t.HashAlgorithm != "" {
			return fmt.Errorf("signature type %s must not carry a hash algorithm", t.Name)
		}
	default:
		return fmt.Errorf("signature type %s has unknown method %s", t.Name, t.Method)
	}
	return nil
}

func (t SignatureType) String() string { return t.Name }

// Rectangle is the visible signature area in default user space units.
type Rectangle = sign.Rectangle

// SigningRequest describes one signing operation. The key and chain are
// only read.
type SigningRequest struct {
	SourcePath      string
	DestinationPath string
	// AppendSuffix inserts "_signed" before the last four characters of
	// DestinationPath.
	AppendSuffix bool

	// CertificateChain starts with the signer certificate.
	CertificateChain []*x509.Certificate
	PrivateKey       crypto.Signer
	SignatureType    SignatureType

	Reason   string
	Location string
	// Contact is written to /ContactInfo, the signer common name when
	// empty.
	Contact string

	Visible   bool
	Rectangle *Rectangle
	// Page is the 1-based page of the visible signature, 1 when zero.
	Page int
}

// Result describes a signed document.
type Result struct {
	OperationID   string
	Destination   string
	SignatureType SignatureType
	// PlaceholderSize is the length of the /Contents hex string, brackets
	// included.
	PlaceholderSize int
	// SignatureSize is the length of the SignedData before padding.
	SignatureSize int
	ByteRange     sign.ByteRangeMap
}
