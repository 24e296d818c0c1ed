package verify

import (
	"crypto/x509"
	"time"

	"github.com/digitorus/pdfseal/sign"
)

// Response is the result of verifying a document.
type Response struct {
	DocumentInfo DocumentInfo
	Signers      []Signer
}

// Valid reports whether the document has at least one signature and every
// signature verified.
func (r *Response) Valid() bool {
	if r == nil || len(r.Signers) == 0 {
		return false
	}
	for _, s := range r.Signers {
		if !s.ValidSignature {
			return false
		}
	}
	return true
}

// Signer describes one signature field.
type Signer struct {
	Field       string
	Name        string
	Reason      string
	Location    string
	ContactInfo string
	// SigningTime is the /M entry of the signature dictionary as claimed by
	// the signer.
	SigningTime *time.Time
	SubFilter   string
	ByteRange   sign.ByteRangeMap

	// CoversWholeDocument is false for signatures followed by later
	// incremental updates.
	CoversWholeDocument bool

	// Certificate is the signer certificate embedded in the SignedData.
	Certificate  *x509.Certificate
	Certificates []*x509.Certificate

	ValidSignature bool
	// Err is the first problem found with the signature.
	Err error
}

// DocumentInfo contains document information.
type DocumentInfo struct {
	Author   string
	Creator  string
	Producer string
	Subject  string
	Title    string

	Pages        int
	Keywords     []string
	ModDate      time.Time
	CreationDate time.Time
}
