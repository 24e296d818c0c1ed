package verify

import "errors"

var (
	// ErrNoSignature is returned for documents without signature fields.
	ErrNoSignature = errors.New("no digital signature in document")
	// ErrByteRangeCoverage is reported for a /ByteRange that is malformed or
	// does not exclude exactly the /Contents value.
	ErrByteRangeCoverage = errors.New("byte range does not match the signature placeholder")
)

// InvalidSignatureError indicates that the cryptographic signature
// verification failed.
type InvalidSignatureError struct {
	Msg string
	Err error
}

func (e *InvalidSignatureError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *InvalidSignatureError) Unwrap() error {
	return e.Err
}
