package pdfseal

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// ErrorKind classifies signing failures.
type ErrorKind int

const (
	// InvalidArgument is an empty path or an otherwise unusable request.
	InvalidArgument ErrorKind = iota + 1
	// SourceNotFound means the source path does not name an existing file.
	SourceNotFound
	// AlgorithmUnsupported is an empty or unknown hash algorithm name.
	AlgorithmUnsupported
	// VisibleSignatureMisconfigured is reported as a warning only, the
	// document is signed without an appearance.
	VisibleSignatureMisconfigured
	// SizeOverflow means the signature did not fit the reserved placeholder.
	SizeOverflow
	SigningFailure
	IOFailure
)

var kindNames = map[ErrorKind]string{
	InvalidArgument:               "invalid argument",
	SourceNotFound:                "source not found",
	AlgorithmUnsupported:          "algorithm unsupported",
	VisibleSignatureMisconfigured: "visible signature misconfigured",
	SizeOverflow:                  "size overflow",
	SigningFailure:                "signing failure",
	IOFailure:                     "i/o failure",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
}

// SigningError is returned by Sign. Phase is the state in which the
// operation stopped.
type SigningError struct {
	Kind  ErrorKind
	Phase Phase
	Path  string
	Err   error
}

func (e *SigningError) Error() string {
	msg := fmt.Sprintf("%s in %s phase", e.Kind, e.Phase)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SigningError) Unwrap() error { return e.Err }

// IsKind reports whether err wraps a SigningError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *SigningError
	return errors.As(err, &se) && se.Kind == kind
}
