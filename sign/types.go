package sign

import (
	"errors"
	"io"
	"time"

	"github.com/digitorus/pdf"
	"github.com/mattetti/filebuffer"
)

var (
	// ErrSizeOverflow is returned when a signature does not fit the
	// reserved placeholder.
	ErrSizeOverflow = errors.New("signature exceeds reserved placeholder")
	// ErrAlreadyReserved is returned by a second call to Reserve.
	ErrAlreadyReserved = errors.New("placeholder already reserved")
	// ErrAlreadyCommitted is returned by a second call to Commit.
	ErrAlreadyCommitted = errors.New("placeholder already committed")
	// ErrPlaceholderSize is returned for placeholder sizes that cannot hold
	// a delimited hex string, and for commits of the wrong length.
	ErrPlaceholderSize = errors.New("invalid placeholder size")
)

// Metadata is written into the signature dictionary. Empty strings are
// left out, except Date which defaults to the time of reservation.
type Metadata struct {
	Name     string
	Contact  string
	Reason   string
	Location string
	Date     time.Time
}

// Rectangle is a widget rectangle in default user space units.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// Width of the rectangle.
func (r Rectangle) Width() float64 { return r.URX - r.LLX }

// Height of the rectangle.
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// SubFilter selects the signature encoding declared in the signature
// dictionary.
type SubFilter int

const (
	// Detached is /Adobe.PPKLite with /adbe.pkcs7.detached: Contents holds a
	// SignedData over the byte ranges without encapsulated content.
	Detached SubFilter = iota
	// LegacySHA1 is /Adobe.PPKMS with /adbe.pkcs7.sha1: Contents holds a
	// SignedData that encapsulates the SHA-1 digest of the byte ranges.
	LegacySHA1
)

func (s SubFilter) filter() string {
	if s == LegacySHA1 {
		return "Adobe.PPKMS"
	}
	return "Adobe.PPKLite"
}

// String returns the /SubFilter name.
func (s SubFilter) String() string {
	if s == LegacySHA1 {
		return "adbe.pkcs7.sha1"
	}
	return "adbe.pkcs7.detached"
}

type appearance struct {
	rect Rectangle
	page int
}

type xrefEntry struct {
	id     uint32
	gen    uint16
	offset int64
}

// Patcher writes an incremental update holding a signature field and its
// placeholder to a copy of a PDF document.
type Patcher struct {
	rdr    *pdf.Reader
	input  []byte
	output io.Writer

	metadata   Metadata
	appearance *appearance
	subFilter  SubFilter

	buf      *filebuffer.Buffer
	nextID   uint32
	entries  []xrefEntry
	reserved bool

	sigID    uint32
	widgetID uint32
	apID     uint32
	infoRef  string

	byteRangeStart int64
	contentsStart  int64
	contentsSize   int
}
