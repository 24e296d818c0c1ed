package sign

import (
	"bytes"
	"fmt"
	"io"
)

// Reservation is the handle to a reserved signature placeholder. It is
// returned by Patcher.Reserve and can be committed once.
type Reservation struct {
	patcher   *Patcher
	ranges    ByteRangeMap
	size      int
	committed bool
}

// ByteRange returns the hashed ranges and the placeholder.
func (r *Reservation) ByteRange() ByteRangeMap { return r.ranges }

// Size returns the placeholder size in bytes, brackets included.
func (r *Reservation) Size() int { return r.size }

// Len returns the length of the final document.
func (r *Reservation) Len() int64 { return r.patcher.offset() }

// RangeStream returns a reader over the hashed bytes in document order.
func (r *Reservation) RangeStream() io.Reader {
	data := r.patcher.buf.Buff.Bytes()
	readers := make([]io.Reader, 0, len(r.ranges.Ranges))
	for _, br := range r.ranges.Ranges {
		readers = append(readers, bytes.NewReader(data[br.Offset:br.End()]))
	}
	return io.MultiReader(readers...)
}

// Commit writes encoded over the placeholder and the whole document to the
// output. encoded must be a hex string of exactly Size bytes, brackets
// included.
func (r *Reservation) Commit(encoded []byte) error {
	if r.committed {
		return ErrAlreadyCommitted
	}
	if len(encoded) != r.size {
		return fmt.Errorf("%w: got %d bytes, reserved %d", ErrPlaceholderSize, len(encoded), r.size)
	}
	if encoded[0] != '<' || encoded[len(encoded)-1] != '>' {
		return fmt.Errorf("%w: value is not a delimited hex string", ErrPlaceholderSize)
	}
	for _, c := range encoded[1 : len(encoded)-1] {
		if !isHexDigit(c) {
			return fmt.Errorf("%w: invalid hex digit %q", ErrPlaceholderSize, c)
		}
	}
	r.committed = true

	data := r.patcher.buf.Buff.Bytes()
	copy(data[r.ranges.Placeholder.Offset:], encoded)

	if _, err := r.patcher.output.Write(data); err != nil {
		return fmt.Errorf("failed to write signed document: %w", err)
	}
	return nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
