package sign

import (
	"fmt"
	"strings"
)

// ByteRange is a span of document bytes.
type ByteRange struct {
	Offset int64
	Length int64
}

// End returns the offset just past the range.
func (r ByteRange) End() int64 { return r.Offset + r.Length }

// ByteRangeMap lists the document bytes that are hashed, in document
// order, and the placeholder that is excluded.
type ByteRangeMap struct {
	Ranges      []ByteRange
	Placeholder ByteRange
}

// Values returns the flattened offset and length pairs written to /ByteRange.
func (m ByteRangeMap) Values() []int64 {
	values := make([]int64, 0, 2*len(m.Ranges))
	for _, r := range m.Ranges {
		values = append(values, r.Offset, r.Length)
	}
	return values
}

// Covered returns the number of hashed bytes.
func (m ByteRangeMap) Covered() int64 {
	var n int64
	for _, r := range m.Ranges {
		n += r.Length
	}
	return n
}

// Validate checks that the ranges are sorted and do not overlap, and that
// together with the placeholder they span [0, total) exactly once.
func (m ByteRangeMap) Validate(total int64) error {
	spans := append([]ByteRange(nil), m.Ranges...)
	spans = append(spans, m.Placeholder)

	// Insert the placeholder at its position; ranges are already ordered.
	for i := len(spans) - 1; i > 0 && spans[i].Offset < spans[i-1].Offset; i-- {
		spans[i], spans[i-1] = spans[i-1], spans[i]
	}

	var pos int64
	for i, r := range m.Ranges {
		if r.Length < 0 || r.Offset < 0 {
			return fmt.Errorf("range %d has negative offset or length", i)
		}
		if i > 0 && r.Offset < m.Ranges[i-1].End() {
			return fmt.Errorf("range %d overlaps or precedes range %d", i, i-1)
		}
	}
	for _, r := range spans {
		if r.Offset != pos {
			return fmt.Errorf("span at %d does not continue at %d", r.Offset, pos)
		}
		pos = r.End()
	}
	if pos != total {
		return fmt.Errorf("spans end at %d, document has %d bytes", pos, total)
	}
	return nil
}

// updateByteRange computes the final ranges and writes them over the
// /ByteRange placeholder.
func (p *Patcher) updateByteRange() (ByteRangeMap, error) {
	total := p.offset()
	placeholder := ByteRange{Offset: p.contentsStart, Length: int64(p.contentsSize)}

	ranges := ByteRangeMap{
		Ranges: []ByteRange{
			// Everything up to the opening bracket of /Contents.
			{Offset: 0, Length: placeholder.Offset},
			// Everything after the closing bracket.
			{Offset: placeholder.End(), Length: total - placeholder.End()},
		},
		Placeholder: placeholder,
	}
	if err := ranges.Validate(total); err != nil {
		return ByteRangeMap{}, err
	}

	values := ranges.Values()
	newByteRange := fmt.Sprintf("/ByteRange[%d %d %d %d]", values[0], values[1], values[2], values[3])
	if len(newByteRange) > len(signatureByteRangePlaceholder) {
		return ByteRangeMap{}, fmt.Errorf("byte range %s does not fit its placeholder", newByteRange)
	}

	// Make sure our ByteRange string didn't shrink in length.
	newByteRange += strings.Repeat(" ", len(signatureByteRangePlaceholder)-len(newByteRange))

	// Writing to the filebuffer at an offset truncates it, patch in place.
	copy(p.buf.Buff.Bytes()[p.byteRangeStart:], newByteRange)

	return ranges, nil
}
