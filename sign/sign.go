// Package sign writes signature fields into PDF documents as incremental
// updates.
//
// A Patcher copies the source document, appends the signature dictionary
// with a zero filled placeholder, the field widget, the updated catalog and
// a cross-reference section, and fixes the /ByteRange. Reserve returns a
// Reservation that exposes the bytes to sign and accepts the encoded
// signature exactly once.
package sign

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/digitorus/pdf"
	"github.com/mattetti/filebuffer"
)

// New parses the size bytes of input as a PDF document. The signed document
// is written to output on commit.
func New(input io.ReaderAt, size int64, output io.Writer) (p *Patcher, err error) {
	// The reader panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = fmt.Errorf("failed to parse document: %v", r)
		}
	}()

	data := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(input, 0, size), data); err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	rdr, err := pdf.NewReader(bytes.NewReader(data), size)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if !rdr.Trailer().Key("Encrypt").IsNull() {
		return nil, fmt.Errorf("encrypted documents are not supported")
	}
	if rdr.Trailer().Key("Root").Key("Pages").IsNull() {
		return nil, fmt.Errorf("document catalog has no page tree")
	}

	return &Patcher{
		rdr:    rdr,
		input:  data,
		output: output,
	}, nil
}

// SetOutput replaces the writer the signed document is written to on
// commit.
func (p *Patcher) SetOutput(w io.Writer) {
	p.output = w
}

// SetMetadata sets the signature dictionary entries. It must be called
// before Reserve.
func (p *Patcher) SetMetadata(m Metadata) error {
	if p.reserved {
		return ErrAlreadyReserved
	}
	p.metadata = m
	return nil
}

// SetVisibleAppearance places the signature widget on the 1-based page. It
// must be called before Reserve.
func (p *Patcher) SetVisibleAppearance(rect Rectangle, page int) error {
	if p.reserved {
		return ErrAlreadyReserved
	}
	if rect.Width() < 1 || rect.Height() < 1 {
		return fmt.Errorf("invalid rectangle dimensions: width %.2f and height %.2f must be at least 1", rect.Width(), rect.Height())
	}
	if page < 1 || page > p.rdr.NumPage() {
		return fmt.Errorf("page %d out of range 1-%d", page, p.rdr.NumPage())
	}
	p.appearance = &appearance{rect: rect, page: page}
	return nil
}

// SetSubFilter selects the signature encoding. It must be called before
// Reserve.
func (p *Patcher) SetSubFilter(s SubFilter) error {
	if p.reserved {
		return ErrAlreadyReserved
	}
	p.subFilter = s
	return nil
}

// Reserve writes the incremental update with a placeholder of exactly size
// bytes for the hex encoded signature, brackets included. All offsets are
// final once Reserve returns.
func (p *Patcher) Reserve(size int) (res *Reservation, err error) {
	if p.reserved {
		return nil, ErrAlreadyReserved
	}
	if size < 4 || size%2 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrPlaceholderSize, size)
	}
	p.reserved = true

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("failed to update document: %v", r)
		}
	}()

	if p.metadata.Date.IsZero() {
		p.metadata.Date = time.Now()
	}

	p.buf = filebuffer.New([]byte{})
	if _, err := p.buf.Write(p.input); err != nil {
		return nil, err
	}

	// The update starts on a fresh line after %%EOF.
	if _, err := p.buf.Write([]byte("\n")); err != nil {
		return nil, err
	}

	p.nextID = uint32(p.rdr.Trailer().Key("Size").Int64())
	if n := uint32(p.rdr.XrefInformation.ItemCount); n > p.nextID {
		p.nextID = n
	}

	signatureObject, byteRangeStart, contentsStart := p.createSignaturePlaceholder(size)
	id, offset, err := p.addObject(signatureObject)
	if err != nil {
		return nil, fmt.Errorf("failed to add signature object: %w", err)
	}
	p.sigID = id
	p.byteRangeStart = offset + byteRangeStart
	p.contentsStart = offset + contentsStart
	p.contentsSize = size

	var page pdf.Value
	if p.appearance != nil {
		page, err = findPage(p.rdr, p.appearance.page)
		if err != nil {
			return nil, err
		}

		appearanceObject, err := p.createAppearance(p.appearance.rect)
		if err != nil {
			return nil, fmt.Errorf("failed to create appearance: %w", err)
		}
		if p.apID, _, err = p.addObject(appearanceObject); err != nil {
			return nil, fmt.Errorf("failed to add appearance object: %w", err)
		}
	}

	if p.widgetID, _, err = p.addObject(p.createVisualSignature(page)); err != nil {
		return nil, fmt.Errorf("failed to add visual signature object: %w", err)
	}

	if p.appearance != nil {
		ptr := page.GetPtr()
		if err := p.updateObject(uint32(ptr.GetID()), uint16(ptr.GetGen()), p.createIncPageUpdate(page, p.widgetID)); err != nil {
			return nil, fmt.Errorf("failed to add incremental page update object: %w", err)
		}
	}

	if err := p.writeInfo(); err != nil {
		return nil, fmt.Errorf("failed to add info object: %w", err)
	}

	rootPtr := p.rdr.Trailer().Key("Root").GetPtr()
	if err := p.updateObject(uint32(rootPtr.GetID()), uint16(rootPtr.GetGen()), p.createCatalog()); err != nil {
		return nil, fmt.Errorf("failed to add catalog object: %w", err)
	}

	if err := p.writeXref(); err != nil {
		return nil, fmt.Errorf("failed to write xref: %w", err)
	}

	ranges, err := p.updateByteRange()
	if err != nil {
		return nil, fmt.Errorf("failed to update byte range: %w", err)
	}

	return &Reservation{patcher: p, ranges: ranges, size: size}, nil
}

// Seal reserves a placeholder for a raw signature of up to size bytes,
// signs the byte ranges with fn and commits the zero padded result in one
// pass. The committed reservation is returned.
func (p *Patcher) Seal(size int, fn func(io.Reader) ([]byte, error)) (*Reservation, error) {
	res, err := p.Reserve(2*size + 2)
	if err != nil {
		return nil, err
	}

	signature, err := fn(res.RangeStream())
	if err != nil {
		return nil, err
	}
	if len(signature) > size {
		return nil, fmt.Errorf("%w: %d bytes, %d reserved", ErrSizeOverflow, len(signature), size)
	}

	padded := make([]byte, size)
	copy(padded, signature)
	if err := res.Commit(HexString(padded)); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Patcher) offset() int64 {
	return int64(p.buf.Buff.Len())
}

// addObject appends body as a new object and returns its number and the
// offset of body in the output.
func (p *Patcher) addObject(body []byte) (uint32, int64, error) {
	id := p.nextID
	p.nextID++

	p.entries = append(p.entries, xrefEntry{id: id, offset: p.offset()})
	offset, err := p.writeBody(id, 0, body)
	return id, offset, err
}

// updateObject appends a new revision of an existing object.
func (p *Patcher) updateObject(id uint32, gen uint16, body []byte) error {
	p.entries = append(p.entries, xrefEntry{id: id, gen: gen, offset: p.offset()})
	_, err := p.writeBody(id, gen, body)
	return err
}

func (p *Patcher) writeBody(id uint32, gen uint16, body []byte) (int64, error) {
	header := strconv.Itoa(int(id)) + " " + strconv.Itoa(int(gen)) + " obj\n"
	if _, err := p.buf.Write([]byte(header)); err != nil {
		return 0, err
	}
	offset := p.offset()
	if _, err := p.buf.Write(body); err != nil {
		return 0, err
	}
	if _, err := p.buf.Write([]byte("\nendobj\n")); err != nil {
		return 0, err
	}
	return offset, nil
}

// HexString encodes b as a PDF hexadecimal string including the brackets.
func HexString(b []byte) []byte {
	dst := make([]byte, hex.EncodedLen(len(b))+2)
	dst[0] = '<'
	hex.Encode(dst[1:], b)
	dst[len(dst)-1] = '>'
	return dst
}
