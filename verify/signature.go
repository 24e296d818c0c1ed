package verify

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"io"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfseal/cms"
	"github.com/digitorus/pdfseal/sign"
	"github.com/digitorus/pkcs7"
)

const legacySubFilter = "adbe.pkcs7.sha1"

// verifySignature checks a single signature dictionary.
func verifySignature(v pdf.Value, file io.ReaderAt, fileSize int64) Signer {
	signer := Signer{
		Name:        v.Key("Name").Text(),
		Reason:      v.Key("Reason").Text(),
		Location:    v.Key("Location").Text(),
		ContactInfo: v.Key("ContactInfo").Text(),
		SubFilter:   v.Key("SubFilter").Name(),
	}
	if m := v.Key("M").Text(); m != "" {
		if t, err := parseDate(m); err == nil {
			signer.SigningTime = &t
		}
	}

	contents := []byte(v.Key("Contents").RawString())
	ranges, err := byteRanges(v.Key("ByteRange"), file, fileSize, len(contents))
	if err != nil {
		signer.Err = err
		return signer
	}
	signer.ByteRange = ranges
	signer.CoversWholeDocument = ranges.Ranges[len(ranges.Ranges)-1].End() == fileSize

	raw, err := cms.TrimPadding(contents)
	if err != nil {
		signer.Err = &InvalidSignatureError{Msg: "failed to read signature value", Err: err}
		return signer
	}
	p7, err := pkcs7.Parse(raw)
	if err != nil {
		signer.Err = &InvalidSignatureError{Msg: "failed to parse PKCS#7", Err: err}
		return signer
	}
	signer.Certificates = p7.Certificates
	signer.Certificate = p7.GetOnlySigner()

	content, err := readByteRange(ranges, file)
	if err != nil {
		signer.Err = err
		return signer
	}

	if signer.SubFilter == legacySubFilter {
		// The SignedData encapsulates the SHA-1 digest of the ranges.
		sum := sha1.Sum(content)
		if !bytes.Equal(p7.Content, sum[:]) {
			signer.Err = &InvalidSignatureError{Msg: "embedded digest does not match the document"}
			return signer
		}
	} else {
		p7.Content = content
	}

	if err := p7.Verify(); err != nil {
		signer.Err = &InvalidSignatureError{Msg: "signature verification failed", Err: err}
		return signer
	}
	signer.ValidSignature = true
	return signer
}

// byteRanges parses and checks /ByteRange. It must hold two ranges, the
// first starting at 0, separated by a gap that is exactly the /Contents hex
// string of contentsLen bytes.
func byteRanges(br pdf.Value, file io.ReaderAt, fileSize int64, contentsLen int) (sign.ByteRangeMap, error) {
	if br.Len() != 4 {
		return sign.ByteRangeMap{}, fmt.Errorf("%w: %d values", ErrByteRangeCoverage, br.Len())
	}

	var m sign.ByteRangeMap
	for i := 0; i < br.Len(); i += 2 {
		m.Ranges = append(m.Ranges, sign.ByteRange{
			Offset: br.Index(i).Int64(),
			Length: br.Index(i + 1).Int64(),
		})
	}
	first, second := m.Ranges[0], m.Ranges[1]
	m.Placeholder = sign.ByteRange{Offset: first.End(), Length: second.Offset - first.End()}

	end := second.End()
	if end > fileSize {
		return sign.ByteRangeMap{}, fmt.Errorf("%w: ranges end at %d past the end of the file at %d", ErrByteRangeCoverage, end, fileSize)
	}
	if err := m.Validate(end); err != nil {
		return sign.ByteRangeMap{}, fmt.Errorf("%w: %v", ErrByteRangeCoverage, err)
	}
	if m.Placeholder.Length != int64(2*contentsLen+2) {
		return sign.ByteRangeMap{}, fmt.Errorf("%w: gap of %d bytes for a %d byte value", ErrByteRangeCoverage, m.Placeholder.Length, contentsLen)
	}

	var open, closing [1]byte
	if _, err := file.ReadAt(open[:], m.Placeholder.Offset); err != nil {
		return sign.ByteRangeMap{}, err
	}
	if _, err := file.ReadAt(closing[:], m.Placeholder.End()-1); err != nil {
		return sign.ByteRangeMap{}, err
	}
	if open[0] != '<' || closing[0] != '>' {
		return sign.ByteRangeMap{}, fmt.Errorf("%w: gap is not a hex string", ErrByteRangeCoverage)
	}
	return m, nil
}

// readByteRange reads the content covered by the ranges.
func readByteRange(m sign.ByteRangeMap, file io.ReaderAt) ([]byte, error) {
	parts := make([]io.Reader, 0, len(m.Ranges))
	for _, r := range m.Ranges {
		parts = append(parts, io.NewSectionReader(file, r.Offset, r.Length))
	}

	content := make([]byte, m.Covered())
	if _, err := io.ReadFull(io.MultiReader(parts...), content); err != nil {
		return nil, fmt.Errorf("failed to read signed content: %w", err)
	}
	return content, nil
}
