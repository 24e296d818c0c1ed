package sign

import (
	"bytes"
	"strconv"
)

const signatureByteRangePlaceholder = "/ByteRange[0 ********** ********** **********]"

// createSignaturePlaceholder returns the signature dictionary with a
// /Contents hex string of exactly contentsSize bytes, including the angle
// brackets. The offsets of the ByteRange placeholder and of the opening
// bracket are relative to the start of the returned object.
func (p *Patcher) createSignaturePlaceholder(contentsSize int) (object []byte, byteRangeStart, contentsStart int64) {
	var signatureBuffer bytes.Buffer
	signatureBuffer.WriteString("<< /Type /Sig")
	signatureBuffer.WriteString(" /Filter /" + p.subFilter.filter())
	signatureBuffer.WriteString(" /SubFilter /" + p.subFilter.String())

	byteRangeStart = int64(signatureBuffer.Len()) + 1

	// Replaced once the final offsets are known.
	signatureBuffer.WriteString(" " + signatureByteRangePlaceholder)

	signatureBuffer.WriteString(" /Contents")
	contentsStart = int64(signatureBuffer.Len())
	signatureBuffer.WriteByte('<')
	signatureBuffer.Write(bytes.Repeat([]byte("0"), contentsSize-2))
	signatureBuffer.WriteByte('>')

	info := p.metadata
	if info.Name != "" {
		signatureBuffer.WriteString(" /Name ")
		signatureBuffer.WriteString(pdfString(info.Name))
	}
	if info.Location != "" {
		signatureBuffer.WriteString(" /Location ")
		signatureBuffer.WriteString(pdfString(info.Location))
	}
	if info.Reason != "" {
		signatureBuffer.WriteString(" /Reason ")
		signatureBuffer.WriteString(pdfString(info.Reason))
	}
	if info.Contact != "" {
		signatureBuffer.WriteString(" /ContactInfo ")
		signatureBuffer.WriteString(pdfString(info.Contact))
	}
	signatureBuffer.WriteString(" /M ")
	signatureBuffer.WriteString(pdfDateTime(info.Date))
	signatureBuffer.WriteString(" >>")

	return signatureBuffer.Bytes(), byteRangeStart, contentsStart
}

// fieldName returns the first SignatureN name not used by an existing
// top-level form field.
func (p *Patcher) fieldName() string {
	used := map[string]bool{}
	fields := p.rdr.Trailer().Key("Root").Key("AcroForm").Key("Fields")
	for i := 0; i < fields.Len(); i++ {
		used[fields.Index(i).Key("T").Text()] = true
	}
	for n := 1; ; n++ {
		name := "Signature" + strconv.Itoa(n)
		if !used[name] {
			return name
		}
	}
}
