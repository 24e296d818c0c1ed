package sign

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/digitorus/pdf"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// pdfString encodes text as a PDF text string. ASCII text becomes a literal
// string, anything else a hex string of UTF-16BE with a byte order mark.
func pdfString(text string) string {
	if !isASCII(text) {
		enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
		res, _, err := transform.String(enc, text)
		if err != nil {
			// Unpaired surrogates cannot come from a Go string.
			panic(err)
		}
		return "<" + hex.EncodeToString([]byte(res)) + ">"
	}

	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, ")", "\\)")
	text = strings.ReplaceAll(text, "(", "\\(")
	text = strings.ReplaceAll(text, "\r", "\\r")
	return "(" + text + ")"
}

// pdfContentString encodes text as a literal string for a content stream
// shown with a WinAnsiEncoding font. Runes outside the code page become '?'
// and bytes outside ASCII are written as octal escapes.
func pdfContentString(text string) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, r := range text {
		c, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			c = '?'
		}
		switch {
		case c == '\\' || c == '(' || c == ')':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\r':
			b.WriteString("\\r")
		case c < 0x20 || c > 0x7e:
			fmt.Fprintf(&b, "\\%03o", c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(')')
	return b.String()
}

func pdfDateTime(date time.Time) string {
	_, originalOffset := date.Zone()
	offset := originalOffset
	if offset < 0 {
		offset = -offset
	}

	offsetDuration := time.Duration(offset) * time.Second
	offsetHours := int(math.Floor(offsetDuration.Hours()))
	offsetMinutes := int(math.Floor(offsetDuration.Minutes())) - offsetHours*60

	dateString := "D:" + date.Format("20060102150405")

	// PDF wants +HH'mm', which time.Format cannot produce.
	if originalOffset < 0 {
		dateString += "-"
	} else {
		dateString += "+"
	}
	dateString += fmt.Sprintf("%02d'%02d'", offsetHours, offsetMinutes)

	return pdfString(dateString)
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > '\u007F' {
			return false
		}
	}
	return true
}

// findPage returns the page with the 1-based number pageNum.
func findPage(rdr *pdf.Reader, pageNum int) (pdf.Value, error) {
	pages := rdr.Trailer().Key("Root").Key("Pages")
	p, _ := findPageRec(pages, pageNum)
	if p.Kind() != pdf.Dict {
		return pdf.Value{}, fmt.Errorf("page %d not found", pageNum)
	}
	return p, nil
}

func findPageRec(node pdf.Value, pageNum int) (pdf.Value, int) {
	switch node.Key("Type").Name() {
	case "Page":
		if pageNum == 1 {
			return node, 0
		}
		return pdf.Value{}, pageNum - 1
	case "Pages":
		kids := node.Key("Kids")
		for i := 0; i < kids.Len(); i++ {
			p, n := findPageRec(kids.Index(i), pageNum)
			if p.Kind() != pdf.Null {
				return p, 0
			}
			pageNum = n
		}
	}
	return pdf.Value{}, pageNum
}

// sameObject reports whether a and b were read from the same indirect
// object. Direct values carry the pointer of the object that contains them.
func sameObject(a, b pdf.Value) bool {
	pa, pb := a.GetPtr(), b.GetPtr()
	return pa.GetID() == pb.GetID() && pa.GetGen() == pb.GetGen()
}

func reference(v pdf.Value) string {
	ptr := v.GetPtr()
	return fmt.Sprintf("%d %d R", ptr.GetID(), ptr.GetGen())
}

// writeValue serializes v as it appears inside container: values stored in
// other objects are written as references, direct values are re-encoded.
func writeValue(buf *bytes.Buffer, v, container pdf.Value) {
	if v.Kind() == pdf.Stream || (v.Kind() != pdf.Null && !sameObject(v, container)) {
		buf.WriteString(reference(v))
		return
	}

	switch v.Kind() {
	case pdf.Null:
		buf.WriteString("null")
	case pdf.Bool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case pdf.Integer:
		buf.WriteString(strconv.FormatInt(v.Int64(), 10))
	case pdf.Real:
		buf.WriteString(strconv.FormatFloat(v.Float64(), 'f', -1, 64))
	case pdf.String:
		buf.WriteString("<" + hex.EncodeToString([]byte(v.RawString())) + ">")
	case pdf.Name:
		buf.WriteString(pdfName(v.Name()))
	case pdf.Array:
		buf.WriteString("[")
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buf.WriteString(" ")
			}
			writeValue(buf, v.Index(i), container)
		}
		buf.WriteString("]")
	case pdf.Dict:
		buf.WriteString("<<")
		writeEntries(buf, v, container, nil)
		buf.WriteString(" >>")
	}
}

// writeEntries writes the key value pairs of dict, except the keys in skip.
func writeEntries(buf *bytes.Buffer, dict, container pdf.Value, skip map[string]bool) {
	for _, key := range dict.Keys() {
		if skip[key] {
			continue
		}
		buf.WriteString(" " + pdfName(key) + " ")
		writeValue(buf, dict.Key(key), container)
	}
}

func pdfName(name string) string {
	var b strings.Builder
	b.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e || strings.IndexByte("()<>[]{}/%#", c) >= 0 {
			fmt.Fprintf(&b, "#%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
