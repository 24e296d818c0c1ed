// Package testpdf builds small, valid PDF documents in memory so tests do
// not depend on binary fixtures.
package testpdf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Options controls the generated document.
type Options struct {
	// Fields is the number of text form fields placed on the first page.
	Fields int
	// Pages is the number of pages, at least one.
	Pages int
	// XrefStream writes a cross-reference stream instead of a table.
	XrefStream bool
	// NoAcroForm leaves the interactive form dictionary out of the catalog.
	NoAcroForm bool
	// DirectInfo stores the document information dictionary in the trailer
	// instead of an indirect object.
	DirectInfo bool
}

type writer struct {
	buf     bytes.Buffer
	offsets []int
}

func (w *writer) object(id int, body string) {
	for len(w.offsets) <= id {
		w.offsets = append(w.offsets, 0)
	}
	w.offsets[id] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", id, body)
}

// Generate returns the bytes of a PDF document built from opts.
func Generate(opts Options) []byte {
	if opts.Pages < 1 {
		opts.Pages = 1
	}

	// Object numbering: catalog, pages, font, info, then per page the page
	// and its content stream, then the fields.
	const (
		catalogID = 1
		pagesID   = 2
		fontID    = 3
		infoID    = 4
	)
	pageID := func(i int) int { return 5 + 2*i }
	contentID := func(i int) int { return 6 + 2*i }
	fieldID := func(i int) int { return 5 + 2*opts.Pages + i }
	size := fieldID(opts.Fields)

	w := &writer{}
	w.buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	var fields []string
	for i := 0; i < opts.Fields; i++ {
		fields = append(fields, fmt.Sprintf("%d 0 R", fieldID(i)))
	}

	catalog := fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R", pagesID)
	if !opts.NoAcroForm {
		catalog += fmt.Sprintf(" /AcroForm << /Fields [%s] /DA (/Helv 0 Tf 0 g) >>", strings.Join(fields, " "))
	}
	catalog += " >>"
	w.object(catalogID, catalog)

	var kids []string
	for i := 0; i < opts.Pages; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", pageID(i)))
	}
	w.object(pagesID, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), opts.Pages))
	w.object(fontID, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	const infoDict = "<< /Title (pdfseal test document) /Producer (pdfseal testpdf) >>"
	w.object(infoID, infoDict)
	info := fmt.Sprintf("%d 0 R", infoID)
	if opts.DirectInfo {
		info = infoDict
	}

	for i := 0; i < opts.Pages; i++ {
		page := fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >>",
			pagesID, contentID(i), fontID)
		if i == 0 && len(fields) > 0 {
			page += fmt.Sprintf(" /Annots [%s]", strings.Join(fields, " "))
		}
		page += " >>"
		w.object(pageID(i), page)

		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (Test document page %d) Tj ET", i+1)
		w.object(contentID(i), fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	for i := 0; i < opts.Fields; i++ {
		y := 680 - 30*i
		w.object(fieldID(i), fmt.Sprintf("<< /Type /Annot /Subtype /Widget /FT /Tx /T (field%d) /V (value %d) /Rect [72 %d 300 %d] /P %d 0 R /F 4 >>",
			i+1, i+1, y, y+20, pageID(0)))
	}

	id := "<5d8a3ff2c1b44f0e9c36a1e07d2b9f41><5d8a3ff2c1b44f0e9c36a1e07d2b9f41>"
	if opts.XrefStream {
		writeXrefStream(w, size, catalogID, info, id)
	} else {
		writeXrefTable(w, size, catalogID, info, id)
	}

	return w.buf.Bytes()
}

func writeXrefTable(w *writer, size, root int, info, id string) {
	start := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n", size)
	w.buf.WriteString("0000000000 65535 f\r\n")
	for i := 1; i < size; i++ {
		fmt.Fprintf(&w.buf, "%010d 00000 n\r\n", w.offsets[i])
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root %d 0 R /Info %s /ID [%s] >>\n", size, root, info, id)
	fmt.Fprintf(&w.buf, "startxref\n%d\n%%%%EOF\n", start)
}

func writeXrefStream(w *writer, size, root int, info, id string) {
	// The stream object itself takes the next free number.
	self := size
	w.offsets = append(w.offsets, 0)
	start := w.buf.Len()
	w.offsets[self] = start

	var data bytes.Buffer
	entry := func(typ byte, offset int, gen byte) {
		data.WriteByte(typ)
		_ = binary.Write(&data, binary.BigEndian, uint32(offset))
		data.WriteByte(gen)
	}
	entry(0, 0, 255)
	for i := 1; i <= self; i++ {
		entry(1, w.offsets[i], 0)
	}

	fmt.Fprintf(&w.buf, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 1] /Root %d 0 R /Info %s /ID [%s] /Length %d >>\nstream\n",
		self, self+1, root, info, id, data.Len())
	w.buf.Write(data.Bytes())
	w.buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&w.buf, "startxref\n%d\n%%%%EOF\n", start)
}

// Write generates a document into dir and returns its path.
func Write(t *testing.T, dir, name string, opts Options) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Generate(opts), 0644); err != nil {
		t.Fatalf("failed to write test pdf: %v", err)
	}
	return path
}
