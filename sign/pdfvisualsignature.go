package sign

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/digitorus/pdf"
)

// createVisualSignature returns the signature field widget. An invisible
// signature has an empty rectangle, no appearance and no page.
func (p *Patcher) createVisualSignature(page pdf.Value) []byte {
	var widget bytes.Buffer
	widget.WriteString("<< /Type /Annot")
	widget.WriteString(" /Subtype /Widget")

	if p.appearance != nil {
		r := p.appearance.rect
		fmt.Fprintf(&widget, " /Rect [%s %s %s %s]", formatFloat(r.LLX), formatFloat(r.LLY), formatFloat(r.URX), formatFloat(r.URY))
		widget.WriteString(" /P " + reference(page))
	} else {
		widget.WriteString(" /Rect [0 0 0 0]")
	}

	// Print flag.
	widget.WriteString(" /F 4")
	widget.WriteString(" /FT /Sig")
	widget.WriteString(" /T " + pdfString(p.fieldName()))
	widget.WriteString(" /Ff 0")
	widget.WriteString(" /V " + strconv.Itoa(int(p.sigID)) + " 0 R")

	if p.apID != 0 {
		widget.WriteString(" /AP << /N " + strconv.Itoa(int(p.apID)) + " 0 R >>")
	}

	widget.WriteString(" >>")
	return widget.Bytes()
}

// createIncPageUpdate returns page with the widget appended to /Annots.
func (p *Patcher) createIncPageUpdate(page pdf.Value, widgetID uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("<<")
	writeEntries(&buf, page, page, map[string]bool{"Annots": true})

	buf.WriteString(" /Annots [")
	annots := page.Key("Annots")
	for i := 0; i < annots.Len(); i++ {
		writeValue(&buf, annots.Index(i), annots)
		buf.WriteString(" ")
	}
	buf.WriteString(strconv.Itoa(int(widgetID)) + " 0 R]")

	buf.WriteString(" >>")
	return buf.Bytes()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
