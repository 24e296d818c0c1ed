package sign

import (
	"bytes"
	"fmt"

	"github.com/digitorus/pdfseal/fonts"
)

// lineSpacing is the baseline distance as a multiple of the font size.
const lineSpacing = 1.2

// appearanceLines returns the text drawn in a visible signature.
func (p *Patcher) appearanceLines() []string {
	lines := []string{"Digitally signed by " + p.metadata.Name}
	lines = append(lines, "Date: "+p.metadata.Date.Format("2006.01.02 15:04:05 -07'00'"))
	if p.metadata.Reason != "" {
		lines = append(lines, "Reason: "+p.metadata.Reason)
	}
	if p.metadata.Location != "" {
		lines = append(lines, "Location: "+p.metadata.Location)
	}
	return lines
}

// createAppearance returns the form XObject drawn in the widget rectangle.
func (p *Patcher) createAppearance(rect Rectangle) ([]byte, error) {
	rectWidth := rect.Width()
	rectHeight := rect.Height()

	if rectWidth < 1 || rectHeight < 1 {
		return nil, fmt.Errorf("invalid rectangle dimensions: width %.2f and height %.2f must be at least 1", rectWidth, rectHeight)
	}

	font := fonts.Standard(fonts.Helvetica)
	lines := p.appearanceLines()
	fontSize := computeFontSize(font.Metrics, lines, rectWidth, rectHeight)

	var stream bytes.Buffer
	stream.WriteString("q\n")
	stream.WriteString("BT\n")
	fmt.Fprintf(&stream, "/F1 %.2f Tf\n", fontSize)
	fmt.Fprintf(&stream, "%.2f TL\n", fontSize*lineSpacing)
	// Ballpoint blue.
	stream.WriteString("0.2 0.2 0.6 rg\n")

	// First baseline, then each following line one leading lower.
	top := rectHeight - fontSize
	if top < 0 {
		top = 0
	}
	fmt.Fprintf(&stream, "%.2f %.2f Td\n", fontSize*0.25, top)
	for i, line := range lines {
		if i > 0 {
			stream.WriteString("T*\n")
		}
		fmt.Fprintf(&stream, "%s Tj\n", pdfContentString(line))
	}
	stream.WriteString("ET\n")
	stream.WriteString("Q\n")

	var appearance bytes.Buffer
	appearance.WriteString("<< /Type /XObject")
	appearance.WriteString(" /Subtype /Form")
	fmt.Fprintf(&appearance, " /BBox [0 0 %s %s]", formatFloat(rectWidth), formatFloat(rectHeight))
	appearance.WriteString(" /Matrix [1 0 0 1 0 0]")
	appearance.WriteString(" /Resources << /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /" + font.Name + " /Encoding /WinAnsiEncoding >> >> >>")
	appearance.WriteString(" /FormType 1")
	fmt.Fprintf(&appearance, " /Length %d >>\n", stream.Len())
	appearance.WriteString("stream\n")
	appearance.Write(stream.Bytes())
	appearance.WriteString("endstream")

	return appearance.Bytes(), nil
}

// computeFontSize returns the largest size at which all lines fit the box,
// with a quarter em margin on the left and right.
func computeFontSize(m *fonts.Metrics, lines []string, width, height float64) float64 {
	fontSize := height / (float64(len(lines)) * lineSpacing)
	for _, line := range lines {
		w := m.StringWidth(line, 1) + 0.5
		if w > 0 && width/w < fontSize {
			fontSize = width / w
		}
	}
	return fontSize
}
