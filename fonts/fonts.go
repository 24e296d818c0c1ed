// Package fonts provides font resources and metrics for signature
// appearances.
//
// Appearance streams reference one of the standard PDF fonts, which every
// reader provides without embedding. Text is laid out with the metrics of
// the Go Regular TrueType font, a close match for Helvetica.
package fonts

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// StandardType represents standard PDF fonts that are available in all PDF readers
// without embedding.
type StandardType int

// Helvetica is the standard sans-serif font.
const Helvetica StandardType = iota

var standardNames = map[StandardType]string{
	Helvetica: "Helvetica",
}

// Font is a font resource referenced from an appearance stream.
type Font struct {
	Name    string   // PostScript name of the font
	Metrics *Metrics // Metrics used to measure text set in this font
}

// Standard returns a standard PDF font measured with the default metrics.
func Standard(ft StandardType) *Font {
	return &Font{Name: standardNames[ft], Metrics: Default()}
}

// Metrics contains parsed font metrics for text measurement.
type Metrics struct {
	UnitsPerEm  int
	GlyphWidths map[rune]int // Advance widths in font units
}

// ParseTTFMetrics parses a TrueType font file and extracts the advance
// widths of the Latin-1 range.
func ParseTTFMetrics(data []byte) (*Metrics, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, err
	}

	unitsPerEm := f.UnitsPerEm()
	glyphWidths := make(map[rune]int)
	var buf sfnt.Buffer

	// With ppem equal to unitsPerEm advances come back in font units.
	ppem := fixed.Int26_6(unitsPerEm) << 6

	for r := rune(32); r <= rune(255); r++ {
		idx, err := f.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			continue
		}

		advance, err := f.GlyphAdvance(&buf, idx, ppem, font.HintingNone)
		if err != nil {
			continue
		}
		glyphWidths[r] = int(advance >> 6)
	}

	return &Metrics{
		UnitsPerEm:  int(unitsPerEm),
		GlyphWidths: glyphWidths,
	}, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the Go Regular metrics. They are parsed once.
func Default() *Metrics {
	defaultOnce.Do(func() {
		m, err := ParseTTFMetrics(goregular.TTF)
		if err == nil {
			defaultMetrics = m
		}
	})
	return defaultMetrics
}

// StringWidth calculates the width of a string in points at the given font size.
func (m *Metrics) StringWidth(text string, fontSize float64) float64 {
	if m == nil || m.UnitsPerEm == 0 {
		return float64(len(text)) * fontSize * 0.5
	}

	var totalWidth int
	for _, r := range text {
		if width, ok := m.GlyphWidths[r]; ok {
			totalWidth += width
		} else {
			totalWidth += m.UnitsPerEm / 2
		}
	}

	return (float64(totalWidth) / float64(m.UnitsPerEm)) * fontSize
}
