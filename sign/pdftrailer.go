package sign

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// writeTrailer writes a fresh trailer dictionary for a table based update.
func (p *Patcher) writeTrailer(xrefStart int64) error {
	var trailer bytes.Buffer
	trailer.WriteString("trailer\n<<")
	p.writeTrailerEntries(&trailer)
	trailer.WriteString(" >>\n")

	if _, err := p.buf.Write(trailer.Bytes()); err != nil {
		return fmt.Errorf("failed to write trailer: %w", err)
	}
	return p.writeStartXref(xrefStart)
}

// writeTrailerEntries writes the entries shared by trailer dictionaries and
// cross-reference stream dictionaries.
func (p *Patcher) writeTrailerEntries(buf *bytes.Buffer) {
	trailer := p.rdr.Trailer()

	fmt.Fprintf(buf, " /Size %d", p.xrefSize())
	buf.WriteString(" /Root " + reference(trailer.Key("Root")))
	buf.WriteString(" /Prev " + strconv.FormatInt(p.rdr.XrefInformation.StartPos, 10))

	if p.infoRef != "" {
		buf.WriteString(" /Info " + p.infoRef)
	}

	// The first identifier stays, the second changes with every update.
	update := uuid.New()
	first := update[:]
	if id := trailer.Key("ID"); id.Len() > 0 {
		first = []byte(id.Index(0).RawString())
	}
	fmt.Fprintf(buf, " /ID [<%s> <%s>]", hex.EncodeToString(first), hex.EncodeToString(update[:]))
}

func (p *Patcher) writeStartXref(xrefStart int64) error {
	tail := "startxref\n" + strconv.FormatInt(xrefStart, 10) + "\n%%EOF\n"
	if _, err := p.buf.Write([]byte(tail)); err != nil {
		return fmt.Errorf("failed to write startxref: %w", err)
	}
	return nil
}
