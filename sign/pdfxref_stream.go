package sign

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
)

// writeXrefStream writes the cross-reference stream object. The stream
// lists itself, so its own offset is taken before it is written.
func (p *Patcher) writeXrefStream() error {
	self := xrefEntry{id: p.nextID, offset: p.offset()}
	p.nextID++
	p.entries = append(p.entries, self)

	sections := xrefSections(p.entries)

	var data bytes.Buffer
	for _, section := range sections {
		for _, entry := range section.entries {
			writeXrefStreamLine(&data, 1, entry.offset, entry.gen)
		}
	}

	streamBytes, err := encodeXrefStream(data.Bytes())
	if err != nil {
		return fmt.Errorf("failed to encode xref stream: %w", err)
	}

	var header bytes.Buffer
	header.WriteString("<< /Type /XRef")
	p.writeTrailerEntries(&header)
	header.WriteString(" /Index [")
	for i, section := range sections {
		if i > 0 {
			header.WriteString(" ")
		}
		fmt.Fprintf(&header, "%d %d", section.first, len(section.entries))
	}
	header.WriteString("]")
	header.WriteString(" /W [1 4 1]")
	header.WriteString(" /Filter /FlateDecode")
	fmt.Fprintf(&header, " /Length %d >>\nstream\n", len(streamBytes))
	header.Write(streamBytes)
	header.WriteString("\nendstream")

	// The entry was registered above.
	_, err = p.writeBody(self.id, 0, header.Bytes())
	return err
}

func encodeXrefStream(data []byte) ([]byte, error) {
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// writeXrefStreamLine writes a single entry: type, 4 byte offset, generation.
func writeXrefStreamLine(b *bytes.Buffer, xreftype byte, offset int64, gen uint16) {
	b.WriteByte(xreftype)

	offsetBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(offsetBytes, uint32(offset))
	b.Write(offsetBytes)

	b.WriteByte(byte(gen))
}
