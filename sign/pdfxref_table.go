package sign

import (
	"fmt"
)

// writeIncrXrefTable writes the incremental cross-reference table to the output buffer.
func (p *Patcher) writeIncrXrefTable() error {
	if _, err := p.buf.Write([]byte("xref\n")); err != nil {
		return fmt.Errorf("failed to write incremental xref header: %w", err)
	}

	for _, section := range xrefSections(p.entries) {
		header := fmt.Sprintf("%d %d\n", section.first, len(section.entries))
		if _, err := p.buf.Write([]byte(header)); err != nil {
			return fmt.Errorf("failed to write xref subsection header: %w", err)
		}

		for _, entry := range section.entries {
			// Every entry is exactly 20 bytes long.
			xrefLine := fmt.Sprintf("%010d %05d n\r\n", entry.offset, entry.gen)
			if _, err := p.buf.Write([]byte(xrefLine)); err != nil {
				return fmt.Errorf("failed to write incremental xref entry: %w", err)
			}
		}
	}

	return nil
}
