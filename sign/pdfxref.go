package sign

import (
	"fmt"
	"sort"
)

// writeXref closes the incremental update with a cross-reference section
// of the same kind as the source document's.
func (p *Patcher) writeXref() error {
	switch p.rdr.XrefInformation.Type {
	case "table":
		start := p.offset()
		if err := p.writeIncrXrefTable(); err != nil {
			return err
		}
		return p.writeTrailer(start)
	case "stream":
		start := p.offset()
		if err := p.writeXrefStream(); err != nil {
			return err
		}
		return p.writeStartXref(start)
	default:
		return fmt.Errorf("unknown xref type: %q", p.rdr.XrefInformation.Type)
	}
}

type xrefSection struct {
	first   uint32
	entries []xrefEntry
}

// xrefSections groups the written objects into runs of consecutive
// object numbers.
func xrefSections(entries []xrefEntry) []xrefSection {
	sorted := append([]xrefEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].id < sorted[j].id })

	var sections []xrefSection
	for _, e := range sorted {
		n := len(sections)
		if n > 0 {
			last := &sections[n-1]
			if last.first+uint32(len(last.entries)) == e.id {
				last.entries = append(last.entries, e)
				continue
			}
		}
		sections = append(sections, xrefSection{first: e.id, entries: []xrefEntry{e}})
	}
	return sections
}

// xrefSize is the /Size of the updated document: one past the highest
// object number in use.
func (p *Patcher) xrefSize() int64 {
	size := p.rdr.Trailer().Key("Size").Int64()
	for _, e := range p.entries {
		if int64(e.id)+1 > size {
			size = int64(e.id) + 1
		}
	}
	return size
}
