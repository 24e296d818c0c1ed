package sign

import (
	"bytes"
	"fmt"

	"github.com/digitorus/pdf"
)

// createInfo returns the document information dictionary with /ModDate set
// to the signing date. It returns nil when the document has none.
func (p *Patcher) createInfo() []byte {
	originalInfo := p.rdr.Trailer().Key("Info")
	if originalInfo.Kind() != pdf.Dict {
		return nil
	}

	var info bytes.Buffer
	info.WriteString("<<")
	writeEntries(&info, originalInfo, originalInfo, map[string]bool{"ModDate": true})
	info.WriteString(" /ModDate ")
	info.WriteString(pdfDateTime(p.metadata.Date))
	info.WriteString(" >>")
	return info.Bytes()
}

// writeInfo writes the updated information dictionary. An indirect
// dictionary is updated in place; a direct one in the old trailer becomes a
// new object so the new trailer can reference it.
func (p *Patcher) writeInfo() error {
	info := p.createInfo()
	if info == nil {
		return nil
	}

	trailer := p.rdr.Trailer()
	original := trailer.Key("Info")
	if sameObject(original, trailer) {
		id, _, err := p.addObject(info)
		if err != nil {
			return err
		}
		p.infoRef = fmt.Sprintf("%d 0 R", id)
		return nil
	}

	ptr := original.GetPtr()
	if err := p.updateObject(uint32(ptr.GetID()), uint16(ptr.GetGen()), info); err != nil {
		return err
	}
	p.infoRef = reference(original)
	return nil
}
