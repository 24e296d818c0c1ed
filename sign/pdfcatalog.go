package sign

import (
	"bytes"
	"strconv"
)

// createCatalog returns the updated document catalog. Every key of the
// original catalog is kept. The interactive form keeps its entries and
// existing fields, with the signature field appended.
func (p *Patcher) createCatalog() []byte {
	root := p.rdr.Trailer().Key("Root")

	var catalogBuilder bytes.Buffer
	catalogBuilder.WriteString("<<")
	writeEntries(&catalogBuilder, root, root, map[string]bool{"AcroForm": true})

	acroForm := root.Key("AcroForm")
	catalogBuilder.WriteString(" /AcroForm <<")
	writeEntries(&catalogBuilder, acroForm, acroForm, map[string]bool{"Fields": true, "SigFlags": true})

	catalogBuilder.WriteString(" /Fields [")
	fields := acroForm.Key("Fields")
	for i := 0; i < fields.Len(); i++ {
		writeValue(&catalogBuilder, fields.Index(i), fields)
		catalogBuilder.WriteString(" ")
	}
	catalogBuilder.WriteString(strconv.Itoa(int(p.widgetID)) + " 0 R]")

	// Signature flags (Table 225)
	//
	// Bit position 1: SignaturesExist
	// Bit position 2: AppendOnly, the document must only be updated
	// incrementally from now on.
	catalogBuilder.WriteString(" /SigFlags 3")

	catalogBuilder.WriteString(" >>") // close AcroForm
	catalogBuilder.WriteString(" >>") // close catalog

	return catalogBuilder.Bytes()
}
