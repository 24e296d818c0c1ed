// Package verify checks the signatures embedded in signed PDF documents.
//
// Each signature field is checked for a well formed /ByteRange that
// excludes exactly the /Contents value, the covered bytes are hashed and
// the SignedData is verified against them. Certificate trust and
// revocation are not evaluated.
package verify

import (
	"fmt"
	"io"
	"os"

	"github.com/digitorus/pdf"
)

// File verifies the document at path.
func File(path string) (*Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Reader(f, info.Size())
}

// Reader verifies a document of size bytes. Problems with individual
// signatures are reported in Signer.Err, the error is reserved for
// documents that cannot be read or carry no signature.
func Reader(file io.ReaderAt, size int64) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("failed to verify file (%v)", r)
		}
	}()

	rdr, err := pdf.NewReader(file, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	resp = &Response{}
	parseDocumentInfo(rdr.Trailer().Key("Info"), &resp.DocumentInfo)
	resp.DocumentInfo.Pages = rdr.NumPage()

	for _, field := range signatureFields(rdr.Trailer().Key("Root").Key("AcroForm").Key("Fields")) {
		signer := verifySignature(field.Key("V"), file, size)
		signer.Field = field.Key("T").Text()
		resp.Signers = append(resp.Signers, signer)
	}
	if len(resp.Signers) == 0 {
		return nil, ErrNoSignature
	}
	return resp, nil
}

// signatureFields returns the signed /Sig fields in form order.
func signatureFields(fields pdf.Value) []pdf.Value {
	var found []pdf.Value
	for i := 0; i < fields.Len(); i++ {
		field := fields.Index(i)
		if kids := field.Key("Kids"); kids.Len() > 0 {
			found = append(found, signatureFields(kids)...)
			continue
		}
		if field.Key("FT").Name() == "Sig" && field.Key("V").Kind() == pdf.Dict {
			found = append(found, field)
		}
	}
	return found
}
