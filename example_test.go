package pdfseal_test

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/digitorus/pdfseal"
	"github.com/digitorus/pdfseal/internal/testpdf"
	"github.com/digitorus/pdfseal/internal/testpki"
	"github.com/digitorus/pdfseal/verify"
)

// exampleDocument writes a small form document into a new temporary
// directory and returns the directory and the document path.
func exampleDocument() (string, string) {
	dir, err := os.MkdirTemp("", "pdfseal-example")
	if err != nil {
		log.Fatal(err)
	}
	src := filepath.Join(dir, "contract.pdf")
	if err := os.WriteFile(src, testpdf.Generate(testpdf.Options{Fields: 2}), 0644); err != nil {
		log.Fatal(err)
	}
	return dir, src
}

// ExampleSign signs a document next to its source and verifies the result.
func ExampleSign() {
	dir, src := exampleDocument()
	defer os.RemoveAll(dir)

	pki := testpki.NewTestPKI(nil) // nil uses log.Fatal on error
	key, chain := pki.SignerChain("Example Signer")

	res, err := pdfseal.Sign(pdfseal.SigningRequest{
		SourcePath:       src,
		DestinationPath:  src,
		AppendSuffix:     true,
		CertificateChain: chain,
		PrivateKey:       key,
		SignatureType:    pdfseal.PKCS7ObjectSHA256,
		Reason:           "Contract approval",
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Written:", filepath.Base(res.Destination))

	resp, err := verify.File(res.Destination)
	if err != nil {
		log.Fatal(err)
	}
	for _, signer := range resp.Signers {
		fmt.Printf("Signed by %s (%s), valid: %v\n", signer.Name, signer.Reason, signer.ValidSignature)
	}

	// Output:
	// Written: contract_signed.pdf
	// Signed by Example Signer (Contract approval), valid: true
}

// ExampleOrchestrator_Sign follows the phases of a signing operation.
func ExampleOrchestrator_Sign() {
	dir, src := exampleDocument()
	defer os.RemoveAll(dir)

	pki := testpki.NewTestPKI(nil)
	key, chain := pki.SignerChain("Example Signer")

	o := &pdfseal.Orchestrator{
		Observer: pdfseal.ObserverFunc(func(r pdfseal.PhaseReport) {
			fmt.Println(r.Phase)
		}),
	}
	_, err := o.Sign(pdfseal.SigningRequest{
		SourcePath:       src,
		DestinationPath:  filepath.Join(dir, "signed", "contract.pdf"),
		CertificateChain: chain,
		PrivateKey:       key,
		SignatureType:    pdfseal.PKCS7ObjectSHA512,
	})
	if err != nil {
		log.Fatal(err)
	}

	// A request for a missing source is rejected before anything is written.
	_, err = o.Sign(pdfseal.SigningRequest{
		SourcePath:       filepath.Join(dir, "missing.pdf"),
		DestinationPath:  filepath.Join(dir, "missing_signed.pdf"),
		CertificateChain: chain,
		PrivateKey:       key,
		SignatureType:    pdfseal.PKCS7ObjectSHA512,
	})
	fmt.Println(pdfseal.IsKind(err, pdfseal.SourceNotFound))

	// Output:
	// validating
	// estimating
	// reserved
	// signing
	// padding
	// committing
	// done
	// validating
	// rejected
	// true
}
