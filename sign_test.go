package pdfseal

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfseal/cms"
	"github.com/digitorus/pdfseal/internal/testpdf"
	"github.com/digitorus/pdfseal/internal/testpki"
	"github.com/digitorus/pdfseal/sign"
	"github.com/digitorus/pdfseal/verify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	dir   string
	src   string
	key   crypto.Signer
	chain []*x509.Certificate
}

func newFixture(t *testing.T, opts testpdf.Options) fixture {
	t.Helper()
	pki := testpki.NewTestPKI(t)
	key, chain := pki.SignerChain("Seal Signer")
	dir := t.TempDir()
	return fixture{
		dir:   dir,
		src:   testpdf.Write(t, dir, "source.pdf", opts),
		key:   key,
		chain: chain,
	}
}

func (f fixture) request(st SignatureType) SigningRequest {
	return SigningRequest{
		SourcePath:       f.src,
		DestinationPath:  filepath.Join(f.dir, "out.pdf"),
		CertificateChain: f.chain,
		PrivateKey:       f.key,
		SignatureType:    st,
	}
}

type recorder struct {
	reports []PhaseReport
}

func (r *recorder) Report(p PhaseReport) { r.reports = append(r.reports, p) }

func (r *recorder) phases() []Phase {
	var phases []Phase
	for _, p := range r.reports {
		phases = append(phases, p.Phase)
	}
	return phases
}

func newOrchestrator(obs Observer) *Orchestrator {
	return &Orchestrator{Observer: obs, Now: func() time.Time { return fixedNow }}
}

func openPDF(t *testing.T, path string) *pdf.Reader {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return rdr
}

func TestSign_TenFields(t *testing.T) {
	f := newFixture(t, testpdf.Options{Fields: 10})
	rec := &recorder{}

	res, err := newOrchestrator(rec).Sign(f.request(PKCS7ObjectSHA256))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.dir, "out.pdf"), res.Destination)
	assert.NotEmpty(t, res.OperationID)
	assert.Equal(t, PKCS7ObjectSHA256, res.SignatureType)
	assert.LessOrEqual(t, 2*res.SignatureSize+2, res.PlaceholderSize)

	info, err := os.Stat(res.Destination)
	require.NoError(t, err)

	require.Len(t, res.ByteRange.Ranges, 2)
	assert.NoError(t, res.ByteRange.Validate(info.Size()))
	assert.Equal(t, info.Size()-int64(res.PlaceholderSize), res.ByteRange.Covered())

	resp, err := verify.File(res.Destination)
	require.NoError(t, err)
	require.Len(t, resp.Signers, 1)
	signer := resp.Signers[0]
	assert.NoError(t, signer.Err)
	assert.True(t, signer.ValidSignature)
	assert.Equal(t, f.chain[0].Raw, signer.Certificate.Raw)
	assert.Equal(t, "adbe.pkcs7.detached", signer.SubFilter)
	assert.Equal(t, "Seal Signer", signer.ContactInfo)
	assert.Empty(t, signer.Reason)
	assert.Empty(t, signer.Location)
	assert.Equal(t, res.ByteRange, signer.ByteRange)

	rdr := openPDF(t, res.Destination)
	assert.Equal(t, 11, rdr.Trailer().Key("Root").Key("AcroForm").Key("Fields").Len())

	assert.Equal(t, []Phase{Validating, Estimating, Reserved, Signing, Padding, Committing, Done}, rec.phases())
	for _, r := range rec.reports {
		assert.Equal(t, res.OperationID, r.OperationID)
		assert.NoError(t, r.Err)
	}
	committing := rec.reports[5]
	assert.Equal(t, info.Size(), committing.Attrs["document_size"])
}

func TestSign_Digests(t *testing.T) {
	f := newFixture(t, testpdf.Options{Fields: 1})

	for _, st := range []SignatureType{PKCS7ObjectSHA1, PKCS7ObjectSHA256, PKCS7ObjectSHA512} {
		t.Run(st.Name, func(t *testing.T) {
			req := f.request(st)
			req.DestinationPath = filepath.Join(f.dir, st.Name+".pdf")
			req.Reason = "Approved"
			req.Location = "Brussels"

			res, err := Sign(req)
			require.NoError(t, err)

			resp, err := verify.File(res.Destination)
			require.NoError(t, err)
			assert.True(t, resp.Valid())
			assert.Equal(t, "Approved", resp.Signers[0].Reason)
			assert.Equal(t, "Brussels", resp.Signers[0].Location)
		})
	}
}

func TestSign_ECDSA(t *testing.T) {
	pki := testpki.NewTestPKIWithConfig(t, testpki.TestPKIConfig{Profile: testpki.ECDSA_P384, IntermediateCAs: 1})
	key, chain := pki.SignerChain("EC Signer")
	dir := t.TempDir()

	// ECDSA signature lengths vary, sign repeatedly so both short and long
	// encodings are exercised.
	for i := 0; i < 8; i++ {
		res, err := Sign(SigningRequest{
			SourcePath:       testpdf.Write(t, dir, "source.pdf", testpdf.Options{Fields: 2}),
			DestinationPath:  filepath.Join(dir, "out.pdf"),
			CertificateChain: chain,
			PrivateKey:       key,
			SignatureType:    PKCS7ObjectSHA256,
		})
		require.NoError(t, err)

		resp, err := verify.File(res.Destination)
		require.NoError(t, err)
		assert.True(t, resp.Valid())
	}
}

func TestSign_Legacy(t *testing.T) {
	f := newFixture(t, testpdf.Options{Fields: 3})
	rec := &recorder{}

	req := f.request(SignatureFieldSHA1)
	req.Reason = "Legacy"
	res, err := newOrchestrator(rec).Sign(req)
	require.NoError(t, err)

	resp, err := verify.File(res.Destination)
	require.NoError(t, err)
	require.Len(t, resp.Signers, 1)
	assert.NoError(t, resp.Signers[0].Err)
	assert.True(t, resp.Valid())
	assert.Equal(t, "adbe.pkcs7.sha1", resp.Signers[0].SubFilter)
	assert.Equal(t, "Legacy", resp.Signers[0].Reason)

	assert.Positive(t, res.SignatureSize)
	assert.Equal(t, res.ByteRange, resp.Signers[0].ByteRange)
	assert.Equal(t, []Phase{Validating, Signing, Done}, rec.phases())

	sig := openPDF(t, res.Destination).Trailer().Key("Root").Key("AcroForm").Key("Fields").Index(3).Key("V")
	assert.Equal(t, "Adobe.PPKMS", sig.Key("Filter").Name())
}

func TestSign_AlgorithmUnsupported(t *testing.T) {
	f := newFixture(t, testpdf.Options{Fields: 1})

	for _, st := range []SignatureType{
		{ID: 90, Name: "PKCS7_OBJECT_NONE", Method: PKCS7Object},
		{ID: 91, Name: "PKCS7_OBJECT_WHIRLPOOL", HashAlgorithm: "WHIRLPOOL", Method: PKCS7Object},
		PKCS7ObjectMD5,
	} {
		rec := &recorder{}
		req := f.request(st)
		_, err := newOrchestrator(rec).Sign(req)
		require.Error(t, err, st.Name)
		assert.True(t, IsKind(err, AlgorithmUnsupported), "%s: %v", st.Name, err)
		assert.ErrorIs(t, err, cms.ErrUnsupportedAlgorithm)

		_, statErr := os.Stat(req.DestinationPath)
		assert.True(t, os.IsNotExist(statErr), "%s: destination must not be created", st.Name)
		assert.Equal(t, []Phase{Validating, Estimating, Failed}, rec.phases())
	}
}

func TestSign_SourceNotFound(t *testing.T) {
	f := newFixture(t, testpdf.Options{})
	req := f.request(PKCS7ObjectSHA256)
	req.SourcePath = filepath.Join(f.dir, "missing.pdf")
	require.NoError(t, os.WriteFile(req.DestinationPath, []byte("keep"), 0644))

	rec := &recorder{}
	_, err := newOrchestrator(rec).Sign(req)
	assert.True(t, IsKind(err, SourceNotFound), "got %v", err)

	var se *SigningError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, Validating, se.Phase)
	assert.Equal(t, req.SourcePath, se.Path)

	data, err := os.ReadFile(req.DestinationPath)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
	assert.Equal(t, []Phase{Validating, Rejected}, rec.phases())
}

func TestSign_InvalidArgument(t *testing.T) {
	f := newFixture(t, testpdf.Options{})
	otherKey, _ := testpki.NewTestPKI(t).SignerChain("Other")

	tests := []struct {
		name   string
		modify func(*SigningRequest)
	}{
		{"empty source", func(r *SigningRequest) { r.SourcePath = "" }},
		{"empty destination", func(r *SigningRequest) { r.DestinationPath = "" }},
		{"destination is source", func(r *SigningRequest) { r.DestinationPath = r.SourcePath }},
		{"nil key", func(r *SigningRequest) { r.PrivateKey = nil }},
		{"empty chain", func(r *SigningRequest) { r.CertificateChain = nil }},
		{"key mismatch", func(r *SigningRequest) { r.PrivateKey = otherKey }},
		{"no method", func(r *SigningRequest) { r.SignatureType = SignatureType{Name: "NONE"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(PKCS7ObjectSHA256)
			tt.modify(&req)

			_, err := Sign(req)
			assert.True(t, IsKind(err, InvalidArgument), "got %v", err)

			_, statErr := os.Stat(filepath.Join(f.dir, "out.pdf"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}

	req := f.request(PKCS7ObjectSHA256)
	req.PrivateKey = otherKey
	_, err := Sign(req)
	assert.ErrorIs(t, err, cms.ErrKeyMismatch)
}

func TestSign_NotAPDF(t *testing.T) {
	f := newFixture(t, testpdf.Options{})
	req := f.request(PKCS7ObjectSHA256)
	req.SourcePath = filepath.Join(f.dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(req.SourcePath, []byte("%PDF-1.7\nnot really\n"), 0644))

	_, err := Sign(req)
	assert.True(t, IsKind(err, InvalidArgument), "got %v", err)
}

func TestSign_AppendSuffix(t *testing.T) {
	f := newFixture(t, testpdf.Options{})
	req := f.request(PKCS7ObjectSHA256)
	req.AppendSuffix = true

	dest, err := SignFile(req.SourcePath, req.DestinationPath, true, f.chain, f.key, PKCS7ObjectSHA256, "", "", false, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "out_signed.pdf"), dest)
	assert.FileExists(t, dest)
	assert.NoFileExists(t, req.DestinationPath)
}

func TestSign_CreatesDestinationDirectory(t *testing.T) {
	f := newFixture(t, testpdf.Options{})
	req := f.request(PKCS7ObjectSHA256)
	req.DestinationPath = filepath.Join(f.dir, "nested", "deeper", "out.pdf")

	res, err := Sign(req)
	require.NoError(t, err)
	assert.FileExists(t, res.Destination)
}

func TestSign_VisibleWithoutRectangle(t *testing.T) {
	f := newFixture(t, testpdf.Options{Fields: 1})
	rec := &recorder{}

	req := f.request(PKCS7ObjectSHA256)
	req.Visible = true
	res, err := newOrchestrator(rec).Sign(req)
	require.NoError(t, err)

	widget := openPDF(t, res.Destination).Trailer().Key("Root").Key("AcroForm").Key("Fields").Index(1)
	assert.True(t, widget.Key("AP").IsNull())
	assert.True(t, widget.Key("P").IsNull())

	var warnings []PhaseReport
	for _, r := range rec.reports {
		if r.Warning() {
			warnings = append(warnings, r)
		}
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, Validating, warnings[0].Phase)
	assert.True(t, IsKind(warnings[0].Err, VisibleSignatureMisconfigured))
	assert.Equal(t, Done, rec.reports[len(rec.reports)-1].Phase)
}

func TestSign_VisibleBadRectangle(t *testing.T) {
	f := newFixture(t, testpdf.Options{Fields: 1})

	for _, tc := range []struct {
		name string
		rect Rectangle
		page int
	}{
		{"zero width", Rectangle{LLX: 10, LLY: 10, URX: 10, URY: 60}, 1},
		{"page out of range", Rectangle{LLX: 10, LLY: 10, URX: 210, URY: 60}, 7},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			req := f.request(PKCS7ObjectSHA256)
			req.Visible = true
			req.Rectangle = &tc.rect
			req.Page = tc.page

			res, err := newOrchestrator(rec).Sign(req)
			require.NoError(t, err)

			widget := openPDF(t, res.Destination).Trailer().Key("Root").Key("AcroForm").Key("Fields").Index(1)
			assert.True(t, widget.Key("AP").IsNull())
			assert.True(t, IsKind(rec.reports[1].Err, VisibleSignatureMisconfigured))
		})
	}
}

func TestSign_Visible(t *testing.T) {
	f := newFixture(t, testpdf.Options{Fields: 1, Pages: 2})
	req := f.request(PKCS7ObjectSHA256)
	req.Visible = true
	req.Rectangle = &Rectangle{LLX: 50, LLY: 50, URX: 300, URY: 110}
	req.Page = 2
	req.Reason = "Reviewed"

	res, err := Sign(req)
	require.NoError(t, err)

	rdr := openPDF(t, res.Destination)
	widget := rdr.Trailer().Key("Root").Key("AcroForm").Key("Fields").Index(1)
	assert.False(t, widget.Key("AP").Key("N").IsNull())
	assert.Equal(t, 4, widget.Key("Rect").Len())

	resp, err := verify.File(res.Destination)
	require.NoError(t, err)
	assert.True(t, resp.Valid())
}

// sizedEngine returns blobs of the given lengths on successive calls.
type sizedEngine struct {
	sizes []int
	calls int
	err   error
}

func (e *sizedEngine) Sign(r io.Reader, _ crypto.Signer, _ []*x509.Certificate, _ string) ([]byte, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	size := e.sizes[e.calls]
	e.calls++
	if e.calls == len(e.sizes) && e.err != nil {
		return nil, e.err
	}
	return bytes.Repeat([]byte{0x30}, size), nil
}

func TestSign_SizeOverflow(t *testing.T) {
	f := newFixture(t, testpdf.Options{Fields: 1})
	rec := &recorder{}
	o := newOrchestrator(rec)
	o.Engine = &sizedEngine{sizes: []int{100, 101}}

	req := f.request(PKCS7ObjectSHA256)
	res, err := o.Sign(req)
	require.Error(t, err)
	assert.True(t, IsKind(err, SizeOverflow), "got %v", err)
	assert.ErrorIs(t, err, sign.ErrSizeOverflow)
	assert.Equal(t, 202, res.PlaceholderSize)

	_, statErr := os.Stat(req.DestinationPath)
	assert.True(t, os.IsNotExist(statErr), "partial destination must be removed")
	assert.Equal(t, []Phase{Validating, Estimating, Reserved, Signing, Padding, Failed}, rec.phases())
}

func TestSign_EngineFailure(t *testing.T) {
	f := newFixture(t, testpdf.Options{Fields: 1})
	o := newOrchestrator(nil)
	o.Engine = &sizedEngine{sizes: []int{100, 100}, err: errors.New("token removed")}

	req := f.request(PKCS7ObjectSHA256)
	_, err := o.Sign(req)
	assert.True(t, IsKind(err, SigningFailure), "got %v", err)
	assert.Contains(t, err.Error(), "token removed")
	assert.NoFileExists(t, req.DestinationPath)
}

func TestSign_ShortSignatureIsPadded(t *testing.T) {
	f := newFixture(t, testpdf.Options{Fields: 1})
	o := newOrchestrator(nil)
	o.Engine = &sizedEngine{sizes: []int{100, 60}}

	res, err := o.Sign(f.request(PKCS7ObjectSHA256))
	require.NoError(t, err)
	assert.Equal(t, 60, res.SignatureSize)

	sig := openPDF(t, res.Destination).Trailer().Key("Root").Key("AcroForm").Key("Fields").Index(1).Key("V")
	contents := []byte(sig.Key("Contents").RawString())
	require.Len(t, contents, 100)
	assert.Equal(t, bytes.Repeat([]byte{0x30}, 60), contents[:60])
	assert.Equal(t, make([]byte, 40), contents[60:])
}

func TestDestinationPath(t *testing.T) {
	tests := []struct {
		dest   string
		suffix bool
		want   string
	}{
		{"out.pdf", true, "out_signed.pdf"},
		{"out.pdf", false, "out.pdf"},
		{"dir/doc.PDF", true, "dir/doc_signed.PDF"},
		// Only three letter extensions are handled.
		{"doc.html", true, "doc._signedhtml"},
		{"abc", true, "abc_signed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DestinationPath(tt.dest, tt.suffix), tt.dest)
	}
}

func TestPad(t *testing.T) {
	sig := []byte{0x30, 0x82, 0x01, 0x02, 0xff}

	padded, err := Pad(sig, 16)
	require.NoError(t, err)
	assert.Len(t, padded, 16)
	assert.Equal(t, sig, padded[:len(sig)])
	assert.Equal(t, make([]byte, 11), padded[len(sig):])

	again, err := Pad(padded[:len(sig)], 16)
	require.NoError(t, err)
	assert.Equal(t, padded, again)

	exact, err := Pad(sig, len(sig))
	require.NoError(t, err)
	assert.Equal(t, sig, exact)

	_, err = Pad(sig, 4)
	assert.ErrorIs(t, err, sign.ErrSizeOverflow)
}

func TestSigningError(t *testing.T) {
	cause := errors.New("disk full")
	err := errors.Wrap(&SigningError{Kind: IOFailure, Phase: Committing, Path: "/tmp/out.pdf", Err: cause}, "sign")

	assert.True(t, IsKind(err, IOFailure))
	assert.False(t, IsKind(err, SigningFailure))
	assert.False(t, IsKind(cause, IOFailure))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "sign: i/o failure in committing phase /tmp/out.pdf: disk full", err.Error())
	assert.Equal(t, "ErrorKind(42)", ErrorKind(42).String())
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := LogObserver{Logger: zerolog.New(&buf).Level(zerolog.DebugLevel)}

	obs.Report(PhaseReport{OperationID: "op-1", Phase: Reserved, Elapsed: time.Second, Attrs: map[string]interface{}{"placeholder_size": 8194}})
	obs.Report(PhaseReport{OperationID: "op-1", Phase: Validating, Err: &SigningError{Kind: VisibleSignatureMisconfigured, Phase: Validating}})
	obs.Report(PhaseReport{OperationID: "op-1", Phase: Failed, Err: errors.New("boom")})

	dec := json.NewDecoder(&buf)
	var events []map[string]interface{}
	for dec.More() {
		var ev map[string]interface{}
		require.NoError(t, dec.Decode(&ev))
		events = append(events, ev)
	}
	require.Len(t, events, 3)

	assert.Equal(t, "debug", events[0]["level"])
	assert.Equal(t, "op-1", events[0]["operation"])
	assert.Equal(t, "reserved", events[0]["phase"])
	assert.Equal(t, float64(8194), events[0]["placeholder_size"])

	assert.Equal(t, "warn", events[1]["level"])
	assert.Equal(t, "error", events[2]["level"])
	assert.Equal(t, "boom", events[2]["error"])
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "committing", Committing.String())
	assert.Equal(t, "Phase(20)", Phase(20).String())
}
