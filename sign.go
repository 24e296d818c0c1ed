// Package pdfseal signs PDF documents with a PKCS#7 signature embedded in an
// incremental update.
//
// A signing operation estimates the size of the signature from a probe,
// reserves a placeholder of exactly that size, hashes every document byte
// outside the placeholder, and writes the zero padded signature over the
// placeholder:
//
//	res, err := pdfseal.Sign(pdfseal.SigningRequest{
//	    SourcePath:       "contract.pdf",
//	    DestinationPath:  "contract.pdf",
//	    AppendSuffix:     true,
//	    CertificateChain: chain,
//	    PrivateKey:       key,
//	    SignatureType:    pdfseal.PKCS7ObjectSHA256,
//	})
package pdfseal

import (
	"crypto"
	"crypto/x509"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/digitorus/pdfseal/cms"
	"github.com/digitorus/pdfseal/sign"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Suffix is inserted into the destination name when AppendSuffix is set.
const Suffix = "_signed"

// Orchestrator runs signing operations. The zero value signs with
// cms.Detached, reports to nobody and uses the wall clock.
type Orchestrator struct {
	Engine   cms.Engine
	Observer Observer
	Now      func() time.Time
}

// Sign signs req with a zero Orchestrator.
func Sign(req SigningRequest) (Result, error) {
	return (&Orchestrator{}).Sign(req)
}

// SignFile signs sourcePath into destinationPath and returns the path that
// was written.
func SignFile(sourcePath, destinationPath string, appendSuffix bool,
	chain []*x509.Certificate, key crypto.Signer, signatureType SignatureType,
	reason, location string, visible bool, rect *Rectangle) (string, error) {
	res, err := Sign(SigningRequest{
		SourcePath:       sourcePath,
		DestinationPath:  destinationPath,
		AppendSuffix:     appendSuffix,
		CertificateChain: chain,
		PrivateKey:       key,
		SignatureType:    signatureType,
		Reason:           reason,
		Location:         location,
		Visible:          visible,
		Rectangle:        rect,
	})
	if err != nil {
		return "", err
	}
	return res.Destination, nil
}

// DestinationPath returns dest, with Suffix inserted before its last four
// characters when appendSuffix is set. The rule assumes a three letter
// extension such as ".pdf"; names shorter than four characters get the
// suffix appended.
func DestinationPath(dest string, appendSuffix bool) string {
	if !appendSuffix {
		return dest
	}
	if len(dest) < 4 {
		return dest + Suffix
	}
	return dest[:len(dest)-4] + Suffix + dest[len(dest)-4:]
}

// Pad returns sig zero padded on the right to exactly size bytes.
func Pad(sig []byte, size int) ([]byte, error) {
	if len(sig) > size {
		return nil, errors.Wrapf(sign.ErrSizeOverflow, "signature is %d bytes, %d estimated", len(sig), size)
	}
	padded := make([]byte, size)
	copy(padded, sig)
	return padded, nil
}

// Sign runs one signing operation. On failure the returned error is a
// *SigningError and no destination file is left behind.
func (o *Orchestrator) Sign(req SigningRequest) (Result, error) {
	op := o.begin()
	result := Result{OperationID: op.id, SignatureType: req.SignatureType}

	op.enter(Validating, map[string]interface{}{
		"source": req.SourcePath,
		"type":   req.SignatureType.Name,
	})
	job, err := o.validate(op, req)
	if err != nil {
		return result, err
	}
	result.Destination = job.destination

	if req.SignatureType.Method == SignatureField {
		err = o.sealLegacy(op, job, &result)
	} else {
		err = o.signDetached(op, job, &result)
	}
	if err != nil {
		job.discard()
		return result, err
	}

	if err := job.out.Close(); err != nil {
		os.Remove(job.destination)
		return result, op.fail(IOFailure, Committing, job.destination, errors.Wrap(err, "close destination"))
	}
	op.enter(Done, map[string]interface{}{
		"destination":      job.destination,
		"placeholder_size": result.PlaceholderSize,
		"signature_size":   result.SignatureSize,
	})
	return result, nil
}

// job holds the resources of one operation once validation passed.
type job struct {
	req         SigningRequest
	destination string
	patcher     *sign.Patcher
	out         *os.File
}

func (j *job) discard() {
	if j.out != nil {
		j.out.Close()
		os.Remove(j.destination)
	}
}

func (o *Orchestrator) validate(op *operation, req SigningRequest) (*job, error) {
	reject := func(kind ErrorKind, path string, err error) (*job, error) {
		return nil, op.fail(kind, Validating, path, err)
	}

	if req.SourcePath == "" {
		return reject(InvalidArgument, "", errors.New("source path is empty"))
	}
	if req.DestinationPath == "" {
		return reject(InvalidArgument, "", errors.New("destination path is empty"))
	}
	info, err := os.Stat(req.SourcePath)
	if err != nil {
		return reject(SourceNotFound, req.SourcePath, err)
	}
	if info.IsDir() {
		return reject(SourceNotFound, req.SourcePath, errors.New("source is a directory"))
	}

	destination := DestinationPath(req.DestinationPath, req.AppendSuffix)
	if filepath.Clean(destination) == filepath.Clean(req.SourcePath) {
		return reject(InvalidArgument, destination, errors.New("destination would overwrite the source"))
	}

	switch req.SignatureType.Method {
	case SignatureField, PKCS7Object:
	default:
		return reject(InvalidArgument, "", errors.Errorf("signature type %q has no signing method", req.SignatureType.Name))
	}
	if req.PrivateKey == nil {
		return reject(InvalidArgument, "", cms.ErrNilSigner)
	}
	if len(req.CertificateChain) == 0 || req.CertificateChain[0] == nil {
		return reject(InvalidArgument, "", cms.ErrEmptyChain)
	}
	if err := cms.ValidateSignerCertificateMatch(req.PrivateKey, req.CertificateChain[0]); err != nil {
		return reject(InvalidArgument, "", err)
	}

	src, err := os.Open(req.SourcePath)
	if err != nil {
		return reject(IOFailure, req.SourcePath, errors.Wrap(err, "open source"))
	}
	defer src.Close()

	// The patcher keeps its own copy of the source bytes.
	patcher, err := sign.New(src, info.Size(), nil)
	if err != nil {
		return reject(InvalidArgument, req.SourcePath, err)
	}

	signer := req.CertificateChain[0].Subject.CommonName
	contact := req.Contact
	if contact == "" {
		contact = signer
	}
	if err := patcher.SetMetadata(sign.Metadata{
		Name:     signer,
		Contact:  contact,
		Reason:   req.Reason,
		Location: req.Location,
		Date:     o.now(),
	}); err != nil {
		return reject(InvalidArgument, "", err)
	}

	if req.Visible {
		o.configureAppearance(op, patcher, req)
	}

	return &job{req: req, destination: destination, patcher: patcher}, nil
}

// configureAppearance applies the visible signature settings. A missing or
// unusable rectangle is reported as a warning and the document is signed
// without an appearance.
func (o *Orchestrator) configureAppearance(op *operation, p *sign.Patcher, req SigningRequest) {
	page := req.Page
	if page == 0 {
		page = 1
	}

	var err error
	if req.Rectangle == nil {
		err = errors.New("visible signature requested without a rectangle")
	} else {
		err = p.SetVisibleAppearance(*req.Rectangle, page)
	}
	if err != nil {
		op.warn(Validating, &SigningError{
			Kind:  VisibleSignatureMisconfigured,
			Phase: Validating,
			Err:   err,
		})
	}
}

// create opens the destination for writing, creating its directory.
func (j *job) create(op *operation, phase Phase) error {
	if err := os.MkdirAll(filepath.Dir(j.destination), 0755); err != nil {
		return op.fail(IOFailure, phase, j.destination, errors.Wrap(err, "create destination directory"))
	}
	out, err := os.Create(j.destination)
	if err != nil {
		return op.fail(IOFailure, phase, j.destination, errors.Wrap(err, "create destination"))
	}
	j.out = out
	j.patcher.SetOutput(out)
	return nil
}

func (o *Orchestrator) signDetached(op *operation, j *job, result *Result) error {
	req := j.req
	digest := req.SignatureType.HashAlgorithm

	op.enter(Estimating, map[string]interface{}{"digest": digest})
	if _, _, err := cms.Lookup(digest); err != nil {
		return op.fail(AlgorithmUnsupported, Estimating, "", err)
	}
	engine := o.engine()
	estimated, err := cms.Estimate(engine, req.PrivateKey, req.CertificateChain, digest)
	if err != nil {
		return op.fail(SigningFailure, Estimating, "", errors.Wrap(err, "estimate signature size"))
	}

	if err := j.create(op, Reserved); err != nil {
		return err
	}
	placeholder := 2*estimated + 2
	op.enter(Reserved, map[string]interface{}{"placeholder_size": placeholder})
	res, err := j.patcher.Reserve(placeholder)
	if err != nil {
		return op.fail(IOFailure, Reserved, j.destination, errors.Wrap(err, "reserve placeholder"))
	}
	result.PlaceholderSize = res.Size()
	result.ByteRange = res.ByteRange()

	leaf := req.CertificateChain[0]
	op.enter(Signing, map[string]interface{}{
		"signer": leaf.Subject.CommonName,
		"serial": leaf.SerialNumber.String(),
	})
	signature, err := engine.Sign(res.RangeStream(), req.PrivateKey, req.CertificateChain, digest)
	if err != nil {
		return op.fail(SigningFailure, Signing, "", errors.Wrap(err, "sign byte ranges"))
	}
	result.SignatureSize = len(signature)

	op.enter(Padding, nil)
	padded, err := Pad(signature, estimated)
	if err != nil {
		return op.fail(SizeOverflow, Padding, j.destination, err)
	}

	op.enter(Committing, map[string]interface{}{"document_size": res.Len()})
	if err := res.Commit(sign.HexString(padded)); err != nil {
		return op.fail(IOFailure, Committing, j.destination, errors.Wrap(err, "commit signature"))
	}
	return nil
}

// sealLegacy signs in one pass with an embedded SHA-1 digest.
func (o *Orchestrator) sealLegacy(op *operation, j *job, result *Result) error {
	req := j.req

	if err := j.create(op, Signing); err != nil {
		return err
	}
	if err := j.patcher.SetSubFilter(sign.LegacySHA1); err != nil {
		return op.fail(SigningFailure, Signing, "", err)
	}

	size, err := cms.HeuristicSize(req.CertificateChain, crypto.SHA1)
	if err != nil {
		return op.fail(SigningFailure, Signing, "", errors.Wrap(err, "size legacy signature"))
	}

	op.enter(Signing, map[string]interface{}{
		"signer": req.CertificateChain[0].Subject.CommonName,
		"serial": req.CertificateChain[0].SerialNumber.String(),
	})
	res, err := j.patcher.Seal(size, func(r io.Reader) ([]byte, error) {
		signature, err := cms.SealDigest(r, req.PrivateKey, req.CertificateChain)
		result.SignatureSize = len(signature)
		return signature, err
	})
	if err != nil {
		if errors.Is(err, sign.ErrSizeOverflow) {
			return op.fail(SizeOverflow, Signing, j.destination, err)
		}
		return op.fail(SigningFailure, Signing, j.destination, errors.Wrap(err, "seal document"))
	}
	result.PlaceholderSize = res.Size()
	result.ByteRange = res.ByteRange()
	return nil
}

func (o *Orchestrator) engine() cms.Engine {
	if o.Engine != nil {
		return o.Engine
	}
	return cms.Detached{}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// operation tracks the reports of one Sign call.
type operation struct {
	id       string
	observer Observer
	started  time.Time
	clock    func() time.Time
}

func (o *Orchestrator) begin() *operation {
	op := &operation{
		id:       uuid.NewString(),
		observer: o.Observer,
		clock:    o.now,
	}
	op.started = op.clock()
	return op
}

func (op *operation) report(r PhaseReport) {
	if op.observer == nil {
		return
	}
	r.OperationID = op.id
	r.Elapsed = op.clock().Sub(op.started)
	op.observer.Report(r)
}

func (op *operation) enter(phase Phase, attrs map[string]interface{}) {
	op.report(PhaseReport{Phase: phase, Attrs: attrs})
}

func (op *operation) warn(phase Phase, err error) {
	op.report(PhaseReport{Phase: phase, Err: err})
}

// fail reports the terminal state and returns the SigningError.
func (op *operation) fail(kind ErrorKind, phase Phase, path string, err error) error {
	se := &SigningError{Kind: kind, Phase: phase, Path: path, Err: err}
	terminal := Failed
	if phase == Validating {
		terminal = Rejected
	}
	op.report(PhaseReport{Phase: terminal, Err: se})
	return se
}
