// Package testpki issues short-lived certificate hierarchies for tests.
package testpki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// KeyProfile defines the cryptographic settings for the PKI.
type KeyProfile string

const (
	RSA_2048   KeyProfile = "RSA_2048"
	RSA_3072   KeyProfile = "RSA_3072"
	ECDSA_P256 KeyProfile = "ECDSA_P256"
	ECDSA_P384 KeyProfile = "ECDSA_P384"
	ECDSA_P521 KeyProfile = "ECDSA_P521"
)

type TestPKIConfig struct {
	Profile         KeyProfile
	IntermediateCAs int
}

// TestPKI manages a temporary PKI hierarchy for testing.
type TestPKI struct {
	T                 *testing.T
	RootKey           crypto.Signer
	RootCert          *x509.Certificate
	IntermediateKeys  []crypto.Signer
	IntermediateCerts []*x509.Certificate
	Profile           KeyProfile
}

// NewTestPKI creates a Root CA with one intermediate using RSA 2048 keys.
func NewTestPKI(t *testing.T) *TestPKI {
	return NewTestPKIWithConfig(t, TestPKIConfig{
		Profile:         RSA_2048,
		IntermediateCAs: 1,
	})
}

// NewTestPKIWithConfig allows detailed configuration of the PKI.
func NewTestPKIWithConfig(t *testing.T, config TestPKIConfig) *TestPKI {
	rootKey := GenerateKey(t, config.Profile)

	rootTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   "PDFSeal Test Root CA",
			Organization: []string{"PDFSeal Test Org"},
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SubjectKeyId:          []byte{1, 2, 3, 4},
	}

	rootBytes, err := x509.CreateCertificate(rand.Reader, rootTemplate, rootTemplate, rootKey.Public(), rootKey)
	if err != nil {
		Fail(t, "failed to create root cert: %v", err)
	}
	rootCert, err := x509.ParseCertificate(rootBytes)
	if err != nil {
		Fail(t, "failed to parse root cert: %v", err)
	}

	var intermediateKeys []crypto.Signer
	var intermediateCerts []*x509.Certificate

	parentKey := rootKey
	parentCert := rootCert

	for i := 0; i < config.IntermediateCAs; i++ {
		key := GenerateKey(t, config.Profile)
		template := &x509.Certificate{
			SerialNumber: big.NewInt(int64(i + 2)),
			Subject: pkix.Name{
				CommonName:   fmt.Sprintf("PDFSeal Test Intermediate CA %d", i+1),
				Organization: []string{"PDFSeal Test Org"},
			},
			NotBefore:             time.Now().Add(-1 * time.Hour),
			NotAfter:              time.Now().Add(24 * time.Hour),
			KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
			BasicConstraintsValid: true,
			IsCA:                  true,
			MaxPathLen:            0,
			SubjectKeyId:          []byte{5, 6, 7, 8, byte(i)},
			AuthorityKeyId:        parentCert.SubjectKeyId,
		}

		certBytes, err := x509.CreateCertificate(rand.Reader, template, parentCert, key.Public(), parentKey)
		if err != nil {
			Fail(t, "failed to create intermediate cert %d: %v", i, err)
		}
		cert, err := x509.ParseCertificate(certBytes)
		if err != nil {
			Fail(t, "failed to parse intermediate cert %d: %v", i, err)
		}

		intermediateKeys = append(intermediateKeys, key)
		intermediateCerts = append(intermediateCerts, cert)

		parentKey = key
		parentCert = cert
	}

	return &TestPKI{
		T:                 t,
		RootKey:           rootKey,
		RootCert:          rootCert,
		IntermediateKeys:  intermediateKeys,
		IntermediateCerts: intermediateCerts,
		Profile:           config.Profile,
	}
}

// IssueLeaf generates a document signing certificate issued by the last
// intermediate, or by the root when there is none.
func (p *TestPKI) IssueLeaf(commonName string) (crypto.Signer, *x509.Certificate) {
	priv := GenerateKey(p.T, p.Profile)

	serialNumber, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{"PDFSeal Test Org"},
		},
		NotBefore:   time.Now().Add(-1 * time.Hour),
		NotAfter:    time.Now().Add(1 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}

	issuerCert, issuerKey := p.RootCert, p.RootKey
	if len(p.IntermediateCerts) > 0 {
		issuerCert = p.IntermediateCerts[len(p.IntermediateCerts)-1]
		issuerKey = p.IntermediateKeys[len(p.IntermediateKeys)-1]
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, issuerCert, priv.Public(), issuerKey)
	if err != nil {
		Fail(p.T, "failed to issue leaf cert: %v", err)
	}

	leafCert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		Fail(p.T, "failed to parse leaf cert: %v", err)
	}

	return priv, leafCert
}

// Chain returns the issuer chain of a leaf (Intermediate -> Root).
func (p *TestPKI) Chain() []*x509.Certificate {
	var chain []*x509.Certificate
	for i := len(p.IntermediateCerts) - 1; i >= 0; i-- {
		chain = append(chain, p.IntermediateCerts[i])
	}
	chain = append(chain, p.RootCert)
	return chain
}

// SignerChain issues a leaf and returns its key with the full chain, leaf first.
func (p *TestPKI) SignerChain(commonName string) (crypto.Signer, []*x509.Certificate) {
	key, leaf := p.IssueLeaf(commonName)
	return key, append([]*x509.Certificate{leaf}, p.Chain()...)
}

func Fail(t *testing.T, format string, args ...interface{}) {
	if t != nil {
		t.Fatalf(format, args...)
	} else {
		log.Fatalf(format, args...)
	}
}

func GenerateKey(t *testing.T, profile KeyProfile) crypto.Signer {
	switch profile {
	case RSA_2048:
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			Fail(t, "failed to generate RSA 2048 key: %v", err)
		}
		return k
	case RSA_3072:
		k, err := rsa.GenerateKey(rand.Reader, 3072)
		if err != nil {
			Fail(t, "failed to generate RSA 3072 key: %v", err)
		}
		return k
	case ECDSA_P256:
		k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			Fail(t, "failed to generate P-256 key: %v", err)
		}
		return k
	case ECDSA_P384:
		k, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		if err != nil {
			Fail(t, "failed to generate P-384 key: %v", err)
		}
		return k
	case ECDSA_P521:
		k, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
		if err != nil {
			Fail(t, "failed to generate P-521 key: %v", err)
		}
		return k
	default:
		Fail(t, "unknown key profile: %s", profile)
		return nil
	}
}

// Files holds the paths written by WritePEM and WritePKCS12.
type Files struct {
	Cert  string
	Key   string
	Chain string
	P12   string
}

// WritePEM writes the leaf certificate, its PKCS#8 key and the issuer chain
// as PEM files into dir.
func WritePEM(t *testing.T, dir string, key crypto.Signer, chain []*x509.Certificate) Files {
	files := Files{
		Cert:  filepath.Join(dir, "signer.crt"),
		Key:   filepath.Join(dir, "signer.key"),
		Chain: filepath.Join(dir, "chain.crt"),
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		Fail(t, "failed to marshal key: %v", err)
	}
	write(t, files.Key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	write(t, files.Cert, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: chain[0].Raw}))

	var rest []byte
	for _, cert := range chain[1:] {
		rest = append(rest, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})...)
	}
	write(t, files.Chain, rest)

	return files
}

// WritePKCS12 writes the key and chain into a password protected keystore.
func WritePKCS12(t *testing.T, dir, password string, key crypto.Signer, chain []*x509.Certificate) Files {
	data, err := pkcs12.Modern2023.Encode(key, chain[0], chain[1:], password)
	if err != nil {
		Fail(t, "failed to encode pkcs12: %v", err)
	}
	files := Files{P12: filepath.Join(dir, "signer.p12")}
	write(t, files.P12, data)
	return files
}

func write(t *testing.T, path string, data []byte) {
	if err := os.WriteFile(path, data, 0600); err != nil {
		Fail(t, "failed to write %s: %v", path, err)
	}
}
