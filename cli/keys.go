package cli

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// LoadCertificatesAndKey reads a signer certificate and private key, PEM or
// DER encoded. When chainPath is set the leaf is verified against the
// certificates in it and the returned chain runs from the leaf to the root.
func LoadCertificatesAndKey(certPath, keyPath, chainPath string) (crypto.Signer, []*x509.Certificate, error) {
	certData, err := os.ReadFile(certPath)
	if err != nil {
		return nil, nil, err
	}
	cert, err := parseCertificate(certData)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", certPath, err)
	}

	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, err
	}
	key, err := parsePrivateKey(keyData)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", keyPath, err)
	}

	chain := []*x509.Certificate{cert}
	if chainPath != "" {
		if chain, err = LoadCertificateChain(chainPath, cert); err != nil {
			return nil, nil, err
		}
	}
	return key, chain, nil
}

// LoadCertificateChain builds the chain of cert from the PEM certificates in
// chainPath, which must include the root.
func LoadCertificateChain(chainPath string, cert *x509.Certificate) ([]*x509.Certificate, error) {
	chainData, err := os.ReadFile(chainPath)
	if err != nil {
		return nil, err
	}

	var certs []*x509.Certificate
	for rest := chainData; len(rest) > 0; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", chainPath, err)
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%s: no PEM certificates found", chainPath)
	}

	// Self-signed certificates are the only anchors.
	roots := x509.NewCertPool()
	intermediates := x509.NewCertPool()
	for _, c := range certs {
		if bytes.Equal(c.RawIssuer, c.RawSubject) {
			roots.AddCert(c)
		} else {
			intermediates.AddCert(c)
		}
	}

	certificateChains, err := cert.Verify(x509.VerifyOptions{
		Intermediates: intermediates,
		Roots:         roots,
		CurrentTime:   cert.NotBefore,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build certificate chain: %w", err)
	}
	return certificateChains[0], nil
}

// LoadPKCS12 reads the signer key and chain from a PKCS#12 keystore.
func LoadPKCS12(path, password string) (crypto.Signer, []*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	key, cert, caCerts, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, nil, fmt.Errorf("%s: key of type %T cannot sign", path, key)
	}
	return signer, append([]*x509.Certificate{cert}, caCerts...), nil
}

func parseCertificate(data []byte) (*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, errors.New("certificate data is empty")
	}
	if block, _ := pem.Decode(data); block != nil {
		data = block.Bytes
	}
	return x509.ParseCertificate(data)
}

func parsePrivateKey(data []byte) (crypto.Signer, error) {
	if block, _ := pem.Decode(data); block != nil {
		data = block.Bytes
	}

	if key, err := x509.ParsePKCS1PrivateKey(data); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(data); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(data)
	if err != nil {
		return nil, errors.New("failed to parse private key")
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("key of type %T cannot sign", key)
	}
	return signer, nil
}
