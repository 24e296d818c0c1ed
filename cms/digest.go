package cms

import (
	"crypto"
	_ "crypto/sha1" // register SHA-1
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/asn1"
	"errors"
	"fmt"
	"strings"

	"github.com/digitorus/pkcs7"
)

// Digest algorithm names as carried by signature types.
const (
	DigestMD5    = "MD5"
	DigestSHA1   = "SHA-1"
	DigestSHA256 = "SHA-256"
	DigestSHA384 = "SHA-384"
	DigestSHA512 = "SHA-512"
)

// ErrUnsupportedAlgorithm is returned for empty, unknown or unimplemented
// digest algorithm names.
var ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")

type digest struct {
	hash crypto.Hash
	oid  asn1.ObjectIdentifier
}

var digests = map[string]digest{
	"SHA1":   {crypto.SHA1, pkcs7.OIDDigestAlgorithmSHA1},
	"SHA256": {crypto.SHA256, pkcs7.OIDDigestAlgorithmSHA256},
	"SHA384": {crypto.SHA384, pkcs7.OIDDigestAlgorithmSHA384},
	"SHA512": {crypto.SHA512, pkcs7.OIDDigestAlgorithmSHA512},
}

// known lists names that are recognised but cannot be used with CMS here.
var known = map[string]bool{
	"MD5": true,
}

// Lookup resolves a digest algorithm name such as "SHA-256" to its hash
// function and CMS object identifier. Matching ignores case and dashes.
func Lookup(name string) (crypto.Hash, asn1.ObjectIdentifier, error) {
	key := normalize(name)
	if key == "" {
		return 0, nil, fmt.Errorf("%w: empty algorithm name", ErrUnsupportedAlgorithm)
	}
	d, ok := digests[key]
	if !ok {
		if known[key] {
			return 0, nil, fmt.Errorf("%w: %s has no CMS implementation", ErrUnsupportedAlgorithm, name)
		}
		return 0, nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
	return d.hash, d.oid, nil
}

// Supported reports whether name can be used to sign.
func Supported(name string) bool {
	_, ok := digests[normalize(name)]
	return ok
}

func normalize(name string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
}

func getOIDFromHashAlgorithm(target crypto.Hash) asn1.ObjectIdentifier {
	for _, d := range digests {
		if d.hash == target {
			return d.oid
		}
	}
	return nil
}
