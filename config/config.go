// Package config reads the signing defaults of the pdfseal command from a
// TOML or YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/asaskevich/govalidator"
	"github.com/digitorus/pdfseal"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

func init() {
	govalidator.SetFieldsRequiredByDefault(true)

	govalidator.TagMap["signaturetype"] = govalidator.Validator(func(str string) bool {
		_, err := pdfseal.ParseSignatureType(str)
		return err == nil
	})
	govalidator.TagMap["rectangle"] = govalidator.Validator(func(str string) bool {
		_, err := ParseRectangle(str)
		return err == nil
	})
}

// DefaultLocation of the config file.
const DefaultLocation = "./pdfseal.toml"

// Config is the root of the config.
type Config struct {
	Signature Signature `toml:"signature" yaml:"signature" valid:"-"`
	Key       Key       `toml:"key" yaml:"key" valid:"-"`
}

// Signature holds the defaults of a signing request.
type Signature struct {
	// Type is a signature type name or id, PKCS7_OBJECT_SHA256 when empty.
	Type         string `toml:"type" yaml:"type" valid:"signaturetype,optional"`
	Reason       string `toml:"reason" yaml:"reason" valid:"optional"`
	Location     string `toml:"location" yaml:"location" valid:"optional"`
	Contact      string `toml:"contact" yaml:"contact" valid:"optional"`
	AppendSuffix bool   `toml:"append-suffix" yaml:"append-suffix" valid:"optional"`
	Visible      bool   `toml:"visible" yaml:"visible" valid:"optional"`
	// Rect is "llx,lly,urx,ury" in points.
	Rect string `toml:"rect" yaml:"rect" valid:"rectangle,optional"`
	Page int    `toml:"page" yaml:"page" valid:"range(0|65535),optional"`
}

// Key locates the signer key and certificates, either as PEM or DER files
// or as a PKCS#12 keystore.
type Key struct {
	Cert        string `toml:"cert" yaml:"cert" valid:"optional"`
	Key         string `toml:"key" yaml:"key" valid:"optional"`
	Chain       string `toml:"chain" yaml:"chain" valid:"optional"`
	P12         string `toml:"p12" yaml:"p12" valid:"optional"`
	P12Password string `toml:"p12-password" yaml:"p12-password" valid:"optional"`
}

// ValidateFields validates all the fields of the config.
func (c Config) ValidateFields() error {
	if _, err := govalidator.ValidateStruct(c.Signature); err != nil {
		return errors.Wrap(err, "signature")
	}
	if _, err := govalidator.ValidateStruct(c.Key); err != nil {
		return errors.Wrap(err, "key")
	}
	if c.Key.P12 != "" && (c.Key.Cert != "" || c.Key.Key != "") {
		return errors.New("key: p12 cannot be combined with cert and key")
	}
	if (c.Key.Cert == "") != (c.Key.Key == "") {
		return errors.New("key: cert and key must be set together")
	}
	return nil
}

// SignatureType resolves the configured signature type.
func (s Signature) SignatureType() (pdfseal.SignatureType, error) {
	if s.Type == "" {
		return pdfseal.PKCS7ObjectSHA256, nil
	}
	return pdfseal.ParseSignatureType(s.Type)
}

// Rectangle returns the configured rectangle, nil when none is set.
func (s Signature) Rectangle() (*pdfseal.Rectangle, error) {
	if s.Rect == "" {
		return nil, nil
	}
	r, err := ParseRectangle(s.Rect)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Read decodes and validates the config file at path. The format follows
// the extension: .toml, .yaml or .yml.
func Read(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "config file is missing: %s", path)
	}

	var c Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml", ".conf":
		md, err := toml.DecodeFile(path, &c)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("unknown config key %q in %s", undecoded[0].String(), path)
		}
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", path)
		}
	default:
		return nil, errors.Errorf("unsupported config format %q", ext)
	}

	if err := c.ValidateFields(); err != nil {
		return nil, errors.Wrap(err, "config is not valid")
	}
	return &c, nil
}

// ParseRectangle parses "llx,lly,urx,ury". The rectangle must be at least
// one point wide and high.
func ParseRectangle(s string) (pdfseal.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return pdfseal.Rectangle{}, fmt.Errorf("rectangle %q must have four comma separated values", s)
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return pdfseal.Rectangle{}, fmt.Errorf("rectangle %q: %w", s, err)
		}
		v[i] = f
	}

	r := pdfseal.Rectangle{LLX: v[0], LLY: v[1], URX: v[2], URY: v[3]}
	if r.Width() < 1 || r.Height() < 1 {
		return pdfseal.Rectangle{}, fmt.Errorf("rectangle %q is smaller than one point", s)
	}
	return r, nil
}
