package cli

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/digitorus/pdfseal"
	"github.com/digitorus/pdfseal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type signOptions struct {
	configPath string
	settings   config.Config
}

func newSignCmd() *cobra.Command {
	var opts signOptions
	s := &opts.settings.Signature
	k := &opts.settings.Key

	cmd := &cobra.Command{
		Use:   "sign [flags] <input.pdf> <output.pdf>",
		Short: "Sign a PDF file with a digital signature",
		Example: `  pdfseal sign --cert signer.crt --key signer.key --chain chain.crt input.pdf output.pdf
  pdfseal sign --p12 signer.p12 --p12-password secret --type PKCS7_OBJECT_SHA512 input.pdf output.pdf
  pdfseal sign --config pdfseal.toml --visible --rect 50,50,250,100 input.pdf output.pdf`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			return signPDF(settings, args[0], args[1])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Config file with signing defaults (.toml, .yaml), "+config.DefaultLocation+" when present")
	flags.StringVar(&s.Type, "type", "", "Signature type name or id, see 'pdfseal types' (default PKCS7_OBJECT_SHA256)")
	flags.StringVar(&s.Reason, "reason", "", "Reason for signing")
	flags.StringVar(&s.Location, "location", "", "Location of the signatory")
	flags.StringVar(&s.Contact, "contact", "", "Contact information for signatory (default signer common name)")
	flags.BoolVar(&s.AppendSuffix, "suffix", false, "Insert _signed before the extension of the output name")
	flags.BoolVar(&s.Visible, "visible", false, "Add a visible signature appearance")
	flags.StringVar(&s.Rect, "rect", "", "Visible signature rectangle llx,lly,urx,ury in points")
	flags.IntVar(&s.Page, "page", 1, "Page of the visible signature")
	flags.StringVar(&k.Cert, "cert", "", "Signer certificate (PEM or DER)")
	flags.StringVar(&k.Key, "key", "", "Signer private key (PEM or DER)")
	flags.StringVar(&k.Chain, "chain", "", "PEM certificates to build the chain up to the root")
	flags.StringVar(&k.P12, "p12", "", "PKCS#12 keystore with key and chain")
	flags.StringVar(&k.P12Password, "p12-password", "", "PKCS#12 keystore password")

	return cmd
}

// resolve merges the config file with the flags set on the command line.
// Without --config, config.DefaultLocation is read when it exists.
func (o *signOptions) resolve(cmd *cobra.Command) (config.Config, error) {
	path := o.configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultLocation); err == nil {
			path = config.DefaultLocation
		}
	}
	if path == "" {
		return o.settings, o.settings.ValidateFields()
	}

	c, err := config.Read(path)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	s, k := o.settings.Signature, o.settings.Key
	override("type", &c.Signature.Type, s.Type)
	override("reason", &c.Signature.Reason, s.Reason)
	override("location", &c.Signature.Location, s.Location)
	override("contact", &c.Signature.Contact, s.Contact)
	override("rect", &c.Signature.Rect, s.Rect)
	if flags.Changed("suffix") {
		c.Signature.AppendSuffix = s.AppendSuffix
	}
	if flags.Changed("visible") {
		c.Signature.Visible = s.Visible
	}
	if flags.Changed("page") || c.Signature.Page == 0 {
		c.Signature.Page = s.Page
	}

	// Key material given on the command line replaces the configured one.
	if flags.Changed("p12") || flags.Changed("cert") || flags.Changed("key") {
		c.Key = k
	} else {
		override("chain", &c.Key.Chain, k.Chain)
		override("p12-password", &c.Key.P12Password, k.P12Password)
	}

	return *c, c.ValidateFields()
}

func loadSigner(k config.Key) (crypto.Signer, []*x509.Certificate, error) {
	switch {
	case k.P12 != "":
		return LoadPKCS12(k.P12, k.P12Password)
	case k.Cert != "" && k.Key != "":
		return LoadCertificatesAndKey(k.Cert, k.Key, k.Chain)
	default:
		return nil, nil, errors.New("signing requires --cert and --key, or --p12")
	}
}

func signPDF(c config.Config, input, output string) error {
	st, err := c.Signature.SignatureType()
	if err != nil {
		return err
	}
	rect, err := c.Signature.Rectangle()
	if err != nil {
		return err
	}

	key, chain, err := loadSigner(c.Key)
	if err != nil {
		return fmt.Errorf("failed to load signer: %w", err)
	}
	log.Debug().
		Str("subject", chain[0].Subject.CommonName).
		Str("serial", chain[0].SerialNumber.String()).
		Int("chain", len(chain)).
		Msg("loaded signer certificate")

	o := &pdfseal.Orchestrator{Observer: pdfseal.LogObserver{Logger: log.Logger}}
	res, err := o.Sign(pdfseal.SigningRequest{
		SourcePath:       input,
		DestinationPath:  output,
		AppendSuffix:     c.Signature.AppendSuffix,
		CertificateChain: chain,
		PrivateKey:       key,
		SignatureType:    st,
		Reason:           c.Signature.Reason,
		Location:         c.Signature.Location,
		Contact:          c.Signature.Contact,
		Visible:          c.Signature.Visible,
		Rectangle:        rect,
		Page:             c.Signature.Page,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("operation", res.OperationID).
		Str("type", res.SignatureType.Name).
		Msg("Signed PDF written to " + res.Destination)
	return nil
}
