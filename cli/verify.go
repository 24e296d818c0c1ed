package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/digitorus/pdfseal/verify"
	"github.com/spf13/cobra"
)

var errInvalidSignature = errors.New("document contains invalid signatures")

func newVerifyCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verify [flags] <input.pdf>",
		Short: "Verify the digital signatures of a PDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return verifyPDF(cmd.OutOrStdout(), args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

type signerReport struct {
	Field       string     `json:"field"`
	Name        string     `json:"name"`
	Reason      string     `json:"reason,omitempty"`
	Location    string     `json:"location,omitempty"`
	ContactInfo string     `json:"contact_info,omitempty"`
	SigningTime *time.Time `json:"signing_time,omitempty"`
	SubFilter   string     `json:"sub_filter"`
	ByteRange   []int64    `json:"byte_range"`
	Subject     string     `json:"subject,omitempty"`
	Serial      string     `json:"serial,omitempty"`
	Whole       bool       `json:"covers_whole_document"`
	Valid       bool       `json:"valid_signature"`
	Error       string     `json:"error,omitempty"`
}

func newSignerReport(s verify.Signer) signerReport {
	r := signerReport{
		Field:       s.Field,
		Name:        s.Name,
		Reason:      s.Reason,
		Location:    s.Location,
		ContactInfo: s.ContactInfo,
		SigningTime: s.SigningTime,
		SubFilter:   s.SubFilter,
		ByteRange:   s.ByteRange.Values(),
		Whole:       s.CoversWholeDocument,
		Valid:       s.ValidSignature,
	}
	if s.Certificate != nil {
		r.Subject = s.Certificate.Subject.CommonName
		r.Serial = s.Certificate.SerialNumber.String()
	}
	if s.Err != nil {
		r.Error = s.Err.Error()
	}
	return r
}

func verifyPDF(w io.Writer, input string, asJSON bool) error {
	resp, err := verify.File(input)
	if err != nil {
		return err
	}

	reports := make([]signerReport, 0, len(resp.Signers))
	for _, s := range resp.Signers {
		reports = append(reports, newSignerReport(s))
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			status := "valid"
			if !r.Valid {
				status = "INVALID: " + r.Error
			}
			fmt.Fprintf(w, "%s: %s (%s) %s\n", r.Field, r.Name, r.SubFilter, status)
			if r.SigningTime != nil {
				fmt.Fprintf(w, "  signed at %s\n", r.SigningTime.Format(time.RFC3339))
			}
			if r.Reason != "" {
				fmt.Fprintf(w, "  reason: %s\n", r.Reason)
			}
			if r.Location != "" {
				fmt.Fprintf(w, "  location: %s\n", r.Location)
			}
			fmt.Fprintf(w, "  byte range: %v\n", r.ByteRange)
			if !r.Whole {
				fmt.Fprintln(w, "  document was modified after this signature")
			}
		}
	}

	if !resp.Valid() {
		return errInvalidSignature
	}
	return nil
}
