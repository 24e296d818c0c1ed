package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/digitorus/pdfseal"
	"github.com/digitorus/pdfseal/cms"
	"github.com/spf13/cobra"
)

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the supported signature types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMETHOD\tHASH\tDESCRIPTION")
			for _, st := range pdfseal.SignatureTypes() {
				hash := st.HashAlgorithm
				if st.Method == pdfseal.PKCS7Object && !cms.Supported(hash) {
					hash += " (unsupported)"
				}
				if hash == "" {
					hash = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", st.ID, st.Name, st.Method, hash, st.Description)
			}
			return w.Flush()
		},
	}
}
