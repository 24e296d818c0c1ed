// Package cli implements the pdfseal command line interface.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var osExit = os.Exit

// New returns the root command.
func New() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "pdfseal",
		Short:         "Sign PDF documents with an embedded PKCS#7 signature",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
				Level(level).
				With().Timestamp().Logger()
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every signing phase")

	cmd.AddCommand(newSignCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newTypesCmd())
	return cmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := New().Execute(); err != nil {
		log.Error().Err(err).Msg("pdfseal failed")
		osExit(1)
	}
}
