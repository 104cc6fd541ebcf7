// Package cmd defines and implements the CLI commands for the restockwatch
// executable.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

// errNotBuyable maps the NOT_BUYABLE verdict onto exit code 1 without
// printing anything beyond the verdict line.
var errNotBuyable = errors.New("verdict is NOT_BUYABLE")

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restockwatch",
		Short: "Watches a product page for restock availability.",
		Long: `restockwatch checks a single e-commerce product page once per invocation,
prints a BUYABLE/NOT_BUYABLE verdict, and notifies a webhook when the product
comes back in stock. Periodic checking is left to an external scheduler such
as cron.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose debug logging")

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newStateCmd())

	return cmd
}

// Execute is the main entry point. Exit code 0 means the final verdict was
// BUYABLE; everything else, verdict or failure, exits 1.
func Execute() {
	// A .env next to the binary is a convenience for webhook secrets; a
	// missing file is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errNotBuyable) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "restockwatch: %v\n", err)
		os.Exit(1)
	}
}
