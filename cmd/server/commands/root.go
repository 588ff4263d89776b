// Package commands holds the librov command tree.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "librov",
	Short: "Librov library management API",
	Long: `Librov serves the library REST API: catalog, checkouts and returns,
reviews, book requests and notifications.

Without a subcommand it runs the HTTP server.  Configuration comes from
the environment, optionally seeded from a .env file.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
