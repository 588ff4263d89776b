package commands

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/librov/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return database.Migrate(cmd.Context(), a.db, a.log)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
