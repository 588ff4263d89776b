package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/librov/internal/service"
)

var (
	staffUsername string
	staffEmail    string
	staffPassword string
)

var createStaffCmd = &cobra.Command{
	Use:   "create-staff",
	Short: "Create a staff account",
	Long: `Create an account with the staff flag set.  Staff manage the catalog,
read book requests and send notifications.

Example:
  librov create-staff --username librarian --email desk@library.test --password '...'`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		u, err := a.accounts.CreateStaff(cmd.Context(), service.RegisterInput{
			Username: staffUsername,
			Email:    staffEmail,
			Password: staffPassword,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "staff account %q created with id %d\n", u.Username, u.ID)
		return nil
	},
}

func init() {
	createStaffCmd.Flags().StringVar(&staffUsername, "username", "", "login name (required)")
	createStaffCmd.Flags().StringVar(&staffEmail, "email", "", "contact address")
	createStaffCmd.Flags().StringVar(&staffPassword, "password", "", "initial password (required)")
	_ = createStaffCmd.MarkFlagRequired("username")
	_ = createStaffCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(createStaffCmd)
}
