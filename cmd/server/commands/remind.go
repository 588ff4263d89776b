package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/librov/internal/jobs"
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send overdue reminders once and exit",
	Long: `Create one notification for every active loan past its expected return
date.  Useful from an external scheduler when REMINDER_SCHEDULE is empty.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		n, err := jobs.RunReminders(cmd.Context(), a.notifications, a.log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d reminders written\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(remindCmd)
}
