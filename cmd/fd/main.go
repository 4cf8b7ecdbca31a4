package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fd",
		Short: "Frontdesk - SMS reception and job dispatch",
		Long: `Frontdesk receives customer and employee text messages, keeps one
conversation per phone number, and dispatches scheduled jobs to employees
without double-booking anyone.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMsgCmd())
	cmd.AddCommand(newSessionCmd())
	cmd.AddCommand(newDraftCmd())
	cmd.AddCommand(newJobCmd())
	cmd.AddCommand(newLeaveCmd())
	cmd.AddCommand(newContactCmd())
	cmd.AddCommand(newStaffCmd())
	cmd.AddCommand(newKBCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fd %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
