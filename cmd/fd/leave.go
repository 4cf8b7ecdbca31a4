package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/frontdesk/internal/dispatch"
	"github.com/zulandar/frontdesk/internal/models"
)

func newLeaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Employee leave request commands",
	}

	cmd.AddCommand(newLeaveListCmd())
	cmd.AddCommand(newLeaveResolveCmd())
	return cmd
}

func newLeaveListCmd() *cobra.Command {
	var (
		configPath string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leave requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			reqs, err := a.svc.LeaveRequests(cmd.Context(), models.LeaveStatus(status))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(reqs) == 0 {
				fmt.Fprintln(out, "No leave requests found.")
				return nil
			}

			loc := a.svc.Location()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMPLOYEE\tSTATUS\tWINDOW\tCONFLICTS\tMESSAGE")
			for i := range reqs {
				r := &reqs[i]
				window := "unspecified"
				if win, ok := r.Window(); ok {
					window = formatTime(win.Start, loc) + " - " + formatTime(win.End, loc)
				}
				conflicts := len(dispatch.ConflictSnapshot(r))
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.EmployeeID, r.Status, window, conflicts, truncate(r.Content, 40))
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, acknowledged)")
	return cmd
}

func newLeaveResolveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "resolve <id> <reschedule|override>",
		Short: "Resolve a pending leave request",
		Long: `Acknowledges a pending leave request.

reschedule  releases every job that overlaps the leave back to open
override    keeps the overlapping jobs assigned`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid leave request id %q", args[0])
			}
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.ResolveLeaveConflict(cmd.Context(), uint(id), models.Resolution(args[1]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Leave request #%d %s (%s)\n", res.Request.ID, res.Request.Status, res.Request.Resolution)
			for _, j := range res.Jobs {
				fmt.Fprintf(out, "  %s  %s  %s\n", j.ID, j.State, orDash(j.Assignee()))
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
