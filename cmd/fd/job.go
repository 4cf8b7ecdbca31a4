package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/dispatch"
	"github.com/zulandar/frontdesk/internal/frontdesk"
	"github.com/zulandar/frontdesk/internal/models"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Job dispatch commands",
	}

	cmd.AddCommand(newJobCreateCmd())
	cmd.AddCommand(newJobDraftCmd())
	cmd.AddCommand(newJobListCmd())
	cmd.AddCommand(newJobShowCmd())
	cmd.AddCommand(newJobHoldCmd())
	cmd.AddCommand(newJobTransitionCmd("confirm", "Confirm a held job", (*frontdesk.Service).Confirm))
	cmd.AddCommand(newJobTransitionCmd("complete", "Mark a confirmed job done", (*frontdesk.Service).Complete))
	cmd.AddCommand(newJobTransitionCmd("cancel", "Cancel a job", (*frontdesk.Service).Cancel))
	cmd.AddCommand(newJobExpireCmd())
	return cmd
}

func newJobCreateCmd() *cobra.Command {
	var (
		configPath string
		title      string
		start, end string
		address    string
		contact    string
		notes      string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an open job",
		Long:  "Creates an open, unassigned job with an auto-generated ID. Times are read in the configured timezone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := parseWindow(start, end, a)
			if err != nil {
				return err
			}
			job, err := a.svc.CreateJob(cmd.Context(), dispatch.CreateOpts{
				Title:        title,
				Window:       w,
				Address:      address,
				ContactPhone: contact,
				Notes:        notes,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created job %s\n", job.ID)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&title, "title", "t", "", "job title (required)")
	cmd.Flags().StringVar(&start, "start", "", "window start, e.g. \"2025-12-31 09:00\" (required)")
	cmd.Flags().StringVar(&end, "end", "", "window end (required)")
	cmd.Flags().StringVar(&address, "address", "", "service address")
	cmd.Flags().StringVar(&contact, "contact", "", "customer contact phone")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func parseWindow(start, end string, a *app) (models.Window, error) {
	loc := a.svc.Location()
	s, err := parseTime("start", start, loc)
	if err != nil {
		return models.Window{}, err
	}
	e, err := parseTime("end", end, loc)
	if err != nil {
		return models.Window{}, err
	}
	return models.Window{Start: s, End: e}, nil
}

func newJobDraftCmd() *cobra.Command {
	var (
		configPath string
		start, end string
	)

	cmd := &cobra.Command{
		Use:   "draft <phone>",
		Short: "Create a job from a customer's latest message",
		Long:  "Creates an open job whose title, address and contact phone are taken from the latest inbound message of a conversation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := parseWindow(start, end, a)
			if err != nil {
				return err
			}
			job, err := a.svc.DraftJob(cmd.Context(), args[0], w)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created job %s\n", job.ID)
			fmt.Fprintf(out, "Title:   %s\n", job.Title)
			fmt.Fprintf(out, "Address: %s\n", orDash(job.Address))
			fmt.Fprintf(out, "Contact: %s\n", orDash(job.ContactPhone))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&start, "start", "", "window start (required)")
	cmd.Flags().StringVar(&end, "end", "", "window end (required)")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func newJobListCmd() *cobra.Command {
	var (
		configPath string
		state      string
		employee   string
		from, to   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Long:  "Lists jobs ordered by window start. With --from and --to, only jobs whose window intersects that range.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			f := dispatch.ListFilters{State: models.JobState(state), EmployeeID: employee}
			loc := a.svc.Location()
			if from != "" {
				if f.From, err = parseTime("from", from, loc); err != nil {
					return err
				}
			}
			if to != "" {
				if f.To, err = parseTime("to", to, loc); err != nil {
					return err
				}
			}
			return runJobList(cmd, a, f)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&state, "state", "", "filter by state (open, held, confirmed, done, cancelled)")
	cmd.Flags().StringVar(&employee, "employee", "", "filter by assigned employee ID")
	cmd.Flags().StringVar(&from, "from", "", "range start")
	cmd.Flags().StringVar(&to, "to", "", "range end")
	return cmd
}

func runJobList(cmd *cobra.Command, a *app, f dispatch.ListFilters) error {
	jobs, err := a.svc.Jobs(cmd.Context(), f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found.")
		return nil
	}

	loc := a.svc.Location()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATE\tEMPLOYEE\tSTART\tEND")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, truncate(j.Title, 40), j.State, orDash(j.Assignee()),
			formatTime(j.WindowStart, loc), formatTime(j.WindowEnd, loc))
	}
	w.Flush()
	return nil
}

func newJobShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show job details and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return runJobShow(cmd, a, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runJobShow(cmd *cobra.Command, a *app, id string) error {
	ctx := cmd.Context()
	j, err := a.svc.Job(ctx, id)
	if err != nil {
		return err
	}
	history, err := a.svc.JobHistory(ctx, id)
	if err != nil {
		return err
	}

	loc := a.svc.Location()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", j.ID)
	fmt.Fprintf(out, "Title:       %s\n", j.Title)
	fmt.Fprintf(out, "State:       %s\n", j.State)
	fmt.Fprintf(out, "Window:      %s - %s\n", formatTime(j.WindowStart, loc), formatTime(j.WindowEnd, loc))
	if j.EmployeeID != nil {
		fmt.Fprintf(out, "Employee:    %s\n", *j.EmployeeID)
	}
	if j.HoldExpiresAt != nil {
		fmt.Fprintf(out, "Hold until:  %s\n", formatTime(*j.HoldExpiresAt, loc))
	}
	if j.Address != "" {
		fmt.Fprintf(out, "Address:     %s\n", j.Address)
	}
	if j.ContactPhone != "" {
		fmt.Fprintf(out, "Contact:     %s\n", j.ContactPhone)
	}
	fmt.Fprintf(out, "Created:     %s\n", formatTime(j.CreatedAt, loc))
	if j.Notes != "" {
		fmt.Fprintf(out, "\nNotes:\n%s\n", j.Notes)
	}

	if len(history) > 0 {
		fmt.Fprintln(out, "\nHistory:")
		for _, ev := range history {
			from := string(ev.FromState)
			if from == "" {
				from = "new"
			}
			line := fmt.Sprintf("  [%s] %s -> %s", formatTime(ev.CreatedAt, loc), from, ev.ToState)
			if ev.EmployeeID != "" {
				line += " employee=" + ev.EmployeeID
			}
			if ev.Reason != "" {
				line += ": " + ev.Reason
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}

func newJobHoldCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "hold <id> <employee-id>",
		Short: "Tentatively assign an open job to an employee",
		Long: `Holds a job for an employee. Fails with the conflicting job IDs if the
employee already has an overlapping held or confirmed job.

A hold lapses after dispatch.hold_minutes (10 by default). An unconfirmed job
then returns to open and loses its assignee. Set hold_minutes to -1 to keep
holds until they are confirmed or cancelled.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			j, err := a.svc.Hold(cmd.Context(), args[0], args[1])
			if ids := apperr.ConflictJobIDs(err); len(ids) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s already has overlapping jobs:\n", args[1])
				for _, id := range ids {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", id)
				}
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %s held for %s\n", j.ID, j.Assignee())
			if j.HoldExpiresAt != nil {
				fmt.Fprintf(out, "Hold expires %s; confirm before then or the job returns to open\n",
					formatTime(*j.HoldExpiresAt, a.svc.Location()))
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

type transitionFunc func(*frontdesk.Service, context.Context, string) (*models.Job, error)

func newJobTransitionCmd(use, short string, fn transitionFunc) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			j, err := fn(a.svc, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s is now %s\n", j.ID, j.State)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newJobExpireCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Release holds past their expiry",
		Long:  "Returns every held job whose hold has expired to open. \"fd serve\" does this on a schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			expired, err := a.svc.ExpireHolds(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(expired) == 0 {
				fmt.Fprintln(out, "No expired holds.")
				return nil
			}
			for _, e := range expired {
				fmt.Fprintf(out, "Released %s (was held for %s)\n", e.Job.ID, e.EmployeeID)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
