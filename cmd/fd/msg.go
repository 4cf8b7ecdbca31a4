package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/frontdesk/internal/frontdesk"
	"github.com/zulandar/frontdesk/internal/models"
	"github.com/zulandar/frontdesk/internal/session"
)

func newMsgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "msg",
		Short: "Message commands",
	}

	cmd.AddCommand(newMsgSimulateCmd())
	cmd.AddCommand(newMsgSendCmd())
	cmd.AddCommand(newMsgListCmd())
	return cmd
}

func newMsgSimulateCmd() *cobra.Command {
	var (
		configPath string
		id         string
		channel    string
		at         string
	)

	cmd := &cobra.Command{
		Use:   "simulate <phone> <body...>",
		Short: "Submit an inbound message as if it arrived from a phone",
		Long: `Submits an inbound message through the normal ingestion path: the sender is
classified, the message is appended to its session, and employee leave requests
are detected and checked for conflicting jobs.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMsgSimulate(cmd, configPath, frontdesk.Inbound{
				ID:      id,
				Phone:   args[0],
				Body:    strings.Join(args[1:], " "),
				Channel: channel,
			}, at)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&id, "id", "", "message ID (resubmitting an ID is a no-op)")
	cmd.Flags().StringVar(&channel, "channel", frontdesk.DefaultChannel, "channel the message arrived on")
	cmd.Flags().StringVar(&at, "at", "", "arrival time (default now)")
	return cmd
}

func runMsgSimulate(cmd *cobra.Command, configPath string, in frontdesk.Inbound, at string) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	loc := a.svc.Location()
	if at != "" {
		if in.Timestamp, err = parseTime("at", at, loc); err != nil {
			return err
		}
	}

	got, err := a.svc.SubmitMessage(cmd.Context(), in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if got.Duplicate {
		fmt.Fprintf(out, "Message %s already stored; nothing changed\n", got.Message.ID)
		return nil
	}
	fmt.Fprintf(out, "Stored message %s from %s (%s, session %d)\n",
		got.Message.ID, got.Message.Phone, got.Kind, got.SessionID)
	if got.Leave != nil {
		printLeaveOpened(out, got, loc)
	}
	return nil
}

func printLeaveOpened(out io.Writer, got *frontdesk.Ingested, loc *time.Location) {
	req := got.Leave
	window := "unspecified"
	if w, ok := req.Window(); ok {
		window = formatTime(w.Start, loc) + " - " + formatTime(w.End, loc)
	}
	fmt.Fprintf(out, "Leave request #%d opened for %s (%s)\n", req.ID, req.EmployeeID, window)
	if len(got.Conflicts) == 0 {
		return
	}
	fmt.Fprintln(out, "Conflicting jobs:")
	for _, j := range got.Conflicts {
		fmt.Fprintf(out, "  %s  %s  %s\n", j.ID, formatTime(j.WindowStart, loc), j.Title)
	}
	fmt.Fprintf(out, "Resolve with: fd leave resolve %d reschedule|override\n", req.ID)
}

func newMsgSendCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "send <phone> <body...>",
		Short: "Send an outbound message through the gateway",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMsgSend(cmd, configPath, args[0], strings.Join(args[1:], " "))
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runMsgSend(cmd *cobra.Command, configPath, phone, body string) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	msg, err := a.svc.SendMessage(cmd.Context(), phone, body)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %s (gateway: %v %v)\n",
		msg.ID, msg.Phone, msg.Meta["gateway_status"], msg.Meta["gateway_id"])
	return nil
}

func newMsgListCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list <phone>",
		Short: "Show a conversation, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMsgList(cmd, configPath, args[0], limit)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "show at most the last n messages (0 for all)")
	return cmd
}

func runMsgList(cmd *cobra.Command, configPath, phone string, limit int) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	msgs, err := a.svc.Messages(cmd.Context(), phone, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintln(out, "No messages found.")
		return nil
	}
	width := outputWidth(out) - 22
	loc := a.svc.Location()
	for _, m := range msgs {
		arrow := "<"
		if m.Direction == models.Outbound {
			arrow = ">"
		}
		fmt.Fprintf(out, "%s %s %s\n", formatTime(m.Timestamp, loc), arrow, truncate(m.Body, width))
	}
	return nil
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Conversation session commands",
	}

	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionReadCmd())
	return cmd
}

func newSessionListCmd() *cobra.Command {
	var (
		configPath string
		kind       string
		query      string
		unread     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent activity first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionList(cmd, configPath, session.ListFilters{
				Kind:       models.ContactKind(kind),
				Query:      query,
				UnreadOnly: unread,
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&kind, "kind", "", "filter by contact kind (customer, employee)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "match phone, name or last message")
	cmd.Flags().BoolVar(&unread, "unread", false, "only sessions with unread messages")
	return cmd
}

func runSessionList(cmd *cobra.Command, configPath string, f session.ListFilters) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.svc.Sessions(cmd.Context(), f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}

	loc := a.svc.Location()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHONE\tNAME\tKIND\tUNREAD\tLAST ACTIVITY\tLAST MESSAGE")
	for _, s := range sessions {
		name, kind := "-", "-"
		if s.Contact != nil {
			name, kind = orDash(s.Contact.DisplayName), string(s.Contact.Kind)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.Phone, name, kind, s.UnreadCount, formatTime(s.LastActivityAt, loc), truncate(s.LastMessage, 40))
	}
	w.Flush()

	total, err := a.svc.TotalUnread(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTotal unread: %d\n", total)
	return nil
}

func newSessionReadCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "read <phone>",
		Short: "Mark a session as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.svc.MarkRead(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %s as read\n", args[0])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newDraftCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "draft <phone>",
		Short: "Draft a reply to the latest message from a phone",
		Long: `Drafts a reply using the configured assistant backends and the knowledge base.
The draft is printed, not sent; use "fd msg send" to send it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.svc.Draft(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, d.Text)
			if d.Fallback {
				fmt.Fprintln(out, "\n(canned reply: no assistant backend answered)")
			} else if d.Backend != "" {
				fmt.Fprintf(out, "\n(drafted by %s)\n", d.Backend)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
