package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/frontdesk/internal/knowledge"
	"github.com/zulandar/frontdesk/internal/models"
)

func newKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Knowledge base commands",
	}

	cmd.AddCommand(newKBAddCmd())
	cmd.AddCommand(newKBListCmd())
	cmd.AddCommand(newKBSearchCmd())
	cmd.AddCommand(newKBRemoveCmd())
	return cmd
}

func newKBAddCmd() *cobra.Command {
	var (
		configPath string
		id         uint
		entry      knowledge.Entry
		disabled   bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a knowledge entry",
		Long:  "Adds a knowledge entry used when drafting replies. With --id, replaces that entry and bumps its version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			entry.ID = id
			entry.Enabled = !disabled
			saved, err := a.svc.SaveKnowledge(cmd.Context(), entry)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved knowledge entry %d (version %d)\n", saved.ID, saved.Version)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().UintVar(&id, "id", 0, "entry to update")
	cmd.Flags().StringVarP(&entry.Title, "title", "t", "", "entry title (required)")
	cmd.Flags().StringVar(&entry.Content, "content", "", "entry content (required)")
	cmd.Flags().StringVar(&entry.Tags, "tags", "", "space-separated search tags")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "store the entry but leave it out of search")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("content")
	return cmd
}

func newKBListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List knowledge entries, most recently updated first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			var query string
			if len(args) == 1 {
				query = args[0]
			}
			entries, err := a.svc.Knowledge(cmd.Context(), query)
			if err != nil {
				return err
			}
			printEntries(cmd, entries)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newKBSearchCmd() *cobra.Command {
	var (
		configPath string
		max        int
	)

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Show the entries a reply draft would use for some text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.svc.SearchKnowledge(cmd.Context(), args[0], max)
			if err != nil {
				return err
			}
			printEntries(cmd, entries)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&max, "max", "n", knowledge.DefaultSearchLimit, "maximum entries")
	return cmd
}

func printEntries(cmd *cobra.Command, entries []models.KBEntry) {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No knowledge entries found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTAGS\tVER\tENABLED\tCONTENT")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%v\t%s\n",
			e.ID, truncate(e.Title, 30), orDash(e.Tags), e.Version, e.Enabled, truncate(e.Content, 50))
	}
	w.Flush()
}

func newKBRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid knowledge entry id %q", args[0])
			}
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.DeleteKnowledge(cmd.Context(), uint(id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted knowledge entry %d\n", id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
