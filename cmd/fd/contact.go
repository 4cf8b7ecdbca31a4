package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/frontdesk/internal/models"
)

func newContactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Contact classification commands",
	}

	cmd.AddCommand(newContactListCmd())
	cmd.AddCommand(newContactReclassifyCmd())
	return cmd
}

func newContactListCmd() *cobra.Command {
	var (
		configPath string
		kind       string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			contacts, err := a.svc.Contacts(cmd.Context(), models.ContactKind(kind))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(contacts) == 0 {
				fmt.Fprintln(out, "No contacts found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PHONE\tNAME\tKIND\tEMPLOYEE")
			for _, c := range contacts {
				emp := "-"
				if c.EmployeeID != nil {
					emp = *c.EmployeeID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Phone, orDash(c.DisplayName), c.Kind, emp)
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind (customer, employee)")
	return cmd
}

func newContactReclassifyCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reclassify <phone> <customer|employee>",
		Short: "Change a contact's kind",
		Long:  "Overrides the kind fixed at first contact. Reclassifying as employee requires the phone to be on the roster.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.svc.ReclassifyContact(cmd.Context(), args[0], models.ContactKind(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now a %s\n", c.Phone, c.Kind)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newStaffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Employee roster commands",
	}
	cmd.AddCommand(newStaffListCmd())
	return cmd
}

func newStaffListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the employee roster",
		Long:  "Lists employees seeded from the roster in the config file. Edit the config and run \"fd db init\" (or let \"fd serve\" reload it) to change the roster.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			emps, err := a.svc.Employees(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(emps) == 0 {
				fmt.Fprintln(out, "No employees found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPHONE\tACTIVE")
			for _, e := range emps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", e.ID, e.Name, e.Phone, e.Active)
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
