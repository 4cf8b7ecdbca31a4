package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/frontdesk/internal/config"
	"github.com/zulandar/frontdesk/internal/db"
	"github.com/zulandar/frontdesk/internal/knowledge"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Frontdesk database",
		Long:  "Migrates all tables, seeds the employee roster from config and loads the starter knowledge base.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	fmt.Fprintf(out, "Loaded config from %s (%s storage)\n", configPath, cfg.Storage.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	return seed(cmd, gormDB, cfg)
}

func seed(cmd *cobra.Command, gormDB *gorm.DB, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	if err := db.SeedRoster(gormDB, cfg.Roster); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d employees:", len(cfg.Roster))
	for _, e := range cfg.Roster {
		fmt.Fprintf(out, " %s", e.ID)
	}
	fmt.Fprintln(out)

	seeded, err := knowledge.SeedDefaults(gormDB)
	if err != nil {
		return err
	}
	if seeded {
		fmt.Fprintf(out, "Loaded %d starter knowledge entries\n", len(knowledge.Defaults))
	}

	fmt.Fprintln(out, "\nFrontdesk database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Frontdesk database",
		Long: `Drops every Frontdesk table, migrates a fresh schema and re-seeds the
roster and starter knowledge base. All messages, jobs and leave requests are lost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	if !skipConfirm && !confirmReset(cmd, describeStorage(cfg)) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	if err := db.Reset(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Reset %d tables\n", len(db.AllModels()))
	return seed(cmd, gormDB, cfg)
}

func describeStorage(cfg *config.Config) string {
	if cfg.Storage.Driver == "mysql" {
		return cfg.Storage.Database
	}
	return cfg.Storage.Path
}

func confirmReset(cmd *cobra.Command, target string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in %q.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
