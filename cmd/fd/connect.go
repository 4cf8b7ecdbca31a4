package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"
	"github.com/zulandar/frontdesk/internal/config"
	"github.com/zulandar/frontdesk/internal/db"
	"github.com/zulandar/frontdesk/internal/frontdesk"
	"github.com/zulandar/frontdesk/internal/logging"
	"github.com/zulandar/frontdesk/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gorm.io/gorm"
)

const defaultConfigPath = "frontdesk.yaml"

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to Frontdesk config file")
}

// connectFromConfig loads config and returns a GORM DB connection.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.Storage.Driver == "sqlite" {
		if err := ensureDir(cfg.Storage.Path); err != nil {
			return nil, nil, err
		}
	}
	gormDB, err := db.Connect(cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// app bundles what a command needs to talk to the front desk.
type app struct {
	cfg *config.Config
	db  *gorm.DB
	svc *frontdesk.Service
	log *zap.Logger
}

func (a *app) Close() {
	a.log.Sync()
	db.Close(a.db)
}

// openApp connects to storage and builds the service from configuration.
func openApp(configPath string) (*app, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		db.Close(gormDB)
		return nil, err
	}
	opts, err := frontdesk.OptionsFromConfig(cfg, metrics.New(), log)
	if err != nil {
		db.Close(gormDB)
		return nil, err
	}
	return &app{cfg: cfg, db: gormDB, svc: frontdesk.New(gormDB, opts), log: log}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || path == db.MemoryPath {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return nil
}

// parseTime accepts most human date formats, read in loc.
func parseTime(flag, s string, loc *time.Location) (time.Time, error) {
	t, err := dateparse.ParseIn(strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s %q: %w", flag, s, err)
	}
	return t, nil
}

// outputWidth is the terminal width when out is a terminal, else 120.
func outputWidth(out io.Writer) int {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 120
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
