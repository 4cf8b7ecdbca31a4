package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/frontdesk/internal/api"
	"github.com/zulandar/frontdesk/internal/config"
	"github.com/zulandar/frontdesk/internal/db"
	"github.com/zulandar/frontdesk/internal/sweeper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		noWatch    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the front desk API, hold expiry and config reload",
		Long: `Serves the local HTTP API and live event stream, expires stale holds on the
configured schedule and reloads the roster whenever the config file changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, !noWatch)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the config file on change")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, watch bool) error {
	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.AutoMigrate(a.db); err != nil {
		return err
	}
	if err := a.svc.ApplyConfig(ctx, a.cfg); err != nil {
		return err
	}

	expiry, err := sweeper.New("hold-expiry", a.cfg.Dispatch.ExpirySchedule, func(ctx context.Context) error {
		_, err := a.svc.ExpireHolds(ctx)
		return err
	}, a.log)
	if err != nil {
		return err
	}

	if port == 0 {
		port = a.cfg.Server.Port
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Start(ctx, api.StartOpts{
			Service: a.svc,
			Port:    port,
			Log:     a.log.Named("api"),
			Out:     cmd.OutOrStdout(),
		})
	})
	g.Go(func() error {
		return expiry.Run(ctx)
	})
	if watch {
		g.Go(func() error {
			return config.Watch(ctx, configPath, 0, a.log.Named("config"), func(cfg *config.Config) {
				if err := a.svc.ApplyConfig(ctx, cfg); err != nil {
					a.log.Warn("apply config failed", zap.Error(err))
				}
			})
		})
	}

	err = g.Wait()
	fmt.Fprintln(cmd.OutOrStdout(), "Front desk stopped.")
	return err
}
