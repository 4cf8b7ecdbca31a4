package frontdesk

import (
	"fmt"

	"github.com/zulandar/frontdesk/internal/alert"
	"github.com/zulandar/frontdesk/internal/alert/discord"
	"github.com/zulandar/frontdesk/internal/alert/slack"
	"github.com/zulandar/frontdesk/internal/assistant"
	"github.com/zulandar/frontdesk/internal/config"
	"github.com/zulandar/frontdesk/internal/gateway"
	"github.com/zulandar/frontdesk/internal/logging"
	"github.com/zulandar/frontdesk/internal/metrics"
	"go.uber.org/zap"
)

// OptionsFromConfig builds service options from configuration: gateway,
// alert channels, assistant backends and dispatch tuning.
func OptionsFromConfig(cfg *config.Config, m *metrics.Metrics, log *zap.Logger) (Options, error) {
	log = logging.OrNop(log)
	if m == nil {
		m = metrics.New()
	}
	gw, err := gateway.New(cfg.Gateway.Mode)
	if err != nil {
		return Options{}, fmt.Errorf("frontdesk: %w", err)
	}
	notifier, err := Notifiers(cfg.Alerts, m)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Location:    cfg.Location(),
		HoldTTL:     cfg.Dispatch.HoldTTL(),
		LockTimeout: cfg.Dispatch.LockTimeout,
		BusyRetries: cfg.Dispatch.BusyRetries,
		BusyBackoff: cfg.Dispatch.BusyBackoff,
		Gateway:     gw,
		Notifier:    notifier,
		Chat:        assistant.NewRouter(cfg.Assistant, log.Named("assistant")),
		Metrics:     m,
		Log:         log,
	}, nil
}

// Notifiers returns a fan-out over every configured alert channel. Outcomes
// are counted per channel.
func Notifiers(cfg config.AlertsConfig, m *metrics.Metrics) (*alert.Multi, error) {
	multi := &alert.Multi{
		Report: func(name string, err error) {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			m.AlertsSent.WithLabelValues(name, outcome).Inc()
		},
	}
	if cfg.Slack.Enabled() {
		n, err := slack.New(slack.Opts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, fmt.Errorf("frontdesk: alerts: %w", err)
		}
		multi.Notifiers = append(multi.Notifiers, n)
	}
	if cfg.Discord.Enabled() {
		n, err := discord.New(discord.Opts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, fmt.Errorf("frontdesk: alerts: %w", err)
		}
		multi.Notifiers = append(multi.Notifiers, n)
	}
	if cfg.Command != "" {
		multi.Notifiers = append(multi.Notifiers, &alert.Command{Template: cfg.Command})
	}
	return multi, nil
}
