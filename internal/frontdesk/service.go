// Package frontdesk is the application service behind the CLI and HTTP API.
// It owns transactions that span several stores, retries busy dispatch
// operations, and fans results out to metrics, alerts and subscribers.
package frontdesk

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zulandar/frontdesk/internal/alert"
	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/assistant"
	"github.com/zulandar/frontdesk/internal/classify"
	"github.com/zulandar/frontdesk/internal/config"
	"github.com/zulandar/frontdesk/internal/db"
	"github.com/zulandar/frontdesk/internal/dispatch"
	"github.com/zulandar/frontdesk/internal/gateway"
	"github.com/zulandar/frontdesk/internal/logging"
	"github.com/zulandar/frontdesk/internal/metrics"
	"github.com/zulandar/frontdesk/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// alertTimeout bounds a single alert delivery.
const alertTimeout = 10 * time.Second

// Options wires a Service. Zero values fall back to working defaults.
type Options struct {
	Location    *time.Location
	HoldTTL     time.Duration
	LockTimeout time.Duration
	BusyRetries int
	BusyBackoff time.Duration
	Detector    classify.LeaveDetector
	Gateway     gateway.Gateway
	Notifier    alert.Notifier
	Chat        assistant.Chatter
	Metrics     *metrics.Metrics
	Log         *zap.Logger
	Now         func() time.Time
}

// Service is the front desk's command and query surface.
type Service struct {
	db          *gorm.DB
	engine      *dispatch.Engine
	classifier  *classify.Classifier
	gateway     gateway.Gateway
	notifier    alert.Notifier
	drafter     *assistant.Drafter
	metrics     *metrics.Metrics
	hub         *Hub
	log         *zap.Logger
	loc         *time.Location
	now         func() time.Time
	busyRetries int
	busyBackoff time.Duration
}

// New returns a Service over gdb.
func New(gdb *gorm.DB, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	opts.Log = logging.OrNop(opts.Log)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Gateway == nil {
		opts.Gateway = gateway.Simulator{Now: opts.Now}
	}
	if opts.Notifier == nil {
		opts.Notifier = alert.Nop{}
	}
	if opts.Chat == nil {
		opts.Chat = &assistant.Router{Mode: assistant.ModeOff}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.BusyBackoff <= 0 {
		opts.BusyBackoff = 50 * time.Millisecond
	}

	s := &Service{
		db: gdb,
		engine: dispatch.New(gdb, dispatch.Options{
			HoldTTL:     opts.HoldTTL,
			LockTimeout: opts.LockTimeout,
			Now:         opts.Now,
			Log:         opts.Log.Named("dispatch"),
		}),
		classifier:  classify.New(opts.Detector, opts.Location, opts.Log.Named("classify")),
		gateway:     opts.Gateway,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		hub:         NewHub(),
		log:         opts.Log,
		loc:         opts.Location,
		now:         opts.Now,
		busyRetries: opts.BusyRetries,
		busyBackoff: opts.BusyBackoff,
	}
	s.drafter = &assistant.Drafter{
		DB:       gdb,
		Chat:     opts.Chat,
		Location: opts.Location,
		Metrics:  opts.Metrics,
		Log:      opts.Log.Named("assistant"),
		Now:      opts.Now,
	}
	return s
}

// Metrics returns the collectors the service updates.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Hub returns the live event hub.
func (s *Service) Hub() *Hub { return s.hub }

// Location returns the zone used to read and display local times.
func (s *Service) Location() *time.Location { return s.loc }

// ApplyConfig pushes a reloaded configuration into the running service: the
// roster is re-seeded and the hold expiry updated.
func (s *Service) ApplyConfig(ctx context.Context, cfg *config.Config) error {
	if err := db.SeedRoster(s.db.WithContext(ctx), cfg.Roster); err != nil {
		return fmt.Errorf("frontdesk: apply config: %w", err)
	}
	s.engine.SetHoldTTL(cfg.Dispatch.HoldTTL())
	s.log.Info("configuration applied",
		zap.Int("roster", len(cfg.Roster)),
		zap.Duration("hold_ttl", s.engine.HoldTTL()))
	return nil
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// retry runs op, retrying Busy failures with exponential backoff. Any other
// failure is returned immediately.
func (s *Service) retry(ctx context.Context, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.busyBackoff
	exp.MaxInterval = 20 * s.busyBackoff
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.busyRetries)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !apperr.Retryable(err) {
			return backoff.Permanent(err)
		}
		s.log.Debug("busy, retrying", zap.Int("attempt", attempt), zap.Error(err))
		return err
	}, b)
}

// alert delivers ev without failing the caller.
func (s *Service) alert(ctx context.Context, ev alert.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn("alert delivery failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

// observe counts a dispatch outcome.
func (s *Service) observe(to models.JobState, err error) {
	if err != nil {
		s.metrics.DispatchFailures.WithLabelValues(string(apperr.KindOf(err))).Inc()
		return
	}
	s.metrics.JobTransitions.WithLabelValues(string(to)).Inc()
}

func (s *Service) employeeName(ctx context.Context, id string) string {
	var emp models.Employee
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&emp).Error; err != nil {
		return ""
	}
	return emp.Name
}
