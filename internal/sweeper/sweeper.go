// Package sweeper runs periodic maintenance on a cron schedule.
package sweeper

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/frontdesk/internal/logging"
	"go.uber.org/zap"
)

// Sweeper calls a task on a cron schedule until stopped. Runs never overlap.
type Sweeper struct {
	cron   *cron.Cron
	task   func(context.Context) error
	name   string
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

// New parses schedule (standard cron or @every descriptors) and prepares a
// sweeper for task. Nothing runs until Start.
func New(name, schedule string, task func(context.Context) error, log *zap.Logger) (*Sweeper, error) {
	log = logging.OrNop(log)
	s := &Sweeper{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		task: task,
		name: name,
		log:  log.With(zap.String("sweeper", name)),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("sweeper: %s: schedule %q: %w", name, schedule, err)
	}
	return s, nil
}

// RunNow performs one sweep synchronously.
func (s *Sweeper) RunNow(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task(ctx)
}

func (s *Sweeper) run() {
	if err := s.RunNow(s.ctx); err != nil && s.ctx.Err() == nil {
		s.log.Warn("sweep failed", zap.Error(err))
	}
}

// Start begins the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Debug("sweeper started")
}

// Stop halts the schedule, cancels an in-flight sweep and waits for it to
// return.
func (s *Sweeper) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
	s.log.Debug("sweeper stopped")
}

// Run starts the sweeper and blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}
