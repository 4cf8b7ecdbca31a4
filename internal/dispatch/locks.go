package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/frontdesk/internal/apperr"
	"golang.org/x/sync/semaphore"
)

// employeeLocks hands out one exclusive lock per employee. Conflict checks
// and the writes they guard run while holding the employee's lock.
type employeeLocks struct {
	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

func newEmployeeLocks() *employeeLocks {
	return &employeeLocks{locks: make(map[string]*semaphore.Weighted)}
}

func (l *employeeLocks) get(employeeID string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.locks[employeeID]
	if !ok {
		s = semaphore.NewWeighted(1)
		l.locks[employeeID] = s
	}
	return s
}

// acquire waits up to timeout for the employee's lock. It fails with
// ErrBusy when the wait runs out and returns the caller's context error when
// ctx ends first.
func (l *employeeLocks) acquire(ctx context.Context, employeeID string, timeout time.Duration) (func(), error) {
	s := l.get(employeeID)
	if s.TryAcquire(1) {
		return func() { s.Release(1) }, nil
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("dispatch: employee %s is locked: %w", employeeID, apperr.ErrBusy)
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Acquire(wctx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("dispatch: lock employee %s: %w", employeeID, ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("dispatch: employee %s locked for over %s: %w", employeeID, timeout, apperr.ErrBusy)
		}
		return nil, fmt.Errorf("dispatch: lock employee %s: %w", employeeID, err)
	}
	return func() { s.Release(1) }, nil
}
