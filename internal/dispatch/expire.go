package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/db"
	"github.com/zulandar/frontdesk/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExpiredHold is a job whose hold lapsed, with the employee it was held for.
type ExpiredHold struct {
	Job        models.Job `json:"job"`
	EmployeeID string     `json:"employee_id"`
}

// ExpireHolds returns held jobs whose hold has lapsed to open and clears
// their assignee. Jobs confirmed or re-held since the scan are left alone,
// and an employee whose lock is busy is retried on the next sweep.
func (e *Engine) ExpireHolds(ctx context.Context) ([]ExpiredHold, error) {
	now := e.clock()

	var held []models.Job
	err := e.db.WithContext(ctx).
		Where("state = ? AND hold_expires_at IS NOT NULL", models.JobHeld).
		Order("hold_expires_at ASC").
		Find(&held).Error
	if err != nil {
		return nil, db.TranslateError("dispatch: scan held jobs", err)
	}

	var expired []ExpiredHold
	for _, j := range held {
		if j.HoldExpiresAt.After(now) {
			continue
		}
		job, err := e.expireOne(ctx, j.ID, j.Assignee(), now)
		switch {
		case err == nil && job != nil:
			expired = append(expired, ExpiredHold{Job: *job, EmployeeID: j.Assignee()})
		case err == nil:
		case errors.Is(err, apperr.ErrBusy), errors.Is(err, apperr.ErrInvalidTransition):
			e.log.Debug("hold expiry skipped", zap.String("job", j.ID), zap.Error(err))
		default:
			return expired, err
		}
	}
	if len(expired) > 0 {
		e.log.Info("holds expired", zap.Int("count", len(expired)))
	}
	return expired, nil
}

// expireOne releases a single lapsed hold. It returns nil, nil when the job
// no longer qualifies.
func (e *Engine) expireOne(ctx context.Context, jobID, employeeID string, now time.Time) (*models.Job, error) {
	if employeeID != "" {
		release, err := e.locks.acquire(ctx, employeeID, e.lockTimeout)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	var job models.Job
	released := false
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", jobID).First(&job).Error; err != nil {
			return jobError(jobID, err)
		}
		if job.State != models.JobHeld || job.HoldExpiresAt == nil || job.HoldExpiresAt.After(now) {
			return nil
		}
		if job.Assignee() != employeeID {
			return nil
		}
		released = true
		return releaseJob(tx, &job, "hold expired")
	})
	if err != nil {
		return nil, jobError(jobID, err)
	}
	if !released {
		return nil, nil
	}
	return &job, nil
}
