package frontdesk

import (
	"context"

	"github.com/zulandar/frontdesk/internal/alert"
	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/classify"
	"github.com/zulandar/frontdesk/internal/dispatch"
	"github.com/zulandar/frontdesk/internal/messaging"
	"github.com/zulandar/frontdesk/internal/models"
	"github.com/zulandar/frontdesk/internal/phone"
	"go.uber.org/zap"
)

// CreateJob creates an open, unassigned job.
func (s *Service) CreateJob(ctx context.Context, opts dispatch.CreateOpts) (*models.Job, error) {
	return s.jobOp(ctx, models.JobOpen, func() (*models.Job, error) {
		return s.engine.CreateJob(ctx, opts)
	})
}

// DraftJob creates a job for window from the latest inbound message of a
// conversation, filling title, address and contact number from its text.
func (s *Service) DraftJob(ctx context.Context, number string, window models.Window) (*models.Job, error) {
	p := phone.Normalize(number)
	msgs, err := messaging.List(s.db.WithContext(ctx), p, 0)
	if err != nil {
		return nil, err
	}
	var text string
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Direction == models.Inbound {
			text = msgs[i].Body
			break
		}
	}
	f := classify.ExtractJobFields(text, p)
	return s.CreateJob(ctx, dispatch.CreateOpts{
		Title:        f.Title,
		Window:       window,
		Address:      f.Address,
		ContactPhone: f.ContactPhone,
		Notes:        f.Notes,
		SourcePhone:  p,
	})
}

// Hold reserves an open job for an employee.
func (s *Service) Hold(ctx context.Context, jobID, employeeID string) (*models.Job, error) {
	return s.jobOp(ctx, models.JobHeld, func() (*models.Job, error) {
		return s.engine.Hold(ctx, jobID, employeeID)
	})
}

// Confirm commits a held job.
func (s *Service) Confirm(ctx context.Context, jobID string) (*models.Job, error) {
	return s.jobOp(ctx, models.JobConfirmed, func() (*models.Job, error) {
		return s.engine.Confirm(ctx, jobID)
	})
}

// Complete marks a confirmed job done.
func (s *Service) Complete(ctx context.Context, jobID string) (*models.Job, error) {
	return s.jobOp(ctx, models.JobDone, func() (*models.Job, error) {
		return s.engine.Complete(ctx, jobID)
	})
}

// Cancel cancels a job that is not yet done.
func (s *Service) Cancel(ctx context.Context, jobID string) (*models.Job, error) {
	return s.jobOp(ctx, models.JobCancelled, func() (*models.Job, error) {
		return s.engine.Cancel(ctx, jobID)
	})
}

func (s *Service) jobOp(ctx context.Context, to models.JobState, op func() (*models.Job, error)) (*models.Job, error) {
	var job *models.Job
	err := s.retry(ctx, func() error {
		var err error
		job, err = op()
		return err
	})
	s.observe(to, err)
	if err != nil {
		return nil, err
	}
	s.log.Debug("job transition", zap.String("job", job.ID), zap.String("state", string(job.State)))
	return job, nil
}

// ResolveLeaveConflict acknowledges a pending leave request.
func (s *Service) ResolveLeaveConflict(ctx context.Context, requestID uint, action models.Resolution) (*dispatch.LeaveResolution, error) {
	var res *dispatch.LeaveResolution
	err := s.retry(ctx, func() error {
		var err error
		res, err = s.engine.ResolveLeaveConflict(ctx, requestID, action)
		return err
	})
	if err != nil {
		s.metrics.DispatchFailures.WithLabelValues(string(apperr.KindOf(err))).Inc()
		return nil, err
	}
	if action == models.Reschedule {
		s.metrics.JobTransitions.WithLabelValues(string(models.JobOpen)).Add(float64(len(res.Jobs)))
	}
	s.log.Info("leave request resolved",
		zap.Uint("id", requestID),
		zap.String("resolution", string(action)),
		zap.Int("jobs", len(res.Jobs)))
	return res, nil
}

// ExpireHolds returns lapsed holds to open and alerts the operator for each.
func (s *Service) ExpireHolds(ctx context.Context) ([]dispatch.ExpiredHold, error) {
	expired, err := s.engine.ExpireHolds(ctx)
	for i := range expired {
		x := &expired[i]
		s.metrics.HoldsExpired.Inc()
		s.metrics.JobTransitions.WithLabelValues(string(models.JobOpen)).Inc()
		s.hub.Publish(Event{Type: EventHoldExpired, Expired: x})
		s.alert(ctx, alert.HoldExpired(x.Job, x.EmployeeID, s.loc))
	}
	return expired, err
}
