package frontdesk

import (
	"context"

	"github.com/zulandar/frontdesk/internal/assistant"
	"github.com/zulandar/frontdesk/internal/classify"
	"github.com/zulandar/frontdesk/internal/dispatch"
	"github.com/zulandar/frontdesk/internal/knowledge"
	"github.com/zulandar/frontdesk/internal/messaging"
	"github.com/zulandar/frontdesk/internal/models"
	"github.com/zulandar/frontdesk/internal/phone"
	"github.com/zulandar/frontdesk/internal/session"
)

// Sessions lists conversations, most recent activity first.
func (s *Service) Sessions(ctx context.Context, f session.ListFilters) ([]models.Session, error) {
	return session.List(s.db.WithContext(ctx), f)
}

// TotalUnread sums unread counts across all sessions.
func (s *Service) TotalUnread(ctx context.Context) (int64, error) {
	return session.TotalUnread(s.db.WithContext(ctx))
}

// MarkRead clears a conversation's unread count.
func (s *Service) MarkRead(ctx context.Context, number string) error {
	return s.retry(ctx, func() error {
		return session.MarkRead(s.db.WithContext(ctx), number)
	})
}

// Messages returns the newest limit messages of a conversation in
// chronological order; limit <= 0 returns all.
func (s *Service) Messages(ctx context.Context, number string, limit int) ([]models.Message, error) {
	return messaging.List(s.db.WithContext(ctx), phone.Normalize(number), limit)
}

// Contacts lists known contacts, optionally of one kind.
func (s *Service) Contacts(ctx context.Context, kind models.ContactKind) ([]models.Contact, error) {
	return classify.ListContacts(s.db.WithContext(ctx), kind)
}

// ReclassifyContact changes a contact's kind on operator request.
func (s *Service) ReclassifyContact(ctx context.Context, number string, kind models.ContactKind) (*models.Contact, error) {
	var c *models.Contact
	err := s.retry(ctx, func() error {
		var err error
		c, err = classify.Reclassify(s.db.WithContext(ctx), number, kind)
		return err
	})
	return c, err
}

// Employees lists the roster, active members first.
func (s *Service) Employees(ctx context.Context) ([]models.Employee, error) {
	return s.engine.Employees(ctx)
}

// Jobs lists jobs matching f.
func (s *Service) Jobs(ctx context.Context, f dispatch.ListFilters) ([]models.Job, error) {
	return s.engine.List(ctx, f)
}

// Job returns a job with its history.
func (s *Service) Job(ctx context.Context, jobID string) (*models.Job, error) {
	return s.engine.Get(ctx, jobID)
}

// JobHistory returns a job's state changes, oldest first.
func (s *Service) JobHistory(ctx context.Context, jobID string) ([]models.JobEvent, error) {
	return s.engine.History(ctx, jobID)
}

// PendingLeave lists leave requests awaiting a resolution.
func (s *Service) PendingLeave(ctx context.Context) ([]models.LeaveRequest, error) {
	return s.engine.PendingLeave(ctx)
}

// LeaveRequests lists leave requests, optionally by status.
func (s *Service) LeaveRequests(ctx context.Context, status models.LeaveStatus) ([]models.LeaveRequest, error) {
	return s.engine.ListLeave(ctx, status)
}

// LeaveConflicts returns the active jobs currently overlapping a request.
func (s *Service) LeaveConflicts(ctx context.Context, requestID uint) ([]models.Job, error) {
	return s.engine.LeaveConflicts(ctx, requestID)
}

// Draft suggests a reply for a conversation.
func (s *Service) Draft(ctx context.Context, number string) (*assistant.Draft, error) {
	return s.drafter.Draft(ctx, number)
}

// SaveKnowledge creates or updates a knowledge entry.
func (s *Service) SaveKnowledge(ctx context.Context, e knowledge.Entry) (*models.KBEntry, error) {
	return knowledge.Upsert(s.db.WithContext(ctx), e)
}

// DeleteKnowledge removes a knowledge entry.
func (s *Service) DeleteKnowledge(ctx context.Context, id uint) error {
	return knowledge.Delete(s.db.WithContext(ctx), id)
}

// Knowledge lists knowledge entries matching query.
func (s *Service) Knowledge(ctx context.Context, query string) ([]models.KBEntry, error) {
	return knowledge.List(s.db.WithContext(ctx), query)
}

// SearchKnowledge returns the entries most relevant to text.
func (s *Service) SearchKnowledge(ctx context.Context, text string, max int) ([]models.KBEntry, error) {
	return knowledge.Search(s.db.WithContext(ctx), text, max)
}
