package frontdesk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/frontdesk/internal/alert"
	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/classify"
	"github.com/zulandar/frontdesk/internal/db"
	"github.com/zulandar/frontdesk/internal/dispatch"
	"github.com/zulandar/frontdesk/internal/gateway"
	"github.com/zulandar/frontdesk/internal/messaging"
	"github.com/zulandar/frontdesk/internal/models"
	"github.com/zulandar/frontdesk/internal/phone"
	"github.com/zulandar/frontdesk/internal/session"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultChannel tags messages that did not say where they came from.
const DefaultChannel = "sms"

// Inbound is a message arriving from a customer or employee.
type Inbound struct {
	ID        string    `json:"id"` // optional; resubmitting an ID is a no-op
	Phone     string    `json:"phone" binding:"required"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel"`
}

// Ingested is the outcome of SubmitMessage.
type Ingested struct {
	Message   *models.Message      `json:"message"`
	SessionID uint                 `json:"session_id"`
	Kind      models.ContactKind   `json:"kind"`
	Leave     *models.LeaveRequest `json:"leave,omitempty"`
	Conflicts []models.Job         `json:"conflicts,omitempty"`
	Duplicate bool                 `json:"duplicate"`
}

// SubmitMessage stores an inbound message. The contact, session, message and
// any leave request are written in one transaction; re-submitting a stored
// message ID returns the original with Duplicate set and changes nothing.
func (s *Service) SubmitMessage(ctx context.Context, in Inbound) (*Ingested, error) {
	p := phone.Normalize(in.Phone)
	if p == "" {
		return nil, fmt.Errorf("frontdesk: phone is required")
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.clock()
	}
	ts = ts.UTC()
	channel := in.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	var out *Ingested
	err := s.retry(ctx, func() error {
		out = &Ingested{}
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if in.ID != "" {
				dup, err := duplicate(tx, in.ID)
				if err != nil || dup != nil {
					out = dup
					return err
				}
			}

			res, err := s.classifier.Classify(tx, p, in.Body, ts)
			if err != nil {
				return err
			}
			out.Kind = res.Kind

			msg := &models.Message{
				ID:        in.ID,
				Phone:     p,
				Direction: models.Inbound,
				Body:      in.Body,
				Timestamp: ts,
				Meta:      datatypes.JSONMap{messaging.MetaChannel: channel},
			}
			if msg.ID == "" {
				msg.ID = messaging.NewID()
			}
			if out.SessionID, err = session.RecordMessage(tx, msg); err != nil {
				return err
			}
			inserted, err := messaging.Append(tx, msg)
			if err != nil {
				return err
			}
			if !inserted {
				// Lost a race with the same ID; the retry reports the duplicate.
				return fmt.Errorf("frontdesk: message %s: concurrent insert: %w", msg.ID, apperr.ErrBusy)
			}
			out.Message = msg

			if res.Leave != nil {
				out.Leave, out.Conflicts, err = dispatch.OpenLeaveRequest(tx, dispatch.LeaveOpts{
					EmployeeID:      res.EmployeeID,
					Window:          res.Leave.Window,
					Content:         in.Body,
					SourceMessageID: msg.ID,
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		return db.TranslateError("frontdesk: store inbound message", err)
	})
	if err != nil {
		return nil, err
	}

	if out.Duplicate {
		s.metrics.DuplicateMessages.Inc()
		return out, nil
	}
	s.metrics.MessagesIngested.WithLabelValues(string(models.Inbound)).Inc()
	s.hub.Publish(Event{Type: EventMessage, Message: out.Message})
	s.log.Debug("message ingested",
		zap.String("id", out.Message.ID),
		zap.String("phone", p),
		zap.String("kind", string(out.Kind)))

	if out.Leave != nil {
		s.metrics.LeaveRequests.Inc()
		s.hub.Publish(Event{Type: EventLeave, Leave: out.Leave})
		s.log.Info("leave request opened",
			zap.Uint("id", out.Leave.ID),
			zap.String("employee", out.Leave.EmployeeID),
			zap.Int("conflicts", len(out.Conflicts)))
		s.alert(ctx, alert.LeaveOpened(out.Leave, s.employeeName(ctx, out.Leave.EmployeeID), out.Conflicts, s.loc))
	}
	return out, nil
}

// duplicate returns the stored result for a message ID, or nil when the ID
// is new.
func duplicate(tx *gorm.DB, id string) (*Ingested, error) {
	existing, err := messaging.Get(tx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dup := &Ingested{Message: existing, SessionID: existing.SessionID, Duplicate: true}
	if c, err := classify.GetContact(tx, existing.Phone); err == nil {
		dup.Kind = c.Kind
	}
	var req models.LeaveRequest
	if err := tx.Where("source_message_id = ?", id).First(&req).Error; err == nil {
		dup.Leave = &req
	}
	return dup, nil
}

// SendMessage delivers body to phone through the gateway and records it as
// an outbound message. The message is stored even when the gateway refuses
// it; the receipt is kept in its metadata.
func (s *Service) SendMessage(ctx context.Context, number, body string) (*models.Message, error) {
	p := phone.Normalize(number)
	if p == "" {
		return nil, fmt.Errorf("frontdesk: phone is required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("frontdesk: body is required")
	}

	receipt, err := s.gateway.Send(ctx, p, body)
	if err != nil {
		s.log.Warn("gateway send failed", zap.String("phone", p), zap.Error(err))
		receipt = gateway.Receipt{Status: gateway.StatusFailed}
	}

	msg := &models.Message{
		ID:        messaging.NewID(),
		Phone:     p,
		Direction: models.Outbound,
		Body:      body,
		Timestamp: s.clock(),
		Meta: datatypes.JSONMap{
			messaging.MetaChannel:       DefaultChannel,
			messaging.MetaGatewayID:     receipt.ID,
			messaging.MetaGatewayStatus: receipt.Status,
		},
	}
	err = s.retry(ctx, func() error {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Outbound text is never scanned for leave requests.
			if _, err := s.classifier.Classify(tx, p, "", msg.Timestamp); err != nil {
				return err
			}
			if _, err := session.RecordMessage(tx, msg); err != nil {
				return err
			}
			_, err := messaging.Append(tx, msg)
			return err
		})
		return db.TranslateError("frontdesk: store outbound message", err)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.MessagesIngested.WithLabelValues(string(models.Outbound)).Inc()
	s.hub.Publish(Event{Type: EventMessage, Message: msg})
	if !receipt.OK() {
		s.log.Warn("message stored but not delivered", zap.String("id", msg.ID), zap.String("phone", p))
	}
	return msg, nil
}
