// Package alert pushes operator-facing events to chat platforms and the
// desktop. Delivery is best-effort: callers log failures and carry on.
package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zulandar/frontdesk/internal/models"
)

// Kind identifies what happened.
type Kind string

// Event kinds.
const (
	KindLeaveOpened Kind = "leave_opened"
	KindHoldExpired Kind = "hold_expired"
)

// Severity colours, shared by the chat adapters.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Event is a formatted, platform-neutral notification.
type Event struct {
	Kind     Kind
	Title    string
	Body     string
	Severity string // info, warning, error, success
	Fields   []Field
	At       time.Time
}

// Field is a key/value pair shown alongside an event.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Color returns the sidebar colour for the event's severity.
func (e Event) Color() string {
	switch e.Severity {
	case "success":
		return ColorSuccess
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// Notifier delivers events somewhere an operator will see them.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}

const timeLayout = "2006-01-02 15:04"

// LeaveOpened formats a newly detected leave request. jobs are the
// employee's active jobs that overlap the requested window.
func LeaveOpened(req *models.LeaveRequest, employeeName string, jobs []models.Job, loc *time.Location) Event {
	if loc == nil {
		loc = time.UTC
	}
	who := employeeName
	if who == "" {
		who = req.EmployeeID
	}
	ev := Event{
		Kind:     KindLeaveOpened,
		Title:    fmt.Sprintf("Leave request #%d from %s", req.ID, who),
		Body:     req.Content,
		Severity: "info",
		At:       req.CreatedAt,
	}

	when := "unspecified"
	if w, ok := req.Window(); ok {
		when = w.Start.In(loc).Format(timeLayout) + " - " + w.End.In(loc).Format(timeLayout)
	}
	ev.Fields = append(ev.Fields, Field{Name: "Window", Value: when, Short: true})

	if len(jobs) > 0 {
		ev.Severity = "warning"
		lines := make([]string, len(jobs))
		for i, j := range jobs {
			lines[i] = fmt.Sprintf("%s %s (%s, %s)", j.ID, j.Title, j.State, j.WindowStart.In(loc).Format(timeLayout))
		}
		ev.Fields = append(ev.Fields, Field{Name: "Conflicting jobs", Value: strings.Join(lines, "\n")})
	}
	return ev
}

// HoldExpired formats a hold that lapsed and returned its job to open.
func HoldExpired(job models.Job, employeeID string, loc *time.Location) Event {
	if loc == nil {
		loc = time.UTC
	}
	return Event{
		Kind:     KindHoldExpired,
		Title:    fmt.Sprintf("Hold on %s expired", job.ID),
		Body:     job.Title,
		Severity: "warning",
		Fields: []Field{
			{Name: "Employee", Value: employeeID, Short: true},
			{Name: "Window", Value: job.WindowStart.In(loc).Format(timeLayout), Short: true},
		},
		At: job.UpdatedAt,
	}
}

// Multi fans an event out to several notifiers. Report, when set, is called
// once per notifier with its outcome.
type Multi struct {
	Notifiers []Notifier
	Report    func(name string, err error)
}

// Name implements Notifier.
func (m *Multi) Name() string { return "multi" }

// Notify delivers to every notifier and joins their errors.
func (m *Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m.Notifiers {
		err := n.Notify(ctx, ev)
		if m.Report != nil {
			m.Report(n.Name(), err)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Name() string                         { return "nop" }
func (Nop) Notify(context.Context, Event) error { return nil }

// Mock records events for tests.
type Mock struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

// Name implements Notifier.
func (m *Mock) Name() string { return "mock" }

// Notify records ev and returns m.Err.
func (m *Mock) Notify(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.Err
}

// Events returns a copy of everything recorded so far.
func (m *Mock) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
