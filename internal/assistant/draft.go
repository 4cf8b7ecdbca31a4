package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/classify"
	"github.com/zulandar/frontdesk/internal/knowledge"
	"github.com/zulandar/frontdesk/internal/messaging"
	"github.com/zulandar/frontdesk/internal/metrics"
	"github.com/zulandar/frontdesk/internal/models"
	"github.com/zulandar/frontdesk/internal/phone"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Drafting limits.
const (
	DefaultHistory   = 40
	DefaultKBEntries = 4
)

// Canned replies used when no model is reachable, or for staff.
const (
	FallbackReply = "Got it. Could you also send the time, address, contact number and what exactly you need?"
	StaffReply    = "Got it, I'll check the schedule and your leave."
)

const systemPrompt = `You are the SMS front desk and dispatch assistant.
Keep replies short: confirm the time, address, contact number and what is needed. If something is missing, ask for it in one sentence. Answer in the customer's language.
Current time: {{ .Now }}
{{- if .Knowledge }}

Reference notes:
{{- range .Knowledge }}
- {{ .Title }}: {{ .Content }}
{{- end }}
{{- end }}
`

var promptTmpl = template.Must(template.New("system").Parse(systemPrompt))

// Chatter is satisfied by *Router.
type Chatter interface {
	Chat(ctx context.Context, msgs []Message) (Reply, error)
}

// Draft is a suggested reply.
type Draft struct {
	Text     string `json:"text"`
	Backend  string `json:"backend"`
	Fallback bool   `json:"fallback"`
}

// Drafter builds prompts from the conversation and knowledge base.
type Drafter struct {
	DB       *gorm.DB
	Chat     Chatter
	Location *time.Location
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	History  int
	KB       int
	Now      func() time.Time
}

// Draft suggests a reply for the conversation with number. Model failures
// degrade to a canned reply; only storage errors are returned.
func (d *Drafter) Draft(ctx context.Context, number string) (*Draft, error) {
	number = phone.Normalize(number)
	contact, err := classify.GetContact(d.DB.WithContext(ctx), number)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("assistant: draft: %w", err)
	}
	if contact != nil && contact.Kind == models.KindEmployee {
		return &Draft{Text: StaffReply, Fallback: true}, nil
	}

	msgs, err := d.Prompt(ctx, number)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := d.Chat.Chat(ctx, msgs)
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			d.log().Info("draft fell back to canned reply", zap.String("phone", number), zap.Error(err))
		}
		return &Draft{Text: FallbackReply, Fallback: true}, nil
	}
	if d.Metrics != nil {
		d.Metrics.DraftLatency.WithLabelValues(reply.Backend).Observe(time.Since(start).Seconds())
	}
	return &Draft{Text: reply.Text, Backend: reply.Backend}, nil
}

// Prompt assembles the system prompt, knowledge context and recent history
// for number.
func (d *Drafter) Prompt(ctx context.Context, number string) ([]Message, error) {
	tx := d.DB.WithContext(ctx)
	history, err := messaging.List(tx, phone.Normalize(number), orInt(d.History, DefaultHistory))
	if err != nil {
		return nil, fmt.Errorf("assistant: history: %w", err)
	}

	var lastInbound string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Direction == models.Inbound {
			lastInbound = history[i].Body
			break
		}
	}
	kb, err := knowledge.Search(tx, lastInbound, orInt(d.KB, DefaultKBEntries))
	if err != nil {
		return nil, fmt.Errorf("assistant: knowledge: %w", err)
	}

	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, struct {
		Now       string
		Knowledge []models.KBEntry
	}{now().In(loc).Format("2006-01-02 15:04 MST"), kb}); err != nil {
		return nil, fmt.Errorf("assistant: render prompt: %w", err)
	}

	out := make([]Message, 0, len(history)+1)
	out = append(out, Message{Role: RoleSystem, Content: buf.String()})
	for _, m := range history {
		role := RoleUser
		if m.Direction == models.Outbound {
			role = RoleAssistant
		}
		out = append(out, Message{Role: role, Content: m.Body})
	}
	return out, nil
}

func (d *Drafter) log() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
