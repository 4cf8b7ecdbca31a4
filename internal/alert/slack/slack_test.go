package slack

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/frontdesk/internal/alert"
)

type mockClient struct {
	mu     sync.Mutex
	posted []postedMessage
	errs   []error // returned in order, then nil
}

type postedMessage struct {
	channelID string
	options   []slackapi.MsgOption
}

func (m *mockClient) PostMessageContext(_ context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return "", "", err
	}
	m.posted = append(m.posted, postedMessage{channelID: channelID, options: options})
	return channelID, "1234567890.123456", nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "C1"}); err == nil {
		t.Error("expected error without bot token")
	}
	if _, err := New(Opts{BotToken: "xoxb-1"}); err == nil {
		t.Error("expected error without channel")
	}
	n, err := New(Opts{BotToken: "xoxb-1", ChannelID: "C1"})
	if err != nil || n.client == nil {
		t.Errorf("New = %v, %v", n, err)
	}
}

func TestNotify_Posts(t *testing.T) {
	mc := &mockClient{}
	n, _ := New(Opts{ChannelID: "C123", Client: mc})
	if n.Name() != "slack" {
		t.Errorf("Name = %q", n.Name())
	}

	err := n.Notify(context.Background(), alert.Event{Title: "Leave request #1 from E1", Severity: "warning"})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(mc.posted) != 1 {
		t.Fatalf("posted = %d, want 1", len(mc.posted))
	}
	if mc.posted[0].channelID != "C123" {
		t.Errorf("channel = %q", mc.posted[0].channelID)
	}
	if len(mc.posted[0].options) != 2 {
		t.Errorf("options = %d, want text + attachment", len(mc.posted[0].options))
	}
}

func TestNotify_Error(t *testing.T) {
	mc := &mockClient{errs: []error{errors.New("channel_not_found")}}
	n, _ := New(Opts{ChannelID: "C1", Client: mc})
	if err := n.Notify(context.Background(), alert.Event{Title: "x"}); err == nil {
		t.Error("expected error")
	}
}

func TestNotify_RetriesRateLimit(t *testing.T) {
	mc := &mockClient{errs: []error{&slackapi.RateLimitedError{RetryAfter: time.Millisecond}}}
	n, _ := New(Opts{ChannelID: "C1", Client: mc})
	if err := n.Notify(context.Background(), alert.Event{Title: "x"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(mc.posted) != 1 {
		t.Errorf("posted = %d, want 1 after retry", len(mc.posted))
	}
}

func TestEventToAttachment(t *testing.T) {
	ev := alert.Event{
		Title:    "Hold on job-1 expired",
		Body:     "Fix sink",
		Severity: "warning",
		Fields:   []alert.Field{{Name: "Employee", Value: "E1", Short: true}},
		At:       time.Unix(1700000000, 0),
	}
	att := eventToAttachment(ev)
	if att.Title != ev.Title || att.Text != "Fix sink" || att.Fallback != ev.Title {
		t.Errorf("attachment = %+v", att)
	}
	if att.Color != alert.ColorWarning {
		t.Errorf("Color = %q, want %q", att.Color, alert.ColorWarning)
	}
	if string(att.Ts) != "1700000000" {
		t.Errorf("Ts = %q", att.Ts)
	}
	if len(att.Fields) != 1 || att.Fields[0].Title != "Employee" || !att.Fields[0].Short {
		t.Errorf("Fields = %+v", att.Fields)
	}
}
