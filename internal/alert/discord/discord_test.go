package discord

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/frontdesk/internal/alert"
)

type mockSession struct {
	mu     sync.Mutex
	sent   []*discordgo.MessageEmbed
	errs   []error
	chanID string
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	m.chanID = channelID
	m.sent = append(m.sent, embed)
	return &discordgo.Message{ID: "1"}, nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "1"}); err == nil {
		t.Error("expected error without bot token")
	}
	if _, err := New(Opts{BotToken: "tok"}); err == nil {
		t.Error("expected error without channel")
	}
}

func TestNotify_SendsEmbed(t *testing.T) {
	ms := &mockSession{}
	n, err := New(Opts{ChannelID: "chan-1", Session: ms})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n.Name() != "discord" {
		t.Errorf("Name = %q", n.Name())
	}
	ev := alert.Event{Title: "Leave request #3 from E1", Body: "off tomorrow", Severity: "warning"}
	if err := n.Notify(context.Background(), ev); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(ms.sent) != 1 || ms.chanID != "chan-1" {
		t.Fatalf("sent = %d to %q", len(ms.sent), ms.chanID)
	}
	if ms.sent[0].Title != ev.Title || ms.sent[0].Description != "off tomorrow" {
		t.Errorf("embed = %+v", ms.sent[0])
	}
}

func TestNotify_Error(t *testing.T) {
	ms := &mockSession{errs: []error{errors.New("missing access")}}
	n, _ := New(Opts{ChannelID: "c", Session: ms})
	if err := n.Notify(context.Background(), alert.Event{}); err == nil {
		t.Error("expected error")
	}
}

func TestNotify_RetriesRateLimit(t *testing.T) {
	limited := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
	ms := &mockSession{errs: []error{limited}}
	n, _ := New(Opts{ChannelID: "c", Session: ms})
	n.baseBackoff = time.Millisecond
	if err := n.Notify(context.Background(), alert.Event{Title: "x"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(ms.sent) != 1 {
		t.Errorf("sent = %d, want 1 after retry", len(ms.sent))
	}
}

func TestEventToEmbed(t *testing.T) {
	ev := alert.Event{
		Title:    "Hold on job-1 expired",
		Severity: "success",
		Fields:   []alert.Field{{Name: "Employee", Value: "E1", Short: true}},
		At:       time.Date(2025, 12, 31, 10, 0, 0, 0, time.UTC),
	}
	embed := eventToEmbed(ev)
	if embed.Color != 0x36a64f {
		t.Errorf("Color = %#x, want 0x36a64f", embed.Color)
	}
	if embed.Timestamp != "2025-12-31T10:00:00Z" {
		t.Errorf("Timestamp = %q", embed.Timestamp)
	}
	if len(embed.Fields) != 1 || !embed.Fields[0].Inline {
		t.Errorf("Fields = %+v", embed.Fields)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := map[string]int{
		"#36a64f": 0x36a64f,
		"E53935":  0xe53935,
		"":        0,
		"#zzz":    0,
	}
	for in, want := range tests {
		if got := parseHexColor(in); got != want {
			t.Errorf("parseHexColor(%q) = %#x, want %#x", in, got, want)
		}
	}
}
