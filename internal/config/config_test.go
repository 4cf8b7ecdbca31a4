package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
timezone: Pacific/Auckland

storage:
  driver: sqlite
  path: /var/lib/frontdesk/desk.db

roster:
  - id: E1
    name: Aroha
    phone: "021-111 1111"
  - id: E2
    name: Ben
    phone: "0222222222"
    active: false

dispatch:
  hold_minutes: 15
  lock_timeout: 500ms
  busy_retries: 5
  busy_backoff: 20ms
  expiry_schedule: "*/5 * * * *"

gateway:
  mode: off

assistant:
  mode: cloud_first
  cloud_key: sk-test
  cloud_model: gpt-test

alerts:
  slack:
    bot_token: xoxb-test
    channel_id: C01
  discord:
    bot_token: ""
    channel_id: "123"

server:
  port: 9000

log:
  level: debug
  development: true
`

const minimalYAML = `
roster:
  - id: E1
    name: Aroha
    phone: "0211111111"
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Timezone != "Pacific/Auckland" {
		t.Errorf("Timezone = %q, want Pacific/Auckland", cfg.Timezone)
	}
	if cfg.Storage.Path != "/var/lib/frontdesk/desk.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if len(cfg.Roster) != 2 {
		t.Fatalf("len(Roster) = %d, want 2", len(cfg.Roster))
	}
	if cfg.Roster[0].Phone != "0211111111" {
		t.Errorf("Roster[0].Phone = %q, want normalised 0211111111", cfg.Roster[0].Phone)
	}
	if !cfg.Roster[0].IsActive() {
		t.Error("Roster[0] should default to active")
	}
	if cfg.Roster[1].IsActive() {
		t.Error("Roster[1] should be inactive")
	}
	if cfg.Dispatch.HoldTTL() != 15*time.Minute {
		t.Errorf("HoldTTL = %v, want 15m", cfg.Dispatch.HoldTTL())
	}
	if cfg.Dispatch.LockTimeout != 500*time.Millisecond {
		t.Errorf("LockTimeout = %v, want 500ms", cfg.Dispatch.LockTimeout)
	}
	if cfg.Dispatch.BusyRetries != 5 {
		t.Errorf("BusyRetries = %d, want 5", cfg.Dispatch.BusyRetries)
	}
	if cfg.Dispatch.BusyBackoff != 20*time.Millisecond {
		t.Errorf("BusyBackoff = %v, want 20ms", cfg.Dispatch.BusyBackoff)
	}
	if cfg.Gateway.Mode != "off" {
		t.Errorf("Gateway.Mode = %q, want off", cfg.Gateway.Mode)
	}
	if cfg.Assistant.Mode != "cloud_first" || cfg.Assistant.CloudKey != "sk-test" {
		t.Errorf("Assistant = %+v", cfg.Assistant)
	}
	if !cfg.Alerts.Slack.Enabled() {
		t.Error("slack alerts should be enabled")
	}
	if cfg.Alerts.Discord.Enabled() {
		t.Error("discord alerts without token should be disabled")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Development {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Location().String() != "Pacific/Auckland" {
		t.Errorf("Location = %v", cfg.Location())
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite (default)", cfg.Storage.Driver)
	}
	if filepath.Base(cfg.Storage.Path) != "frontdesk.db" {
		t.Errorf("Storage.Path = %q, want .../frontdesk.db (default)", cfg.Storage.Path)
	}
	if cfg.Dispatch.HoldMinutes != 10 {
		t.Errorf("HoldMinutes = %d, want 10 (default)", cfg.Dispatch.HoldMinutes)
	}
	if cfg.Dispatch.LockTimeout != 2*time.Second {
		t.Errorf("LockTimeout = %v, want 2s (default)", cfg.Dispatch.LockTimeout)
	}
	if cfg.Dispatch.BusyRetries != 3 {
		t.Errorf("BusyRetries = %d, want 3 (default)", cfg.Dispatch.BusyRetries)
	}
	if cfg.Dispatch.ExpirySchedule != "@every 1m" {
		t.Errorf("ExpirySchedule = %q, want @every 1m (default)", cfg.Dispatch.ExpirySchedule)
	}
	if cfg.Gateway.Mode != "simulator" {
		t.Errorf("Gateway.Mode = %q, want simulator (default)", cfg.Gateway.Mode)
	}
	if cfg.Assistant.Mode != "local_first" {
		t.Errorf("Assistant.Mode = %q, want local_first (default)", cfg.Assistant.Mode)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("Server.Port = %d, want 8765 (default)", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info (default)", cfg.Log.Level)
	}
	if cfg.Location() != time.Local {
		t.Errorf("Location = %v, want time.Local", cfg.Location())
	}
}

func TestParse_EmptyConfigIsValid(t *testing.T) {
	if _, err := Parse([]byte("")); err != nil {
		t.Fatalf("empty config should be valid: %v", err)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte("storage:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.Host != "127.0.0.1" || cfg.Storage.Port != 3306 || cfg.Storage.Database != "frontdesk" || cfg.Storage.User != "root" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Storage.Path != "" {
		t.Errorf("Storage.Path = %q, want empty for mysql", cfg.Storage.Path)
	}
}

func TestParse_NegativeHoldMinutesDisablesExpiry(t *testing.T) {
	cfg, err := Parse([]byte("dispatch:\n  hold_minutes: -1\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Dispatch.HoldTTL() != 0 {
		t.Errorf("HoldTTL = %v, want 0", cfg.Dispatch.HoldTTL())
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad driver", "storage:\n  driver: postgres\n", "storage.driver"},
		{"bad timezone", "timezone: Mars/Olympus\n", "timezone"},
		{"missing id", "roster:\n  - phone: \"021\"\n", "roster[0].id is required"},
		{"missing phone", "roster:\n  - id: E1\n", "roster[0].phone is required"},
		{"duplicate id", "roster:\n  - id: E1\n    phone: \"021\"\n  - id: E1\n    phone: \"022\"\n", "roster[1].id \"E1\" is duplicated"},
		{"duplicate phone", "roster:\n  - id: E1\n    phone: \"021-1\"\n  - id: E2\n    phone: \"0211\"\n", "roster[1].phone"},
		{"bad schedule", "dispatch:\n  expiry_schedule: \"not a schedule\"\n", "dispatch.expiry_schedule"},
		{"bad gateway", "gateway:\n  mode: twilio\n", "gateway.mode"},
		{"bad assistant", "assistant:\n  mode: always\n", "assistant.mode"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"negative retries", "dispatch:\n  busy_retries: -2\n", "busy_retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("roster: [unterminated"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse")
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frontdesk.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Roster[0].ID != "E1" {
		t.Errorf("Roster[0].ID = %q, want E1", cfg.Roster[0].ID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}
