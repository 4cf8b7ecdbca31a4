// Package config provides YAML-based configuration loading for the front desk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/frontdesk/internal/phone"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from frontdesk.yaml.
type Config struct {
	Timezone  string          `yaml:"timezone"`
	Storage   StorageConfig   `yaml:"storage"`
	Roster    []EmployeeEntry `yaml:"roster"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Assistant AssistantConfig `yaml:"assistant"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// StorageConfig selects and locates the persistent store.
type StorageConfig struct {
	Driver   string `yaml:"driver"` // sqlite (default) or mysql
	Path     string `yaml:"path"`   // sqlite database file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// EmployeeEntry is one roster member.
type EmployeeEntry struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Phone  string `yaml:"phone"`
	Active *bool  `yaml:"active"`
}

// IsActive reports the roster flag, defaulting to true.
func (e EmployeeEntry) IsActive() bool {
	return e.Active == nil || *e.Active
}

// DispatchConfig tunes the dispatch engine. Holds lapse after HoldMinutes
// (10 unless set); the sweeper in "fd serve" then returns unconfirmed jobs
// to open.
type DispatchConfig struct {
	HoldMinutes    int           `yaml:"hold_minutes"`
	LockTimeout    time.Duration `yaml:"lock_timeout"`
	BusyRetries    int           `yaml:"busy_retries"`
	BusyBackoff    time.Duration `yaml:"busy_backoff"`
	ExpirySchedule string        `yaml:"expiry_schedule"`
}

// HoldTTL returns how long a hold lasts before expiring, or 0 for never.
// A negative hold_minutes disables expiry.
func (d DispatchConfig) HoldTTL() time.Duration {
	if d.HoldMinutes <= 0 {
		return 0
	}
	return time.Duration(d.HoldMinutes) * time.Minute
}

// GatewayConfig selects the outbound SMS gateway.
type GatewayConfig struct {
	Mode string `yaml:"mode"` // simulator or off
}

// AssistantConfig configures reply drafting.
type AssistantConfig struct {
	Mode        string `yaml:"mode"` // local_first, cloud_first or off
	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`
	CloudURL    string `yaml:"cloud_url"`
	CloudKey    string `yaml:"cloud_key"`
	CloudModel  string `yaml:"cloud_model"`
}

// AlertsConfig configures operator notifications.
type AlertsConfig struct {
	Slack   ChannelConfig `yaml:"slack"`
	Discord ChannelConfig `yaml:"discord"`
	Command string        `yaml:"command"` // shell template, e.g. notify-send '{{.Title}}' '{{.Body}}'
}

// ChannelConfig identifies a chat channel reachable with a bot token.
type ChannelConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether both token and channel are set.
func (c ChannelConfig) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location resolves the configured timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DataDir is the default storage root for the local database.
func DataDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return ".frontdesk"
	}
	return filepath.Join(base, "frontdesk")
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(DataDir(), "frontdesk.db")
	}
	if c.Storage.Driver == "mysql" {
		if c.Storage.Host == "" {
			c.Storage.Host = "127.0.0.1"
		}
		if c.Storage.Port == 0 {
			c.Storage.Port = 3306
		}
		if c.Storage.User == "" {
			c.Storage.User = "root"
		}
		if c.Storage.Database == "" {
			c.Storage.Database = "frontdesk"
		}
	}
	if c.Dispatch.HoldMinutes == 0 {
		c.Dispatch.HoldMinutes = 10
	}
	if c.Dispatch.LockTimeout == 0 {
		c.Dispatch.LockTimeout = 2 * time.Second
	}
	if c.Dispatch.BusyRetries == 0 {
		c.Dispatch.BusyRetries = 3
	}
	if c.Dispatch.BusyBackoff == 0 {
		c.Dispatch.BusyBackoff = 50 * time.Millisecond
	}
	if c.Dispatch.ExpirySchedule == "" {
		c.Dispatch.ExpirySchedule = "@every 1m"
	}
	if c.Gateway.Mode == "" {
		c.Gateway.Mode = "simulator"
	}
	if c.Assistant.Mode == "" {
		c.Assistant.Mode = "local_first"
	}
	if c.Assistant.OllamaURL == "" {
		c.Assistant.OllamaURL = "http://localhost:11434"
	}
	if c.Assistant.OllamaModel == "" {
		c.Assistant.OllamaModel = "llama3.1:8b"
	}
	if c.Assistant.CloudURL == "" {
		c.Assistant.CloudURL = "https://api.openai.com"
	}
	if c.Assistant.CloudModel == "" {
		c.Assistant.CloudModel = "gpt-4o-mini"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8765
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	for i := range c.Roster {
		c.Roster[i].ID = strings.TrimSpace(c.Roster[i].ID)
		c.Roster[i].Phone = phone.Normalize(c.Roster[i].Phone)
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Storage.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q must be sqlite or mysql", c.Storage.Driver))
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("timezone %q: %v", c.Timezone, err))
		}
	}
	ids := make(map[string]bool)
	phones := make(map[string]bool)
	for i, e := range c.Roster {
		if e.ID == "" {
			errs = append(errs, fmt.Sprintf("roster[%d].id is required", i))
		} else if ids[e.ID] {
			errs = append(errs, fmt.Sprintf("roster[%d].id %q is duplicated", i, e.ID))
		}
		if e.Phone == "" {
			errs = append(errs, fmt.Sprintf("roster[%d].phone is required", i))
		} else if phones[e.Phone] {
			errs = append(errs, fmt.Sprintf("roster[%d].phone %q is duplicated", i, e.Phone))
		}
		ids[e.ID] = true
		phones[e.Phone] = true
	}
	if c.Dispatch.LockTimeout < 0 {
		errs = append(errs, "dispatch.lock_timeout must not be negative")
	}
	if c.Dispatch.BusyRetries < 0 {
		errs = append(errs, "dispatch.busy_retries must not be negative")
	}
	if _, err := cron.ParseStandard(c.Dispatch.ExpirySchedule); err != nil {
		errs = append(errs, fmt.Sprintf("dispatch.expiry_schedule %q: %v", c.Dispatch.ExpirySchedule, err))
	}
	switch c.Gateway.Mode {
	case "simulator", "off":
	default:
		errs = append(errs, fmt.Sprintf("gateway.mode %q must be simulator or off", c.Gateway.Mode))
	}
	switch c.Assistant.Mode {
	case "local_first", "cloud_first", "off":
	default:
		errs = append(errs, fmt.Sprintf("assistant.mode %q must be local_first, cloud_first or off", c.Assistant.Mode))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
