// Package assistant drafts replies to customer messages with a local or
// hosted chat model. Drafts are suggestions; nothing is sent automatically.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrEmptyReply is returned when a backend answers with no text.
var ErrEmptyReply = errors.New("empty reply")

// Backend is a chat model endpoint.
type Backend interface {
	Name() string
	Chat(ctx context.Context, msgs []Message) (string, error)
}

// Default per-call timeouts.
const (
	OllamaTimeout = 8 * time.Second
	CloudTimeout  = 12 * time.Second
)

// Ollama talks to a local Ollama server.
type Ollama struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Client  *http.Client
}

// Name implements Backend.
func (o *Ollama) Name() string { return "ollama" }

type ollamaRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaResponse struct {
	Message Message `json:"message"`
}

// Chat posts to /api/chat with streaming disabled.
func (o *Ollama) Chat(ctx context.Context, msgs []Message) (string, error) {
	var out ollamaResponse
	err := postJSON(ctx, o.Client, orDefault(o.Timeout, OllamaTimeout),
		strings.TrimRight(o.BaseURL, "/")+"/api/chat", "",
		ollamaRequest{Model: o.Model, Messages: msgs}, &out)
	if err != nil {
		return "", fmt.Errorf("assistant: ollama: %w", err)
	}
	return nonEmpty("ollama", out.Message.Content)
}

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	Client      *http.Client
}

// Name implements Backend.
func (c *OpenAI) Name() string { return "cloud" }

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Chat posts to /v1/chat/completions.
func (c *OpenAI) Chat(ctx context.Context, msgs []Message) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("assistant: cloud: api key not configured")
	}
	temp := c.Temperature
	if temp == 0 {
		temp = 0.4
	}
	var out completionResponse
	err := postJSON(ctx, c.Client, orDefault(c.Timeout, CloudTimeout),
		strings.TrimRight(c.BaseURL, "/")+"/v1/chat/completions", c.APIKey,
		completionRequest{Model: c.Model, Messages: msgs, Temperature: temp}, &out)
	if err != nil {
		return "", fmt.Errorf("assistant: cloud: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("assistant: cloud: %w", ErrEmptyReply)
	}
	return nonEmpty("cloud", out.Choices[0].Message.Content)
}

// postJSON sends body as JSON and decodes a 2xx response into out.
func postJSON(ctx context.Context, client *http.Client, timeout time.Duration, url, bearer string, body, out interface{}) error {
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func nonEmpty(name, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("assistant: %s: %w", name, ErrEmptyReply)
	}
	return s, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
