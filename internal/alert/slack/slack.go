// Package slack posts operator alerts to a Slack channel.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/frontdesk/internal/alert"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// poster abstracts the Slack API method we use, enabling test mocks.
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Opts holds parameters for creating a Notifier.
type Opts struct {
	BotToken  string // xoxb-... bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client poster
}

// Notifier implements alert.Notifier for Slack.
type Notifier struct {
	client    poster
	channelID string
}

// New creates a Slack notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	n := &Notifier{client: opts.Client, channelID: opts.ChannelID}
	if n.client == nil {
		n.client = slackapi.New(opts.BotToken)
	}
	return n, nil
}

// Name implements alert.Notifier.
func (n *Notifier) Name() string { return "slack" }

// Notify posts ev as a message with one coloured attachment.
func (n *Notifier) Notify(ctx context.Context, ev alert.Event) error {
	options := []slackapi.MsgOption{
		slackapi.MsgOptionText(ev.Title, false),
		slackapi.MsgOptionAttachments(eventToAttachment(ev)),
	}
	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := n.client.PostMessageContext(ctx, n.channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// eventToAttachment converts an alert event to a Slack attachment.
func eventToAttachment(ev alert.Event) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:    ev.Title,
		Text:     ev.Body,
		Color:    ev.Color(),
		Fallback: ev.Title,
	}
	if !ev.At.IsZero() {
		att.Ts = json.Number(strconv.FormatInt(ev.At.Unix(), 10))
	}
	for _, f := range ev.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}

// retryOnRateLimit calls fn and retries on Slack rate limit errors, honouring
// RetryAfter and context cancellation.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}
		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
