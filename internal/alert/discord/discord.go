// Package discord posts operator alerts to a Discord channel as embeds.
package discord

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/frontdesk/internal/alert"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries  = 3
	baseBackoff = time.Second
)

// session abstracts the discordgo.Session method we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Opts holds parameters for creating a Notifier.
type Opts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// Notifier implements alert.Notifier for Discord. It only uses the REST API,
// so no gateway connection is opened.
type Notifier struct {
	sess        session
	channelID   string
	baseBackoff time.Duration
}

// New creates a Discord notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel is required")
	}
	n := &Notifier{sess: opts.Session, channelID: opts.ChannelID, baseBackoff: baseBackoff}
	if n.sess == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		n.sess = dg
	}
	return n, nil
}

// Name implements alert.Notifier.
func (n *Notifier) Name() string { return "discord" }

// Notify sends ev as a single embed.
func (n *Notifier) Notify(ctx context.Context, ev alert.Event) error {
	embed := eventToEmbed(ev)
	err := n.retryOnRateLimit(ctx, func() error {
		_, sendErr := n.sess.ChannelMessageSendEmbed(n.channelID, embed, discordgo.WithContext(ctx))
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

// eventToEmbed converts an alert event to a Discord embed.
func eventToEmbed(ev alert.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
		Color:       parseHexColor(ev.Color()),
	}
	if !ev.At.IsZero() {
		embed.Timestamp = ev.At.UTC().Format(time.RFC3339)
	}
	for _, f := range ev.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseHexColor converts "#36a64f" to its integer value; malformed input is 0.
func parseHexColor(hex string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}

// retryOnRateLimit calls fn and retries with exponential backoff on HTTP 429.
func (n *Notifier) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests || attempt == maxRetries {
			return err
		}
		wait := time.Duration(math.Pow(2, float64(attempt))) * n.baseBackoff
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
