// Package gateway delivers outbound SMS. Real carrier integration is out of
// scope; the simulator accepts everything and the off gateway rejects it.
package gateway

import (
	"context"
	"fmt"
	"time"
)

// Delivery statuses reported in a Receipt.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Gateway modes accepted by New.
const (
	ModeSimulator = "simulator"
	ModeOff       = "off"
)

// Receipt describes the outcome of one send.
type Receipt struct {
	ID     string
	Status string
}

// OK reports whether the gateway accepted the message.
func (r Receipt) OK() bool { return r.Status == StatusSent }

// Gateway sends a text to a phone number.
type Gateway interface {
	Send(ctx context.Context, phone, body string) (Receipt, error)
}

// New returns the gateway for mode.
func New(mode string) (Gateway, error) {
	switch mode {
	case ModeSimulator, "":
		return Simulator{}, nil
	case ModeOff:
		return Off{}, nil
	default:
		return nil, fmt.Errorf("gateway: unknown mode %q", mode)
	}
}

// Simulator pretends every message was delivered.
type Simulator struct {
	Now func() time.Time
}

// Send returns a sent receipt with a sim-<unix millis> ID.
func (s Simulator) Send(ctx context.Context, phone, body string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("gateway: send: %w", err)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return Receipt{ID: fmt.Sprintf("sim-%d", now().UnixMilli()), Status: StatusSent}, nil
}

// Off refuses to deliver anything. The message is still recorded by the
// caller, marked failed.
type Off struct{}

// Send always returns a failed receipt.
func (Off) Send(context.Context, string, string) (Receipt, error) {
	return Receipt{Status: StatusFailed}, nil
}
