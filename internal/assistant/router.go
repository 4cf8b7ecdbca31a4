package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/frontdesk/internal/config"
	"go.uber.org/zap"
)

// Router modes.
const (
	ModeLocalFirst = "local_first"
	ModeCloudFirst = "cloud_first"
	ModeOff        = "off"
)

// ErrDisabled is returned by an off router.
var ErrDisabled = errors.New("assistant disabled")

// Reply is a model answer and the backend that produced it.
type Reply struct {
	Text    string
	Backend string
}

// Router tries backends in mode order and falls back on failure.
type Router struct {
	Mode  string
	Local Backend
	Cloud Backend
	Log   *zap.Logger
}

// NewRouter builds a router from assistant configuration.
func NewRouter(cfg config.AssistantConfig, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		Mode:  cfg.Mode,
		Local: &Ollama{BaseURL: cfg.OllamaURL, Model: cfg.OllamaModel},
		Cloud: &OpenAI{BaseURL: cfg.CloudURL, APIKey: cfg.CloudKey, Model: cfg.CloudModel},
		Log:   log,
	}
}

// order returns the backends to try for the router's mode.
func (r *Router) order() []Backend {
	var bs []Backend
	switch r.Mode {
	case ModeOff:
		return nil
	case ModeCloudFirst:
		bs = []Backend{r.Cloud, r.Local}
	default:
		bs = []Backend{r.Local, r.Cloud}
	}
	out := bs[:0]
	for _, b := range bs {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// Chat returns the first non-empty answer. When every backend fails the
// errors are joined.
func (r *Router) Chat(ctx context.Context, msgs []Message) (Reply, error) {
	backends := r.order()
	if len(backends) == 0 {
		return Reply{}, ErrDisabled
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	var errs []error
	for _, b := range backends {
		text, err := b.Chat(ctx, msgs)
		if err == nil {
			return Reply{Text: text, Backend: b.Name()}, nil
		}
		log.Warn("assistant backend failed", zap.String("backend", b.Name()), zap.Error(err))
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return Reply{}, fmt.Errorf("assistant: all backends failed: %w", errors.Join(errs...))
}
