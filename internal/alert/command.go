package alert

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Command runs a shell command per event, typically a desktop notifier such
// as notify-send. Placeholders {{.Kind}}, {{.Title}} and {{.Body}} are
// substituted before running.
type Command struct {
	Template string
}

// Name implements Notifier.
func (c *Command) Name() string { return "command" }

// Notify runs the templated command through sh -c.
func (c *Command) Notify(ctx context.Context, ev Event) error {
	if c.Template == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", expand(c.Template, ev))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("alert: command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// expand replaces placeholders in the command template with event values.
// Single quotes in values are stripped so they cannot close a quoted argument.
func expand(template string, ev Event) string {
	clean := func(s string) string { return strings.ReplaceAll(s, "'", "") }
	r := strings.NewReplacer(
		"{{.Kind}}", clean(string(ev.Kind)),
		"{{.Title}}", clean(ev.Title),
		"{{.Body}}", clean(ev.Body),
	)
	return r.Replace(template)
}
