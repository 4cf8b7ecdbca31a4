package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// writeConfig creates a sqlite-backed config in a temp dir.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "frontdesk.yaml")
	cfg := fmt.Sprintf(`timezone: UTC
storage:
  driver: sqlite
  path: %s
roster:
  - id: E1
    name: Alice
    phone: "13900000001"
  - id: E2
    name: Bob
    phone: "13900000002"
gateway:
  mode: simulator
assistant:
  mode: "off"
log:
  level: error
`, filepath.Join(dir, "data", "frontdesk.db"))
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// run executes fd with args against configPath and returns stdout+stderr.
func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append(args, "--config", configPath))
	err := cmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, err := run(t, configPath, args...)
	if err != nil {
		t.Fatalf("fd %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

var jobIDRe = regexp.MustCompile(`job-[0-9a-f]{5}`)

func createJob(t *testing.T, configPath, title, start, end string) string {
	t.Helper()
	out := mustRun(t, configPath, "job", "create", "--title", title, "--start", start, "--end", end)
	id := jobIDRe.FindString(out)
	if id == "" {
		t.Fatalf("no job ID in output: %s", out)
	}
	return id
}

func TestDBInit(t *testing.T) {
	cfg := writeConfig(t)
	out := mustRun(t, cfg, "db", "init")
	for _, want := range []string{"Migrated 8 tables", "Seeded 2 employees: E1 E2", "starter knowledge", "initialized successfully"} {
		if !strings.Contains(out, want) {
			t.Errorf("db init output missing %q:\n%s", want, out)
		}
	}

	// A second init keeps the knowledge base as it is.
	out = mustRun(t, cfg, "db", "init")
	if strings.Contains(out, "starter knowledge") {
		t.Errorf("second init reseeded knowledge:\n%s", out)
	}

	out = mustRun(t, cfg, "staff", "list")
	if !strings.Contains(out, "Alice") || !strings.Contains(out, "13900000002") {
		t.Errorf("staff list = %s", out)
	}
}

func TestDBReset_Aborted(t *testing.T) {
	cfg := writeConfig(t)
	mustRun(t, cfg, "db", "init")
	out := mustRun(t, cfg, "db", "reset")
	if !strings.Contains(out, "Aborted.") {
		t.Errorf("reset without confirmation should abort:\n%s", out)
	}
	out = mustRun(t, cfg, "db", "reset", "--yes")
	if !strings.Contains(out, "Reset 8 tables") {
		t.Errorf("reset --yes output:\n%s", out)
	}
}

func TestMessagesAndSessions(t *testing.T) {
	cfg := writeConfig(t)
	mustRun(t, cfg, "db", "init")

	out := mustRun(t, cfg, "msg", "simulate", "138-0000-0000", "need", "a", "cleaner", "--id", "m-1")
	if !strings.Contains(out, "Stored message m-1 from 13800000000 (customer") {
		t.Errorf("simulate output:\n%s", out)
	}
	out = mustRun(t, cfg, "msg", "simulate", "13800000000", "need a cleaner", "--id", "m-1")
	if !strings.Contains(out, "already stored") {
		t.Errorf("duplicate simulate output:\n%s", out)
	}

	out = mustRun(t, cfg, "msg", "send", "13800000000", "on", "our", "way")
	if !strings.Contains(out, "gateway: sent sim-") {
		t.Errorf("send output:\n%s", out)
	}

	out = mustRun(t, cfg, "msg", "list", "13800000000")
	if !strings.Contains(out, "< need a cleaner") || !strings.Contains(out, "> on our way") {
		t.Errorf("msg list output:\n%s", out)
	}

	out = mustRun(t, cfg, "session", "list", "--unread")
	if !strings.Contains(out, "13800000000") || !strings.Contains(out, "Total unread: 1") {
		t.Errorf("session list output:\n%s", out)
	}
	mustRun(t, cfg, "session", "read", "13800000000")
	out = mustRun(t, cfg, "session", "list", "--unread")
	if !strings.Contains(out, "No sessions found.") {
		t.Errorf("session list after read:\n%s", out)
	}

	out = mustRun(t, cfg, "contact", "list", "--kind", "customer")
	if !strings.Contains(out, "13800000000") {
		t.Errorf("contact list output:\n%s", out)
	}
	if _, err := run(t, cfg, "contact", "reclassify", "13800000000", "employee"); err == nil {
		t.Error("reclassifying an unrostered phone as employee should fail")
	}

	out = mustRun(t, cfg, "draft", "13800000000")
	if !strings.Contains(out, "canned reply") {
		t.Errorf("draft with assistant off should fall back:\n%s", out)
	}
}

func TestJobLifecycle(t *testing.T) {
	cfg := writeConfig(t)
	mustRun(t, cfg, "db", "init")

	a := createJob(t, cfg, "Deep clean", "2025-12-31 09:00", "2025-12-31 11:00")
	b := createJob(t, cfg, "Windows", "2025-12-31 10:00", "2025-12-31 12:00")

	out := mustRun(t, cfg, "job", "hold", a, "E1")
	if !strings.Contains(out, "held for E1") || !strings.Contains(out, "returns to open") {
		t.Errorf("hold output:\n%s", out)
	}

	out, err := run(t, cfg, "job", "hold", b, "E1")
	if err == nil {
		t.Fatal("overlapping hold should fail")
	}
	if !strings.Contains(out, "overlapping jobs") || !strings.Contains(out, a) {
		t.Errorf("conflict output should list %s:\n%s", a, out)
	}

	mustRun(t, cfg, "job", "confirm", a)
	if _, err := run(t, cfg, "job", "confirm", a); err == nil {
		t.Error("confirming twice should fail")
	}
	out = mustRun(t, cfg, "job", "complete", a)
	if !strings.Contains(out, "is now done") {
		t.Errorf("complete output:\n%s", out)
	}
	mustRun(t, cfg, "job", "cancel", b)

	out = mustRun(t, cfg, "job", "show", a)
	for _, want := range []string{"State:       done", "Employee:    E1", "History:", "new -> open", "confirmed -> done"} {
		if !strings.Contains(out, want) {
			t.Errorf("job show missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, cfg, "job", "list", "--state", "cancelled")
	if !strings.Contains(out, b) || strings.Contains(out, a) {
		t.Errorf("job list --state cancelled:\n%s", out)
	}

	out = mustRun(t, cfg, "job", "expire")
	if !strings.Contains(out, "No expired holds.") {
		t.Errorf("expire output:\n%s", out)
	}

	if _, err := run(t, cfg, "job", "create", "--title", "Backwards", "--start", "2025-12-31 12:00", "--end", "2025-12-31 11:00"); err == nil {
		t.Error("inverted window should fail")
	}
}

func TestJobDraft(t *testing.T) {
	cfg := writeConfig(t)
	mustRun(t, cfg, "db", "init")
	mustRun(t, cfg, "msg", "simulate", "13800000000", "Fix the kitchen sink, address: 12 Oak Street")

	out := mustRun(t, cfg, "job", "draft", "13800000000", "--start", "2025-12-31 09:00", "--end", "2025-12-31 10:00")
	if !jobIDRe.MatchString(out) || !strings.Contains(out, "12 Oak Street") {
		t.Errorf("job draft output:\n%s", out)
	}
}

func TestLeaveFlow(t *testing.T) {
	cfg := writeConfig(t)
	mustRun(t, cfg, "db", "init")

	job := createJob(t, cfg, "Deep clean", "2025-12-31 14:00", "2025-12-31 16:00")
	mustRun(t, cfg, "job", "hold", job, "E1")

	out := mustRun(t, cfg, "msg", "simulate", "13900000001", "请假 2025-12-31 10:00-18:00 原因：看病")
	for _, want := range []string{"(employee", "Leave request #1 opened for E1", "Conflicting jobs:", job} {
		if !strings.Contains(out, want) {
			t.Errorf("leave simulate missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, cfg, "leave", "list", "--status", "pending")
	if !strings.Contains(out, "E1") || !strings.Contains(out, "pending") {
		t.Errorf("leave list:\n%s", out)
	}

	if _, err := run(t, cfg, "leave", "resolve", "1", "shrug"); err == nil {
		t.Error("unknown resolution should fail")
	}
	out = mustRun(t, cfg, "leave", "resolve", "1", "reschedule")
	if !strings.Contains(out, "acknowledged (reschedule)") || !strings.Contains(out, job+"  open") {
		t.Errorf("leave resolve:\n%s", out)
	}
}

func TestKnowledgeCommands(t *testing.T) {
	cfg := writeConfig(t)
	mustRun(t, cfg, "db", "init")

	out := mustRun(t, cfg, "kb", "add", "--title", "Pricing", "--content", "Cleaning costs 50 per hour", "--tags", "price")
	id := regexp.MustCompile(`entry (\d+)`).FindStringSubmatch(out)
	if id == nil {
		t.Fatalf("kb add output:\n%s", out)
	}

	out = mustRun(t, cfg, "kb", "add", "--id", id[1], "--title", "Pricing", "--content", "Cleaning costs 60 per hour")
	if !strings.Contains(out, "version 2") {
		t.Errorf("kb update output:\n%s", out)
	}

	out = mustRun(t, cfg, "kb", "search", "how much does cleaning cost")
	if !strings.Contains(out, "Pricing") {
		t.Errorf("kb search output:\n%s", out)
	}

	out = mustRun(t, cfg, "kb", "list", "Pricing")
	if !strings.Contains(out, "60 per hour") {
		t.Errorf("kb list output:\n%s", out)
	}

	mustRun(t, cfg, "kb", "rm", id[1])
	if _, err := run(t, cfg, "kb", "rm", id[1]); err == nil {
		t.Error("removing a missing entry should fail")
	}
}
