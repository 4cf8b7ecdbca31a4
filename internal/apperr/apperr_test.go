package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"plain", errors.New("boom"), KindUnknown},
		{"not found", fmt.Errorf("dispatch: job not found: job-1: %w", ErrNotFound), KindNotFound},
		{"window", fmt.Errorf("dispatch: %w", ErrInvalidWindow), KindInvalidWindow},
		{"transition", fmt.Errorf("dispatch: %w", ErrInvalidTransition), KindInvalidTransition},
		{"busy", fmt.Errorf("dispatch: %w", ErrBusy), KindBusy},
		{"storage", Storage("dispatch: hold", errors.New("disk full")), KindStorage},
		{"conflict", &ConflictError{EmployeeID: "E1", JobIDs: []string{"job-a"}}, KindConflict},
		{"wrapped conflict", fmt.Errorf("dispatch: hold: %w", &ConflictError{EmployeeID: "E1"}), KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConflictJobIDs(t *testing.T) {
	err := fmt.Errorf("hold: %w", &ConflictError{EmployeeID: "E1", JobIDs: []string{"job-a", "job-b"}})
	ids := ConflictJobIDs(err)
	if len(ids) != 2 || ids[0] != "job-a" || ids[1] != "job-b" {
		t.Errorf("ConflictJobIDs = %v, want [job-a job-b]", ids)
	}
	if !errors.Is(err, ErrConflict) {
		t.Error("expected errors.Is(err, ErrConflict)")
	}
	if ConflictJobIDs(errors.New("other")) != nil {
		t.Error("expected nil job IDs for non-conflict error")
	}
}

func TestStorage(t *testing.T) {
	if Storage("op", nil) != nil {
		t.Fatal("Storage(nil) should be nil")
	}
	cause := errors.New("disk full")
	err := Storage("messaging: append", cause)
	if !errors.Is(err, ErrStorage) {
		t.Error("expected ErrStorage")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be preserved")
	}
	if again := Storage("outer", err); again != err {
		t.Errorf("double wrap changed error: %v", again)
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(fmt.Errorf("x: %w", ErrBusy)) {
		t.Error("busy should be retryable")
	}
	if Retryable(&ConflictError{}) {
		t.Error("conflict should not be retryable")
	}
}
