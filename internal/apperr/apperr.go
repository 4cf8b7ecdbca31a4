// Package apperr defines the failure taxonomy shared by the front-desk core.
//
// Every error returned from a core operation either wraps one of the
// sentinels below or is a programming error. Callers classify with
// errors.Is or KindOf.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel failures.
var (
	ErrInvalidWindow     = errors.New("invalid window")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotFound          = errors.New("not found")
	ErrBusy              = errors.New("busy")
	ErrStorage           = errors.New("storage failure")
)

// Kind names a failure class for transport layers.
type Kind string

// Failure kinds, one per sentinel.
const (
	KindNone              Kind = ""
	KindInvalidWindow     Kind = "invalid_window"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotFound          Kind = "not_found"
	KindBusy              Kind = "busy"
	KindStorage           Kind = "storage_failure"
	KindUnknown           Kind = "unknown"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrConflict, KindConflict},
	{ErrInvalidWindow, KindInvalidWindow},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrNotFound, KindNotFound},
	{ErrBusy, KindBusy},
	{ErrStorage, KindStorage},
}

// KindOf classifies err. A nil error is KindNone; an error wrapping none of
// the sentinels is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// ConflictError reports the jobs whose windows collide with a requested hold.
type ConflictError struct {
	EmployeeID string
	JobIDs     []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: employee %s already has overlapping jobs %s",
		e.EmployeeID, strings.Join(e.JobIDs, ", "))
}

// Is lets errors.Is(err, ErrConflict) match a *ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConflictJobIDs extracts the overlapping job IDs from a conflict failure.
func ConflictJobIDs(err error) []string {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.JobIDs
	}
	return nil
}

// Storage wraps a persistence error as a StorageFailure. A nil err stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Retryable reports whether err is worth retrying without operator input.
func Retryable(err error) bool {
	return errors.Is(err, ErrBusy)
}
