package errors

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation error", err: ValidationError("title cannot be empty").Build(), expected: 2},
		{name: "not found error", err: NotFoundError("reminder not found").Build(), expected: 4},
		{name: "config error", err: ConfigError("bad config").Build(), expected: 7},
		{name: "persistence error", err: PersistenceError("write failed").Build(), expected: 11},
		{name: "scheduler error", err: NewError(CategoryScheduler, "job rejected").Fatal().Build(), expected: 12},
		{name: "internal error", err: InternalError("boom").Build(), expected: 10},
		{name: "wrapped validation error", err: fmt.Errorf("mood add: %w", ValidationError("unknown mood").Build()), expected: 2},
		{name: "unclassified error", err: &customError{msg: "unknown error"}, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.ExitCodeFor(tt.err)
			if got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{name: "nil error", err: nil, contains: ""},
		{name: "internal error in non-verbose mode", err: InternalError("internal issue").Build(), contains: "Internal error occurred (use -v for details)"},
		{name: "validation error shows message", err: ValidationError("unknown mood \"Grumpy\"").Build(), contains: "unknown mood"},
		{name: "validation error lists valid values", err: ValidationError("unknown recurrence pattern").WithContext("valid", "daily, weekly").Build(), contains: "Error: unknown recurrence pattern (valid: daily, weekly)"},
		{name: "unclassified error", err: &customError{msg: "unknown error"}, contains: "Error: unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.FormatError(tt.err)
			if tt.contains == "" {
				if got != "" {
					t.Errorf("FormatError() = %q, want empty string", got)
				}
				return
			}
			if !strings.Contains(got, tt.contains) {
				t.Errorf("FormatError() = %q, want to contain %q", got, tt.contains)
			}
		})
	}
}

func TestCLIErrorAdapter_VerboseShowsCause(t *testing.T) {
	adapter := NewCLIErrorAdapter(true, slog.Default())
	err := WrapError(&customError{msg: "permission denied"}, CategoryPersistence, "write mood_entries.json").Build()

	got := adapter.FormatError(err)
	if !strings.Contains(got, "permission denied") {
		t.Errorf("FormatError() = %q, want cause in verbose mode", got)
	}
}

// customError is a test helper for unclassified errors
type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}
