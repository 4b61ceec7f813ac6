// Package errs defines the error kinds of spec §7 as a single typed enum.
// Connectors map provider-specific failures onto a Kind; the scheduler
// decides fail-vs-continue at the stage boundary and wraps unhandled errors
// as FlowRunError.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind enumerates the error variants of §7.
type Kind string

const (
	Configuration      Kind = "configuration"
	TapSourceMissing   Kind = "tap_source_missing"
	UnrecoverableTap   Kind = "unrecoverable_tap"
	UnrecoverableSink  Kind = "unrecoverable_sink"
	DataModeConflict   Kind = "data_mode_conflict"
	SchemaModeConflict Kind = "schema_mode_conflict"
	Connection         Kind = "connection_exception"
	RestRequest        Kind = "rest_request_error"
	RestRateLimit      Kind = "rest_rate_limit_error"
	RestRetryable      Kind = "rest_retryable_error"
	Fetch              Kind = "fetch_error"
	ReplayableSQL       Kind = "replayable_sql_error"
	UserGenerated      Kind = "user_generated_error"
)

// Error carries a Kind alongside the usual wrapped cause, so that callers
// can classify failures with errors.As without string matching.
type Error struct {
	Kind    Kind
	Stage   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s [stage=%s]: %s", e.Kind, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithStage attaches stage context, returning a new *Error so the original
// is never mutated out from under a concurrent reader.
func (e *Error) WithStage(stage string) *Error {
	cp := *e
	cp.Stage = stage
	return &cp
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// FlowRunError wraps the boundary between a stage failure and the run as a
// whole, carrying the stage name and original cause per §7.
type FlowRunError struct {
	Stage string
	Cause error
}

func (e *FlowRunError) Error() string {
	return fmt.Sprintf("ankaflow: flow run failed at stage %q: %v", e.Stage, e.Cause)
}

func (e *FlowRunError) Unwrap() error { return e.Cause }

// NewFlowRunError wraps cause as a FlowRunError naming stage.
func NewFlowRunError(stage string, cause error) *FlowRunError {
	return &FlowRunError{Stage: stage, Cause: cause}
}

// replayableSQLMarkers are substrings of embedded-SQL-engine error messages
// that the LLM SQL generator treats as recoverable-by-replay (§4.K, §7).
var replayableSQLMarkers = []string{
	"parser error",
	"syntax error",
	"binder error",
	"catalog error",
}

// IsReplayableSQL reports whether err's message matches one of the
// replayable SQL error classes the embedded engine raises.
func IsReplayableSQL(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range replayableSQLMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
