package cairn

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for common engine error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrSessionClosed indicates an operation on a session after Close.
	ErrSessionClosed = errors.New("session is closed")

	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error kinds categorize errors by their type.
const (
	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindPlanning represents errors raised while scheduling collectors.
	KindPlanning = "planning"

	// KindQuery represents errors in query compilation or evaluation.
	KindQuery = "query"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindSession represents errors in session lifecycle handling.
	KindSession = "session"

	// KindInternal represents internal engine errors.
	KindInternal = "internal"
)

// EngineError is a structured error type that wraps underlying errors with
// additional context about the operation that failed and the category of error.
//
// EngineError implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
type EngineError struct {
	// Op is the operation that failed (e.g., "Session.Collect").
	Op string

	// Kind categorizes the error (e.g., KindPlanning, KindValidation).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	Context map[string]any
}

// Error implements the error interface, returning a formatted error message
// that includes the operation, kind, and underlying error.
func (e *EngineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cairn: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("cairn: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("cairn: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and errors.As()
// to work correctly with wrapped errors.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error matching for EngineError, allowing comparison based on
// the underlying error or the EngineError itself.
func (e *EngineError) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*EngineError); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}
	return errors.Is(e.Err, target)
}

// WithContext returns a new EngineError with the provided context added.
func (e *EngineError) WithContext(ctx map[string]any) *EngineError {
	newErr := *e
	if newErr.Context == nil {
		newErr.Context = make(map[string]any)
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// NewValidationError creates a new EngineError with KindValidation.
func NewValidationError(op string, err error) *EngineError {
	return &EngineError{Op: op, Kind: KindValidation, Err: err}
}

// NewPlanningError creates a new EngineError with KindPlanning.
func NewPlanningError(op string, err error) *EngineError {
	return &EngineError{Op: op, Kind: KindPlanning, Err: err}
}

// NewQueryError creates a new EngineError with KindQuery.
func NewQueryError(op string, err error) *EngineError {
	return &EngineError{Op: op, Kind: KindQuery, Err: err}
}

// NewConfigurationError creates a new EngineError with KindConfiguration.
func NewConfigurationError(op string, err error) *EngineError {
	return &EngineError{Op: op, Kind: KindConfiguration, Err: err}
}

// NewSessionError creates a new EngineError with KindSession.
func NewSessionError(op string, err error) *EngineError {
	return &EngineError{Op: op, Kind: KindSession, Err: err}
}

// NewInternalError creates a new EngineError with KindInternal.
func NewInternalError(op string, err error) *EngineError {
	return &EngineError{Op: op, Kind: KindInternal, Err: err}
}

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. This is intended for use in defer statements to ensure
// cleanup errors are not silently ignored.
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
