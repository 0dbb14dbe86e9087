package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConfig marks a malformed conversion table or target mapping.
	ErrConfig = errors.New("config error")
	// ErrValidationConfig marks a quality check that references a missing column.
	ErrValidationConfig = errors.New("validation config error")
	// ErrStore marks a failed load transaction. Nothing was committed.
	ErrStore = errors.New("store error")
	// ErrSchema marks a dimensional store without the expected tables or columns.
	ErrSchema = errors.New("schema error")
	// ErrQualityRejected marks a batch blocked by the fail-fast quality gate.
	ErrQualityRejected = errors.New("quality gate rejected batch")
)

// Error carries the failing operation next to one of the sentinel kinds above.
type Error struct {
	Kind  error
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	kind := "error"
	if e.Kind != nil {
		kind = e.Kind.Error()
	}
	switch {
	case e.Op != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", kind, e.Op, e.Cause)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", kind, e.Op)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", kind, e.Cause)
	default:
		return kind
	}
}

func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

func newError(kind error, op string, cause error) error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

func Config(op string, cause error) error           { return newError(ErrConfig, op, cause) }
func ValidationConfig(op string, cause error) error { return newError(ErrValidationConfig, op, cause) }
func Store(op string, cause error) error            { return newError(ErrStore, op, cause) }
func Schema(op string, cause error) error           { return newError(ErrSchema, op, cause) }

// Configf builds a config error from a format string.
func Configf(format string, args ...any) error {
	return newError(ErrConfig, "", fmt.Errorf(format, args...))
}

// ValidationConfigf builds a validation config error from a format string.
func ValidationConfigf(format string, args ...any) error {
	return newError(ErrValidationConfig, "", fmt.Errorf(format, args...))
}

// IsFatal reports whether retrying the same input can never succeed.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfig) ||
		errors.Is(err, ErrValidationConfig) ||
		errors.Is(err, ErrSchema) ||
		errors.Is(err, ErrQualityRejected)
}

// ExitCode maps an error onto the process exit status used by the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrQualityRejected):
		return 2
	case errors.Is(err, ErrConfig), errors.Is(err, ErrValidationConfig):
		return 3
	default:
		return 1
	}
}
