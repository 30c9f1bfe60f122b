package errors

import (
	"context"
	"errors"
	"fmt"
)

// Common error types used across the taskchain library

var (
	// ErrShutdown indicates that a submission was attempted after the pool
	// started shutting down
	ErrShutdown = errors.New("executor is shut down")

	// ErrInterrupted indicates that a blocking wait was abandoned because
	// its context was canceled
	ErrInterrupted = errors.New("wait interrupted")

	// ErrTimeout indicates that a bounded wait elapsed before the task completed
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled indicates that the task's future was canceled
	ErrCancelled = errors.New("task cancelled")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNilTask indicates that a nil task was supplied
	ErrNilTask = errors.New("task cannot be nil")
)

// ValidationError describes an argument that was rejected by a component.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError for the given module and field.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint to the error.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap lets errors.Is match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// ExecutionError reports that a task body returned an error or panicked.
type ExecutionError struct {
	TaskID string
	Cause  error
	// Stack is set when the failure was a recovered panic.
	Stack []byte
}

// NewExecutionError wraps cause as the failure of the task with the given ID.
func NewExecutionError(taskID string, cause error) *ExecutionError {
	return &ExecutionError{TaskID: taskID, Cause: cause}
}

// NewPanicError converts a recovered panic value into an ExecutionError.
func NewPanicError(taskID string, recovered interface{}, stack []byte) *ExecutionError {
	cause, ok := recovered.(error)
	if !ok {
		cause = fmt.Errorf("%v", recovered)
	}
	return &ExecutionError{
		TaskID: taskID,
		Cause:  fmt.Errorf("task panicked: %w", cause),
		Stack:  stack,
	}
}

func (e *ExecutionError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("execution failed: %v", e.Cause)
	}
	return fmt.Sprintf("task %s: execution failed: %v", e.TaskID, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// IsPanic reports whether the failure was a recovered panic.
func (e *ExecutionError) IsPanic() bool {
	return len(e.Stack) > 0
}

// IsRetryable reports whether running the operation again might succeed.
// Shutdown, cancellation, interruption and rejected arguments are final.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrShutdown),
		errors.Is(err, ErrCancelled),
		errors.Is(err, ErrInterrupted),
		errors.Is(err, ErrNilTask),
		errors.Is(err, ErrInvalidConfiguration),
		errors.Is(err, context.Canceled),
		IsValidationError(err):
		return false
	}
	return true
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsExecutionError reports whether err is or wraps an ExecutionError.
func IsExecutionError(err error) bool {
	var eerr *ExecutionError
	return errors.As(err, &eerr)
}
