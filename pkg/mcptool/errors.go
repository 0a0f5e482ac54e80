package mcptool

import "fmt"

// ErrorClass categorizes a tool invocation failure.
type ErrorClass string

const (
	// ClassTransient covers timeouts and connection/network failures.
	// Worth retrying.
	ClassTransient ErrorClass = "transient"

	// ClassValidation covers parameter and input failures. Retrying
	// cannot help; these get exactly one attempt.
	ClassValidation ErrorClass = "validation"

	// ClassUnknown is everything else. Treated as transient so flaky
	// browser-side failures still get their retry budget.
	ClassUnknown ErrorClass = "unknown"
)

// InvocationError is the terminal error for a failed invocation. It
// records how many attempts were made before giving up.
type InvocationError struct {
	Server   string
	Tool     string
	Attempts int
	LastErr  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %s/%s failed after %d attempt(s): %v",
		e.Server, e.Tool, e.Attempts, e.LastErr)
}

func (e *InvocationError) Unwrap() error {
	return e.LastErr
}

// ValidationError marks an error as non-retryable at its source, for
// callers that know the failure is an input problem before any transport
// heuristic runs.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// ToolErrorClass implements the classifier hook.
func (e *ValidationError) ToolErrorClass() ErrorClass {
	return ClassValidation
}

// TransientError marks an error as retryable at its source.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ToolErrorClass implements the classifier hook.
func (e *TransientError) ToolErrorClass() ErrorClass {
	return ClassTransient
}
