package mcptool

import (
	"context"
	"errors"
	"strings"
)

// classifier lets error values declare their own class, bypassing the
// message heuristics below.
type classifier interface {
	ToolErrorClass() ErrorClass
}

// Classify determines the error class of an invocation failure.
//
// Typed errors (ValidationError, TransientError, context deadline) are
// honoured first. Everything else falls back to message matching: the MCP
// boundary flattens remote failures into strings, so transport-level
// classification is necessarily heuristic.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	var c classifier
	if errors.As(err, &c) {
		return c.ToolErrorClass()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	case isNetworkError(msg):
		return ClassTransient
	case isValidationError(msg):
		return ClassValidation
	default:
		return ClassUnknown
	}
}

func isNetworkError(msg string) bool {
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network") ||
		strings.Contains(msg, "eof")
}

func isValidationError(msg string) bool {
	return strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "validation") ||
		strings.Contains(msg, "required") ||
		strings.Contains(msg, "missing") ||
		strings.Contains(msg, "malformed") ||
		strings.Contains(msg, "unknown tool") ||
		strings.Contains(msg, "no such tool") ||
		strings.Contains(msg, "bad parameter")
}
