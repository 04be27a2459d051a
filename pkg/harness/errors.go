package harness

import (
	"fmt"
	"time"
)

// ReadyTimeoutError means the Discord session never reported ready.
type ReadyTimeoutError struct {
	Timeout time.Duration
}

func (e *ReadyTimeoutError) Error() string {
	return fmt.Sprintf("scraper not ready after %s", e.Timeout)
}

// MessageTimeoutError means the shim produced fewer messages than expected
// within the wait budget. It is never an assertion failure.
type MessageTimeoutError struct {
	Expected int
	Observed int
	Timeout  time.Duration
}

func (e *MessageTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %d messages, observed %d",
		e.Timeout, e.Expected, e.Observed)
}

// AssertionError means messages arrived but had the wrong shape.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return "assertion failed: " + e.Message
}

func assertf(format string, args ...interface{}) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}
