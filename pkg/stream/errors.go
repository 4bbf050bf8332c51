package stream

import "fmt"

// StreamError reports a stream that failed mid-flight. Partial carries the
// text received before the failure so callers can persist a partial
// assistant turn instead of discarding it.
type StreamError struct {
	Partial     string
	Interrupted bool
	Err         error
}

// Error implements error.
func (e *StreamError) Error() string {
	if e.Interrupted {
		return fmt.Sprintf("stream: interrupted after %d bytes: %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream: failed after %d bytes: %v", len(e.Partial), e.Err)
}

// Unwrap exposes the underlying cause.
func (e *StreamError) Unwrap() error { return e.Err }
