package breaker

import (
	"fmt"
	"time"
)

// OpenError rejects a call without attempting it. RetryAfter tells the
// caller how long to wait before the breaker will admit a probe.
type OpenError struct {
	Provider   string
	State      State
	RetryAfter time.Duration
}

// Error implements error.
func (e *OpenError) Error() string {
	return fmt.Sprintf("breaker: provider %s is %s, retry after %s",
		e.Provider, e.State, e.RetryAfter.Round(time.Millisecond))
}
