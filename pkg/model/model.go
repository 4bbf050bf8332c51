// Package model adapts vendor streaming APIs into the delta shape the
// reconstructor consumes. Adapters implement orchestrator.ModelStream.
package model

import (
	"context"

	"github.com/cenkalti/backoff/v5"
)

// ToolSpec declares a tool to the upstream model so it can emit calls.
// Parameters is a JSON-schema-shaped map.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

const maxStreamAttempts = 3

// retryStream retries transient stream setup failures. Once any delta has
// been forwarded the attempt is never retried: replaying a partially
// consumed stream would duplicate tokens.
func retryStream(ctx context.Context, attempt func(ctx context.Context, emitted *bool) error) error {
	emitted := false
	op := func() (struct{}, error) {
		err := attempt(ctx, &emitted)
		if err == nil {
			return struct{}{}, nil
		}
		if emitted || ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxStreamAttempts))
	return err
}
