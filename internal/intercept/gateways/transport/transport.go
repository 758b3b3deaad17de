// Package transport feeds interception requests from an embedding engine to
// the decision pipeline and writes the decisions back.
package transport

import (
	"context"

	"github.com/haukened/rr-intercept/internal/intercept/services/interceptor"
)

// ServerTransport feeds requests to a RequestEvaluator until its input ends or ctx is cancelled.
type ServerTransport interface {
	Serve(ctx context.Context, handler interceptor.RequestEvaluator) error
	Stats() Stats
}

// Stats counts handled lines.
type Stats struct {
	Served uint64 // lines answered with a decision
	Failed uint64 // lines answered with an error
}
