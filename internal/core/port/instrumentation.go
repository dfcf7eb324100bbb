package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	IncrementQueryEvents(ctx context.Context)
	RecordExplainDuration(ctx context.Context, ms float64)
	IncrementExplainErrors(ctx context.Context)
	RecordBlockDuration(ctx context.Context, ms float64)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) IncrementQueryEvents(context.Context)           {}
func (NoopInstrumentation) RecordExplainDuration(context.Context, float64) {}
func (NoopInstrumentation) IncrementExplainErrors(context.Context)         {}
func (NoopInstrumentation) RecordBlockDuration(context.Context, float64)   {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)    {}
