package telemetry

import (
	"context"

	"github.com/guillermoBallester/sqlpeek/internal/core/port"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/guillermoBallester/sqlpeek"

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	QueryEvents     metric.Int64Counter
	ExplainDuration metric.Float64Histogram
	ExplainErrors   metric.Int64Counter
	BlockDuration   metric.Float64Histogram
	ToolDuration    metric.Float64Histogram
}

var _ port.Instrumentation = (*Instruments)(nil)

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return newInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	queryEvents, _ := meter.Int64Counter("sqlpeek.query.events",
		metric.WithDescription("Statements observed by the query tracer"),
	)
	explainDuration, _ := meter.Float64Histogram("sqlpeek.explain.duration",
		metric.WithDescription("Diagnostic EXPLAIN duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	explainErrors, _ := meter.Int64Counter("sqlpeek.explain.errors",
		metric.WithDescription("Diagnostic EXPLAIN statements that failed"),
	)
	blockDuration, _ := meter.Float64Histogram("sqlpeek.block.duration",
		metric.WithDescription("Duration of blocks measured by the timer in milliseconds"),
		metric.WithUnit("ms"),
	)
	toolDuration, _ := meter.Float64Histogram("sqlpeek.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		QueryEvents:     queryEvents,
		ExplainDuration: explainDuration,
		ExplainErrors:   explainErrors,
		BlockDuration:   blockDuration,
		ToolDuration:    toolDuration,
	}
}

func (i *Instruments) IncrementQueryEvents(ctx context.Context) {
	i.QueryEvents.Add(ctx, 1)
}

func (i *Instruments) RecordExplainDuration(ctx context.Context, ms float64) {
	i.ExplainDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementExplainErrors(ctx context.Context) {
	i.ExplainErrors.Add(ctx, 1)
}

func (i *Instruments) RecordBlockDuration(ctx context.Context, ms float64) {
	i.BlockDuration.Record(ctx, ms)
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
