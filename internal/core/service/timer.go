package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/guillermoBallester/sqlpeek/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Timer measures the wall-clock time of a unit of work.
type Timer struct {
	out    io.Writer
	logger *slog.Logger
	tracer trace.Tracer
	inst   port.Instrumentation
	now    func() time.Time
}

func NewTimer(out io.Writer, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *Timer {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &Timer{
		out:    out,
		logger: logger,
		tracer: tracer,
		inst:   inst,
		now:    time.Now,
	}
}

// Measure runs work once on the calling goroutine and writes the elapsed time.
// The error from work is returned as is; a panic in work propagates without a report.
func (t *Timer) Measure(ctx context.Context, label string, work func(context.Context) error) (time.Duration, error) {
	ctx, span := t.tracer.Start(ctx, "Timer.Measure",
		trace.WithAttributes(attribute.String("sqlpeek.block", label)),
	)
	defer span.End()

	start := t.now()
	err := work(ctx)
	elapsed := max(t.now().Sub(start), 0)

	fmt.Fprintf(t.out, "Execution time: %.6f seconds\n", elapsed.Seconds())

	t.inst.RecordBlockDuration(ctx, float64(elapsed.Microseconds())/1000)
	t.logger.DebugContext(ctx, "block measured",
		slog.String("block", label),
		slog.Duration("duration", elapsed),
		slog.Bool("error", err != nil),
	)
	span.SetAttributes(attribute.Float64("sqlpeek.block.seconds", elapsed.Seconds()))

	return elapsed, err
}
