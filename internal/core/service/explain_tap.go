package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/guillermoBallester/sqlpeek/internal/core/domain"
	"github.com/guillermoBallester/sqlpeek/internal/core/port"
	"github.com/guillermoBallester/sqlpeek/internal/notify"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ExplainOptions tunes an ExplainTap.
type ExplainOptions struct {
	// Analyze runs EXPLAIN ANALYZE instead of EXPLAIN.
	Analyze bool
	// Noise lists statements that are never explained. Nil means domain.ExplainNoise().
	Noise *domain.NoiseSet
	// Scoped restricts the tap to statements run under the ctx handed to work.
	Scoped bool
}

// ExplainTap prints the execution plan of every statement run inside WithExplain.
type ExplainTap struct {
	bus    port.EventBus
	opts   ExplainOptions
	logger *slog.Logger
	tracer trace.Tracer
	inst   port.Instrumentation

	mu  sync.Mutex // serializes writes to out
	out io.Writer
}

func NewExplainTap(bus port.EventBus, out io.Writer, opts ExplainOptions, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *ExplainTap {
	if opts.Noise == nil {
		opts.Noise = domain.ExplainNoise()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &ExplainTap{
		bus:    bus,
		opts:   opts,
		logger: logger,
		tracer: tracer,
		inst:   inst,
		out:    out,
	}
}

// WithExplain subscribes to query events, runs work, and unsubscribes on every
// exit path. Diagnostic failures are printed and never reach the caller; the
// returned error is work's own.
func (t *ExplainTap) WithExplain(ctx context.Context, work func(context.Context) error) error {
	filter := t.accepts
	if t.opts.Scoped {
		var scope string
		ctx, scope = notify.WithScope(ctx)
		filter = func(ev port.QueryEvent) bool {
			return ev.Scope == scope && t.accepts(ev)
		}
	}

	sub := t.bus.Subscribe(port.EventSQLQuery, filter, t.explain)
	defer t.bus.Unsubscribe(sub)

	return work(ctx)
}

func (t *ExplainTap) accepts(ev port.QueryEvent) bool {
	return !t.opts.Noise.Match(ev.SQL)
}

func (t *ExplainTap) explain(ctx context.Context, ev port.QueryEvent) {
	stmt := domain.ExplainStatement(ev.SQL, t.opts.Analyze)

	ctx, span := t.tracer.Start(ctx, "ExplainTap.explain",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.statement", stmt),
		),
	)
	defer span.End()

	start := time.Now()
	rows, err := t.run(ctx, stmt, ev)
	t.inst.RecordExplainDuration(ctx, float64(time.Since(start).Microseconds())/1000)

	if err != nil {
		t.logger.WarnContext(ctx, "explain failed",
			slog.String("db.statement", ev.SQL),
			slog.String("error.type", "explain_error"),
			slog.String("error.message", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.inst.IncrementExplainErrors(ctx)
		t.printf("Error running EXPLAIN: %v\n", err)
		return
	}

	t.printf("\nEXPLAIN Output:\n%s\n", domain.FormatExplainRows(rows))
}

func (t *ExplainTap) run(ctx context.Context, stmt string, ev port.QueryEvent) ([][]string, error) {
	if ev.Conn == nil {
		return nil, domain.ErrNoConnection
	}
	return ev.Conn.QueryRows(ctx, stmt, ev.Args...)
}

func (t *ExplainTap) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}
