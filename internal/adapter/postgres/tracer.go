package postgres

import (
	"context"
	"time"

	"github.com/guillermoBallester/sqlpeek/internal/core/port"
	"github.com/guillermoBallester/sqlpeek/internal/notify"
	"github.com/jackc/pgx/v5"
)

type traceStartKey struct{}

type traceStart struct {
	sql  string
	args []any
	at   time.Time
}

// QueryTracer turns pgx statement traces into port.QueryEvent notifications.
// Install it with NewPool.
type QueryTracer struct {
	publisher port.EventPublisher
	inst      port.Instrumentation
}

var _ pgx.QueryTracer = (*QueryTracer)(nil)

func NewQueryTracer(publisher port.EventPublisher, inst port.Instrumentation) *QueryTracer {
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &QueryTracer{publisher: publisher, inst: inst}
}

func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceStartKey{}, traceStart{
		sql:  data.SQL,
		args: data.Args,
		at:   time.Now(),
	})
}

// TraceQueryEnd publishes the finished statement. The connection is idle
// again at this point, so listeners may run statements on ev.Conn.
func (t *QueryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(traceStartKey{}).(traceStart)
	if !ok {
		return
	}

	ev := port.QueryEvent{
		Name:       port.EventSQLQuery,
		SQL:        start.sql,
		Args:       start.args,
		StartedAt:  start.at,
		Duration:   time.Since(start.at),
		CommandTag: data.CommandTag.String(),
		Err:        data.Err,
		Scope:      notify.ScopeFromContext(ctx),
	}
	if conn != nil {
		ev.Conn = NewConnQuerier(conn)
	}

	t.inst.IncrementQueryEvents(ctx)
	t.publisher.Publish(ctx, ev)
}
