package port

import (
	"context"
	"time"
)

// EventSQLQuery is the name of the event published once per executed statement.
const EventSQLQuery = "sql.query"

// RowQuerier runs a statement on a specific connection and returns its rows
// rendered as text.
type RowQuerier interface {
	QueryRows(ctx context.Context, sql string, args ...any) ([][]string, error)
}

// QueryEvent describes one executed statement. It is handed to subscribers
// and then discarded.
type QueryEvent struct {
	Name       string
	SQL        string
	Args       []any
	StartedAt  time.Time
	Duration   time.Duration
	CommandTag string
	Err        error

	// Scope is the token of the scoped block the statement ran under, if any.
	Scope string

	// Conn runs follow-up statements on the connection that executed SQL.
	Conn RowQuerier
}

// QueryFilter decides whether a subscriber receives an event.
type QueryFilter func(QueryEvent) bool

// QueryHandler consumes an event. It runs inline on the goroutine that
// executed the statement.
type QueryHandler func(ctx context.Context, ev QueryEvent)

// Subscription is the handle returned by EventBus.Subscribe.
type Subscription struct {
	ID    string
	Event string
}

// EventBus registers and removes listeners for named events.
type EventBus interface {
	Subscribe(event string, filter QueryFilter, handler QueryHandler) *Subscription
	// Unsubscribe removes sub. Nil or unknown handles are ignored.
	Unsubscribe(sub *Subscription)
}

// EventPublisher delivers events to the current subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, ev QueryEvent)
}
