// Package notify is an in-process publish/subscribe registry for query events.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/guillermoBallester/sqlpeek/internal/core/port"
)

type listener struct {
	sub     *port.Subscription
	filter  port.QueryFilter
	handler port.QueryHandler
}

// Notifier fans events out to listeners in subscription order.
// Listeners run synchronously inside Publish.
type Notifier struct {
	mu        sync.RWMutex
	listeners []*listener
	logger    *slog.Logger
}

func New(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{logger: logger}
}

// Subscribe registers handler for events named event. A nil filter accepts
// every event.
func (n *Notifier) Subscribe(event string, filter port.QueryFilter, handler port.QueryHandler) *port.Subscription {
	sub := &port.Subscription{ID: uuid.NewString(), Event: event}

	n.mu.Lock()
	n.listeners = append(n.listeners, &listener{sub: sub, filter: filter, handler: handler})
	n.mu.Unlock()

	return sub
}

// Unsubscribe removes sub. Nil, unknown and already-removed handles are ignored.
func (n *Notifier) Unsubscribe(sub *port.Subscription) {
	if sub == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for i, l := range n.listeners {
		if l.sub.ID == sub.ID {
			n.listeners = append(n.listeners[:i:i], n.listeners[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every listener of ev.Name whose filter accepts it.
// A panicking handler is logged and does not stop delivery.
func (n *Notifier) Publish(ctx context.Context, ev port.QueryEvent) {
	n.mu.RLock()
	targets := make([]*listener, 0, len(n.listeners))
	for _, l := range n.listeners {
		if l.sub.Event == ev.Name {
			targets = append(targets, l)
		}
	}
	n.mu.RUnlock()

	for _, l := range targets {
		if l.filter != nil && !l.filter(ev) {
			continue
		}
		n.dispatch(ctx, l, ev)
	}
}

func (n *Notifier) dispatch(ctx context.Context, l *listener, ev port.QueryEvent) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.ErrorContext(ctx, "query listener panicked",
				slog.String("subscription", l.sub.ID),
				slog.String("db.statement", ev.SQL),
				slog.String("error.message", fmt.Sprint(r)),
			)
		}
	}()
	l.handler(ctx, ev)
}

// Len returns the number of registered listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

type scopeKey struct{}

// WithScope returns a context carrying a fresh scope token, and the token.
// Statements run under the returned context publish events with that Scope.
func WithScope(ctx context.Context) (context.Context, string) {
	scope := uuid.NewString()
	return context.WithValue(ctx, scopeKey{}, scope), scope
}

// ScopeFromContext returns the scope token stored in ctx, or "".
func ScopeFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(scopeKey{}).(string); ok {
		return v
	}
	return ""
}
