package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/guillermoBallester/sqlpeek/internal/core/domain"
	"github.com/guillermoBallester/sqlpeek/internal/core/port"
)

// PrettyState is the pretty printer's on/off state.
type PrettyState int

const (
	PrettyOff PrettyState = iota
	PrettyOn
)

func (s PrettyState) String() string {
	if s == PrettyOn {
		return "ON"
	}
	return "OFF"
}

// PrettyPrinter echoes every executed statement, formatted, while switched on.
// Create one per process.
type PrettyPrinter struct {
	bus       port.EventBus
	formatter *domain.Formatter
	noise     *domain.NoiseSet
	logger    *slog.Logger

	mu    sync.Mutex
	out   io.Writer
	state PrettyState
	sub   *port.Subscription
}

// NewPrettyPrinter returns a printer in the OFF state. A nil noise set means
// domain.IntrospectionNoise().
func NewPrettyPrinter(bus port.EventBus, formatter *domain.Formatter, noise *domain.NoiseSet, out io.Writer, logger *slog.Logger) *PrettyPrinter {
	if noise == nil {
		noise = domain.IntrospectionNoise()
	}
	return &PrettyPrinter{
		bus:       bus,
		formatter: formatter,
		noise:     noise,
		logger:    logger,
		out:       out,
	}
}

// Toggle flips the printer between OFF and ON and returns the new state.
func (p *PrettyPrinter) Toggle() PrettyState {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == PrettyOn {
		p.bus.Unsubscribe(p.sub)
		p.sub = nil
		p.state = PrettyOff
	} else {
		p.sub = p.bus.Subscribe(port.EventSQLQuery, p.accepts, p.print)
		p.state = PrettyOn
	}

	fmt.Fprintf(p.out, "Pretty print SQL is now %s.\n", p.state)
	p.logger.Debug("pretty print toggled", slog.String("state", p.state.String()))
	return p.state
}

// State returns the current state.
func (p *PrettyPrinter) State() PrettyState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *PrettyPrinter) accepts(ev port.QueryEvent) bool {
	return !p.noise.Match(ev.SQL)
}

func (p *PrettyPrinter) print(_ context.Context, ev port.QueryEvent) {
	formatted := p.formatter.Format(ev.SQL)

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, formatted)
}
