// Package repl is the interactive console: it reads statements, runs them
// through the query service and renders results.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guillermoBallester/sqlpeek/internal/core/domain"
	"github.com/guillermoBallester/sqlpeek/internal/core/port"
	"github.com/guillermoBallester/sqlpeek/internal/core/service"
)

const (
	prompt       = "sqlpeek> "
	continuation = "     ..> "
)

// Measurer times a unit of work.
type Measurer interface {
	Measure(ctx context.Context, label string, work func(context.Context) error) (time.Duration, error)
}

// Explainer runs work with an explain listener attached.
type Explainer interface {
	WithExplain(ctx context.Context, work func(context.Context) error) error
}

// Toggler flips pretty printing.
type Toggler interface {
	Toggle() service.PrettyState
}

// Console is a line-oriented SQL console.
type Console struct {
	executor  port.QueryExecutor
	timer     Measurer
	explainer Explainer
	pretty    Toggler
	formatter *domain.Formatter
	logger    *slog.Logger

	in  io.Reader
	out io.Writer
	// interactive controls the prompt.
	interactive bool
}

// Option configures a Console.
type Option func(*Console)

// WithPrompt enables the prompt. Disable it when stdin is not a terminal.
func WithPrompt(enabled bool) Option {
	return func(c *Console) { c.interactive = enabled }
}

func NewConsole(
	executor port.QueryExecutor,
	timer Measurer,
	explainer Explainer,
	pretty Toggler,
	formatter *domain.Formatter,
	in io.Reader,
	out io.Writer,
	logger *slog.Logger,
	opts ...Option,
) *Console {
	c := &Console{
		executor:  executor,
		timer:     timer,
		explainer: explainer,
		pretty:    pretty,
		formatter: formatter,
		logger:    logger,
		in:        in,
		out:       out,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var errQuit = errors.New("quit")

// Run reads until EOF, \q or ctx cancellation. A statement may span several
// lines and ends at a line terminated by ';'. Meta-commands are single-line.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pending strings.Builder
	c.showPrompt(pending.Len() > 0)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" && pending.Len() == 0:
		case strings.HasPrefix(line, `\`) && pending.Len() == 0:
			if err := c.meta(ctx, line); errors.Is(err, errQuit) {
				return nil
			}
		default:
			if pending.Len() > 0 {
				pending.WriteByte('\n')
			}
			pending.WriteString(line)
			if strings.HasSuffix(line, ";") {
				c.runStatement(ctx, pending.String())
				pending.Reset()
			}
		}
		c.showPrompt(pending.Len() > 0)
	}

	if pending.Len() > 0 {
		c.runStatement(ctx, pending.String())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

func (c *Console) showPrompt(continued bool) {
	if !c.interactive {
		return
	}
	if continued {
		fmt.Fprint(c.out, continuation)
		return
	}
	fmt.Fprint(c.out, prompt)
}

func (c *Console) meta(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case `\q`, `\quit`:
		return errQuit
	case `\?`, `\h`, `\help`:
		fmt.Fprint(c.out, helpText)
	case `\pp`:
		c.pretty.Toggle()
	case `\format`:
		if !c.requireArg(cmd, arg) {
			return nil
		}
		fmt.Fprintln(c.out, c.formatter.Format(arg))
	case `\explain`:
		if !c.requireArg(cmd, arg) {
			return nil
		}
		err := c.explainer.WithExplain(ctx, func(ctx context.Context) error {
			return c.execute(ctx, arg)
		})
		c.reportError(ctx, err)
	case `\time`:
		if !c.requireArg(cmd, arg) {
			return nil
		}
		_, err := c.timer.Measure(ctx, "console", func(ctx context.Context) error {
			return c.execute(ctx, arg)
		})
		c.reportError(ctx, err)
	default:
		fmt.Fprintf(c.out, "Unknown command %s. Type \\? for help.\n", cmd)
	}
	return nil
}

func (c *Console) requireArg(cmd, arg string) bool {
	if arg == "" {
		fmt.Fprintf(c.out, "Usage: %s <sql>\n", cmd)
		return false
	}
	return true
}

func (c *Console) runStatement(ctx context.Context, sql string) {
	c.reportError(ctx, c.execute(ctx, sql))
}

// execute runs sql and prints its result. The returned error is printed by the
// caller so that timing and plan output come first.
func (c *Console) execute(ctx context.Context, sql string) error {
	result, err := c.executor.Execute(ctx, sql)
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, RenderResult(result))
	return nil
}

func (c *Console) reportError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	c.logger.DebugContext(ctx, "console statement failed", slog.String("error.message", err.Error()))
	fmt.Fprintf(c.out, "ERROR: %v\n", err)
}

// RenderResult renders rows as a bordered table followed by a row count. A
// statement without columns renders as its command tag.
func RenderResult(r *port.Result) string {
	if r == nil {
		return ""
	}
	if len(r.Columns) == 0 {
		if r.CommandTag == "" {
			return ""
		}
		return r.CommandTag + "\n"
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(r.Columns...).
		Rows(r.Rows...)

	var b strings.Builder
	b.WriteString(t.String())
	b.WriteByte('\n')
	switch len(r.Rows) {
	case 1:
		b.WriteString("(1 row")
	default:
		fmt.Fprintf(&b, "(%d rows", len(r.Rows))
	}
	if r.Truncated {
		b.WriteString(", truncated")
	}
	b.WriteString(")\n")
	return b.String()
}

const helpText = `Statements end with ';'. Meta-commands:
  \pp             toggle pretty printing of executed SQL
  \explain <sql>  run <sql> and print its execution plan; with EXPLAIN_ANALYZE
                  on, INSERT/UPDATE/DELETE are applied twice (set
                  EXPLAIN_ANALYZE=false or --explain-analyze=false for DML)
  \time <sql>     run <sql> and print its execution time
  \format <sql>   print <sql> formatted, without running it
  \?              show this help
  \q              quit
`
