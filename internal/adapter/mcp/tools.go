package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guillermoBallester/sqlpeek/internal/core/domain"
	"github.com/guillermoBallester/sqlpeek/internal/core/port"
	"github.com/guillermoBallester/sqlpeek/internal/core/service"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// Server metadata
const serverName = "sqlpeek"

// Tool descriptions
const (
	descFormatSQL = "Format a SQL statement for reading: the statement is normalized by the PostgreSQL parser " +
		"and every clause keyword (SELECT, FROM, WHERE, ORDER BY, GROUP BY, LIMIT, INSERT INTO, VALUES) " +
		"starts a new line. The statement is not executed."

	descExplainQuery = "Execute a SQL statement and capture the PostgreSQL execution plan of every statement it runs. " +
		"Returns the plan text followed by the statement's row count. " +
		"With analyze (the server default unless overridden) the plan includes actual timings; " +
		"the statement is executed either way."

	descMeasureQuery = "Execute a SQL statement and report its wall-clock execution time in seconds " +
		"followed by the statement's row count."

	descSQLParam     = "SQL statement"
	descAnalyzeParam = "Run EXPLAIN ANALYZE instead of EXPLAIN. Defaults to the server setting."
)

// Tools holds what the tool handlers need. Each explain_query and
// measure_query call gets its own scoped tap and timer writing to a buffer.
type Tools struct {
	query     port.QueryExecutor
	bus       port.EventBus
	formatter *domain.Formatter
	explain   service.ExplainOptions
	logger    *slog.Logger
	tracer    trace.Tracer
	inst      port.Instrumentation
}

func NewTools(query port.QueryExecutor, bus port.EventBus, formatter *domain.Formatter, explain service.ExplainOptions, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *Tools {
	if formatter == nil {
		formatter = domain.NewPlainFormatter()
	}
	explain.Scoped = true
	return &Tools{
		query:     query,
		bus:       bus,
		formatter: formatter,
		explain:   explain,
		logger:    logger,
		tracer:    tracer,
		inst:      inst,
	}
}

func RegisterTools(s *server.MCPServer, tools *Tools) {
	s.AddTool(
		mcp.NewTool("format_sql",
			mcp.WithDescription(descFormatSQL),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descSQLParam),
			),
		),
		tools.formatSQLHandler(),
	)

	s.AddTool(
		mcp.NewTool("explain_query",
			mcp.WithDescription(descExplainQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descSQLParam),
			),
			mcp.WithBoolean("analyze",
				mcp.Description(descAnalyzeParam),
			),
		),
		tools.explainQueryHandler(),
	)

	s.AddTool(
		mcp.NewTool("measure_query",
			mcp.WithDescription(descMeasureQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descSQLParam),
			),
		),
		tools.measureQueryHandler(),
	)
}

func (t *Tools) formatSQLHandler() server.ToolHandlerFunc {
	return func(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || strings.TrimSpace(sql) == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}
		return mcp.NewToolResultText(strings.TrimPrefix(t.formatter.Format(sql), "\n")), nil
	}
}

func (t *Tools) explainQueryHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || strings.TrimSpace(sql) == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		opts := t.explain
		if analyze, ok := request.GetArguments()["analyze"].(bool); ok {
			opts.Analyze = analyze
		}

		var buf bytes.Buffer
		tap := service.NewExplainTap(t.bus, &buf, opts, t.logger, t.tracer, t.inst)

		var result *port.Result
		err := tap.WithExplain(ctx, func(ctx context.Context) error {
			var err error
			result, err = t.query.Execute(ctx, sql)
			return err
		})
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(t.logger, err, "explain query")), nil
		}

		plan := strings.TrimSpace(buf.String())
		if plan == "" {
			plan = "No plan captured: the statement is filtered as noise."
		}
		return mcp.NewToolResultText(plan + "\n" + rowCount(result)), nil
	}
}

func (t *Tools) measureQueryHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || strings.TrimSpace(sql) == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		var buf bytes.Buffer
		timer := service.NewTimer(&buf, t.logger, t.tracer, t.inst)

		var result *port.Result
		_, err := timer.Measure(ctx, "measure_query", func(ctx context.Context) error {
			var err error
			result, err = t.query.Execute(ctx, sql)
			return err
		})
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(t.logger, err, "measure query")), nil
		}

		return mcp.NewToolResultText(strings.TrimSpace(buf.String()) + "\n" + rowCount(result)), nil
	}
}

func rowCount(r *port.Result) string {
	if r == nil {
		return "(0 rows)"
	}
	n := len(r.Rows)
	suffix := ""
	if r.Truncated {
		suffix = ", truncated"
	}
	if n == 1 {
		return "(1 row" + suffix + ")"
	}
	return fmt.Sprintf("(%d rows%s)", n, suffix)
}

// sanitizeError turns err into a message safe to hand to a client. Validation
// errors and timeouts pass through; anything else is logged and replaced.
func sanitizeError(logger *slog.Logger, err error, action string) string {
	for _, known := range []error{domain.ErrEmptyQuery, domain.ErrNotAllowed, domain.ErrMultiStatement, domain.ErrParseFailed} {
		if errors.Is(err, known) {
			return err.Error()
		}
	}

	var pgErr *pgconn.PgError
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &pgErr) && pgErr.Code == "57014") {
		return "query timed out"
	}
	if errors.As(err, &pgErr) {
		return fmt.Sprintf("%s failed: %s (SQLSTATE %s)", action, pgErr.Message, pgErr.Code)
	}

	logger.Error("tool call failed",
		slog.String("action", action),
		slog.String("error.message", err.Error()),
	)
	return fmt.Sprintf("%s failed: internal error, check server logs", action)
}
