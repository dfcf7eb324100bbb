package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/guillermoBallester/sqlpeek/internal/adapter/mcp"
	"github.com/guillermoBallester/sqlpeek/internal/adapter/noise"
	"github.com/guillermoBallester/sqlpeek/internal/adapter/postgres"
	"github.com/guillermoBallester/sqlpeek/internal/adapter/repl"
	"github.com/guillermoBallester/sqlpeek/internal/config"
	"github.com/guillermoBallester/sqlpeek/internal/core/domain"
	"github.com/guillermoBallester/sqlpeek/internal/core/port"
	"github.com/guillermoBallester/sqlpeek/internal/core/service"
	"github.com/guillermoBallester/sqlpeek/internal/notify"
	"github.com/guillermoBallester/sqlpeek/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/term"
)

// app holds everything a database-backed command shares.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *telemetry.Provider
	tracer   trace.Tracer
	inst     port.Instrumentation
	bus      *notify.Notifier
	pool     *pgxpool.Pool
	query    *service.QueryService
	rules    *noise.Rules
}

func newLogger(cfg *config.Config) *slog.Logger {
	// Logs go to stderr. stdout carries console output or the MCP transport.
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}

func newApp(ctx context.Context, cfg *config.Config, mode string) (*app, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	rt := &app{
		cfg:    cfg,
		logger: newLogger(cfg),
		tracer: telemetry.NoopTracer(),
		inst:   port.NoopInstrumentation{},
	}

	rt.logger.Info("starting sqlpeek",
		slog.String("version", version),
		slog.String("mode", mode),
		slog.String("database_url", redactDSN(cfg.DatabaseURL)),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.Bool("read_only", cfg.ReadOnly),
		slog.Int("max_rows", cfg.MaxRows),
		slog.String("query_timeout", cfg.QueryTimeout.String()),
		slog.Bool("explain_analyze", cfg.ExplainAnalyze),
	)

	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "sqlpeek", version)
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		rt.provider = provider
		rt.tracer = provider.Tracer()
		rt.inst = provider.Instruments()
		rt.logger.Info("opentelemetry enabled")
	}

	if cfg.NoiseFile != "" {
		rules, err := noise.LoadFromFile(cfg.NoiseFile)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("loading noise rules: %w", err)
		}
		rt.rules = rules
		rt.logger.Info("noise rules loaded",
			slog.String("file", cfg.NoiseFile),
			slog.Int("ignore", len(rules.Ignore)),
			slog.Int("explain_ignore", len(rules.ExplainIgnore)),
		)
	}

	rt.bus = notify.New(rt.logger)
	tracer := postgres.NewQueryTracer(rt.bus, rt.inst)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{
		MaxConns:        cfg.PoolMaxConns,
		MinConns:        cfg.PoolMinConns,
		MaxConnLifetime: cfg.PoolMaxConnLifetime,
	}, tracer)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	rt.pool = pool
	rt.logger.Info("database pool connected", slog.String("db.system", "postgresql"))

	var validator port.QueryValidator
	if cfg.ReadOnly {
		validator = domain.NewPgQueryValidator()
	}
	executor := postgres.NewExecutor(pool, cfg.MaxRows, cfg.QueryTimeout)
	rt.query = service.NewQueryService(validator, executor, rt.logger, rt.tracer)

	return rt, nil
}

func (rt *app) explainOptions() service.ExplainOptions {
	return service.ExplainOptions{
		Analyze: rt.cfg.ExplainAnalyze,
		Noise:   rt.rules.ExplainNoise(),
	}
}

// Close releases the pool and flushes telemetry.
func (rt *app) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.provider.Shutdown(ctx); err != nil {
			rt.logger.Warn("telemetry shutdown failed", slog.String("error.message", err.Error()))
		}
	}
	rt.logger.Info("shutdown complete")
}

func runConsole(ctx context.Context, cfg *config.Config, in *os.File, out *os.File) error {
	rt, err := newApp(ctx, cfg, "repl")
	if err != nil {
		return err
	}
	defer rt.Close()

	formatter := newFormatter(cfg.Color, out)
	pretty := service.NewPrettyPrinter(rt.bus, formatter, rt.rules.PrettyNoise(), out, rt.logger)
	if cfg.PrettyPrint {
		pretty.Toggle()
	}

	console := repl.NewConsole(
		rt.query,
		service.NewTimer(out, rt.logger, rt.tracer, rt.inst),
		service.NewExplainTap(rt.bus, out, rt.explainOptions(), rt.logger, rt.tracer, rt.inst),
		pretty,
		formatter,
		in,
		out,
		rt.logger,
		repl.WithPrompt(term.IsTerminal(int(in.Fd()))),
	)
	return console.Run(ctx)
}

func runMCP(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	rt, err := newApp(ctx, cfg, "mcp")
	if err != nil {
		return err
	}
	defer rt.Close()

	tools := mcp.NewTools(rt.query, rt.bus, domain.NewPlainFormatter(), rt.explainOptions(), rt.logger, rt.tracer, rt.inst)
	server := mcp.NewServer(version, tools, rt.logger, rt.tracer, rt.inst)

	rt.logger.Info("serving MCP over stdio")
	if err := mcpserver.NewStdioServer(server).Listen(ctx, in, out); err != nil {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func runFormat(cfg *config.Config, sql string, out io.Writer) error {
	if strings.TrimSpace(sql) == "" {
		return domain.ErrEmptyQuery
	}
	formatted := newFormatter(cfg.Color, out).Format(sql)
	_, err := fmt.Fprintln(out, strings.TrimPrefix(formatted, "\n"))
	return err
}

// redactDSN masks the password in a connection URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
