package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/guillermoBallester/sqlpeek/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	// After the first signal the default handlers are restored, so a second
	// interrupt terminates a console blocked on input.
	go func() {
		<-ctx.Done()
		stop()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// rootFlags mirrors the environment variables read by config.Load.
type rootFlags struct {
	databaseURL         string
	logLevel            string
	readOnly            bool
	maxRows             int
	queryTimeout        time.Duration
	explainAnalyze      bool
	prettyPrint         bool
	noiseFile           string
	color               string
	otel                bool
	poolMaxConns        int32
	poolMinConns        int32
	poolMaxConnLifetime time.Duration
}

func (f *rootFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.databaseURL, "database-url", "", "PostgreSQL connection URL (env DATABASE_URL)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")
	fs.BoolVar(&f.readOnly, "read-only", false, "only allow SELECT and EXPLAIN statements (env READ_ONLY)")
	fs.IntVar(&f.maxRows, "max-rows", 0, "maximum rows returned per statement (env MAX_ROWS)")
	fs.DurationVar(&f.queryTimeout, "query-timeout", 0, "per-statement timeout (env QUERY_TIMEOUT)")
	fs.BoolVar(&f.explainAnalyze, "explain-analyze", true, "use EXPLAIN ANALYZE for plans (env EXPLAIN_ANALYZE)")
	fs.BoolVar(&f.prettyPrint, "pretty", false, "start with pretty printing ON (env PRETTY_PRINT)")
	fs.StringVar(&f.noiseFile, "noise-file", "", "YAML file with extra statements to ignore (env NOISE_FILE)")
	fs.StringVar(&f.color, "color", "", "keyword emphasis: auto, always, never (env COLOR)")
	fs.BoolVar(&f.otel, "otel", false, "export OpenTelemetry traces and metrics (env OTEL_ENABLED)")
	fs.Int32Var(&f.poolMaxConns, "pool-max-conns", 0, "maximum pool connections (env POOL_MAX_CONNS)")
	fs.Int32Var(&f.poolMinConns, "pool-min-conns", 0, "minimum pool connections (env POOL_MIN_CONNS)")
	fs.DurationVar(&f.poolMaxConnLifetime, "pool-max-conn-lifetime", 0, "maximum connection lifetime (env POOL_MAX_CONN_LIFETIME)")
}

// overrides returns the flags the user actually set.
func (f *rootFlags) overrides(fs *pflag.FlagSet) config.Overrides {
	o := config.Overrides{OTelEnabled: f.otel}
	if fs.Changed("database-url") {
		o.DatabaseURL = &f.databaseURL
	}
	if fs.Changed("log-level") {
		o.LogLevel = &f.logLevel
	}
	if fs.Changed("read-only") {
		o.ReadOnly = &f.readOnly
	}
	if fs.Changed("max-rows") {
		o.MaxRows = &f.maxRows
	}
	if fs.Changed("query-timeout") {
		o.QueryTimeout = &f.queryTimeout
	}
	if fs.Changed("explain-analyze") {
		o.ExplainAnalyze = &f.explainAnalyze
	}
	if fs.Changed("pretty") {
		o.PrettyPrint = &f.prettyPrint
	}
	if fs.Changed("noise-file") {
		o.NoiseFile = &f.noiseFile
	}
	if fs.Changed("color") {
		o.Color = &f.color
	}
	if fs.Changed("pool-max-conns") {
		o.PoolMaxConns = &f.poolMaxConns
	}
	if fs.Changed("pool-min-conns") {
		o.PoolMinConns = &f.poolMinConns
	}
	if fs.Changed("pool-max-conn-lifetime") {
		o.PoolMaxConnLifetime = &f.poolMaxConnLifetime
	}
	return o
}

func newRootCmd() *cobra.Command {
	cmd, _ := buildRootCmd()
	return cmd
}

func buildRootCmd() (*cobra.Command, *rootFlags) {
	flags := &rootFlags{}

	loadConfig := func(cmd *cobra.Command) (*config.Config, error) {
		cfg, err := config.Load(flags.overrides(cmd.Flags()))
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}

	runREPL := func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runConsole(cmd.Context(), cfg, os.Stdin, os.Stdout)
	}

	rootCmd := &cobra.Command{
		Use:   "sqlpeek",
		Short: "Watch the SQL your session runs: timings, plans and formatting",
		Long: `sqlpeek is a PostgreSQL console that can time statements, print the
execution plan of every statement a command runs, and echo executed SQL
formatted for reading. It can also serve the same diagnostics as MCP tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runREPL,
	}
	flags.register(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "repl",
			Short: "Start the interactive console (default)",
			Args:  cobra.NoArgs,
			RunE:  runREPL,
		},
		&cobra.Command{
			Use:   "mcp",
			Short: "Serve format_sql, explain_query and measure_query over MCP stdio",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				return runMCP(cmd.Context(), cfg, os.Stdin, os.Stdout)
			},
		},
		&cobra.Command{
			Use:   "format [sql]",
			Short: "Format SQL from the arguments or stdin without running it",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				sql := strings.Join(args, " ")
				if sql == "" {
					data, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return fmt.Errorf("reading stdin: %w", err)
					}
					sql = string(data)
				}
				return runFormat(cfg, sql, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "sqlpeek %s\n", version)
			},
		},
	)

	return rootCmd, flags
}

// parseFlags parses args against the root command's flags.
func parseFlags(args []string) (config.Overrides, error) {
	cmd, flags := buildRootCmd()
	if err := cmd.ParseFlags(args); err != nil {
		return config.Overrides{}, err
	}
	return flags.overrides(cmd.Flags()), nil
}
