package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/cmdrunner/internal/app/execution"
	"github.com/ahrav/cmdrunner/internal/config"
	domain "github.com/ahrav/cmdrunner/internal/domain/execution"
	"github.com/ahrav/cmdrunner/internal/infra/process"
	"github.com/ahrav/cmdrunner/internal/infra/storage"
	"github.com/ahrav/cmdrunner/internal/infra/storage/execution/memory"
	"github.com/ahrav/cmdrunner/internal/infra/storage/execution/postgres"
	"github.com/ahrav/cmdrunner/internal/manifest"
	"github.com/ahrav/cmdrunner/pkg/common"
	"github.com/ahrav/cmdrunner/pkg/common/logger"
	"github.com/ahrav/cmdrunner/pkg/common/otel"
)

// Version is set via -ldflags at build time.
var Version = "0.1.0"

const serviceType = "cmdrunner"

type rootOptions struct {
	configPath string
	reportPath string
	dryRun     bool
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:   "cmdrunner [flags] <manifest>",
		Short: "Run whitelisted shell commands from a manifest under a deadline",
		Long: "Reads a manifest, runs every requested command that is also whitelisted, " +
			"kills commands that overrun their deadline and stores the results in PostgreSQL.",
		Version:       Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifest(cmd.Context(), cmd, opts, args[0])
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a config file (yaml, json or toml)")
	flags.Duration("deadline", 60*time.Second, "Wall-clock limit per command")
	flags.Duration("kill-grace", 5*time.Second, "Time between SIGTERM and SIGKILL for an overrunning command")
	flags.String("shell", process.DefaultShell, "Shell used to interpret commands")
	flags.String("workdir", "", "Working directory for commands")
	flags.Float64("spawn-rate", 0, "Maximum commands started per second (0 disables)")
	flags.Bool("keep-partial", false, "Keep output produced by commands that time out")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("database-url", "", "PostgreSQL connection string")

	cmd.Flags().StringVarP(&opts.reportPath, "report", "r", "", "Write a YAML report of the batch to this path (- for stdout)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Keep results in memory instead of PostgreSQL")

	cmd.AddCommand(newShowCmd(&opts))
	return cmd
}

// runtimeDeps are the shared pieces built from config for every subcommand.
type runtimeDeps struct {
	cfg       *config.Config
	log       *logger.Logger
	providers otel.Providers
	repo      domain.ResultRepository
	closers   []func(context.Context)
}

func (d *runtimeDeps) Close(ctx context.Context) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i](ctx)
	}
}

func setup(ctx context.Context, cmd *cobra.Command, configPath string, dryRun bool) (*runtimeDeps, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg)
	deps := &runtimeDeps{cfg: cfg, log: log, providers: otel.NoopProviders()}

	if cfg.Telemetry.Enabled {
		hostname, _ := os.Hostname()
		providers, teardown, err := otel.InitTelemetry(log, otel.Config{
			ServiceName:      cfg.Telemetry.ServiceName,
			ExporterEndpoint: cfg.Telemetry.Endpoint,
			Probability:      cfg.Telemetry.SampleRatio,
			ResourceAttributes: map[string]string{
				"library.language": "go",
				"host.name":        hostname,
			},
			InsecureExporter: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		deps.providers = providers
		deps.closers = append(deps.closers, teardown)
	}
	tracer := deps.providers.Tracer.Tracer(cfg.Telemetry.ServiceName)

	if dryRun {
		log.Info(ctx, "dry run: results are kept in memory")
		deps.repo = memory.NewResultStore()
		return deps, nil
	}

	pool, err := common.ConnectPostgresWithRetry(ctx, common.PostgresConfig{
		DSN:            cfg.Database.DSN(),
		MinConns:       cfg.Database.MinConns,
		MaxConns:       cfg.Database.MaxConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}, log)
	if err != nil {
		deps.Close(ctx)
		return nil, err
	}
	deps.closers = append(deps.closers, func(context.Context) { pool.Close() })

	if err := migrate(ctx, log, pool, cfg.Database.MigrationsURL); err != nil {
		deps.Close(ctx)
		return nil, err
	}

	deps.repo = postgres.NewResultStore(pool, tracer)
	return deps, nil
}

func migrate(ctx context.Context, log *logger.Logger, pool *pgxpool.Pool, sourceURL string) error {
	if err := storage.Migrate(pool, sourceURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	source := sourceURL
	if source == "" {
		source = "embedded"
	}
	log.Info(ctx, "migrations applied", "source", source)
	return nil
}

func newLogger(cfg *config.Config) *logger.Logger {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)

	events := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			attrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				attrs[k] = v
			}
			b, err := json.Marshal(attrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}
			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, b)
		},
	}

	svcName := fmt.Sprintf("CMDRUNNER-%s", hostname)
	metadata := map[string]string{
		"hostname": hostname,
		"app":      serviceType,
	}

	// Logs go to stderr so that a report written to stdout stays parseable.
	return logger.NewWithMetadata(os.Stderr, level, svcName, otel.GetTraceID, events, metadata)
}

func runManifest(ctx context.Context, cmd *cobra.Command, opts rootOptions, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// A malformed manifest is reported before any connection is attempted.
	m, err := manifest.NewFileLoader().Load(ctx, path)
	if err != nil {
		return err
	}

	deps, err := setup(ctx, cmd, opts.configPath, opts.dryRun)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	cfg, log := deps.cfg, deps.log
	tracer := deps.providers.Tracer.Tracer(cfg.Telemetry.ServiceName)

	metrics, err := execution.NewExecutionMetrics(deps.providers.Meter)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	runner := process.NewShellRunner(cfg.Execution.Shell, process.WithDir(cfg.Execution.WorkDir))
	supervisor := execution.NewDeadlineSupervisor(runner, execution.SupervisorConfig{
		KillGrace:             cfg.Execution.KillGrace,
		PreservePartialOutput: cfg.Execution.PreservePartialOutput,
	}, log, tracer, metrics)
	executor := execution.NewBatchExecutor(supervisor, cfg.Execution.SpawnRate, log, tracer, metrics)
	reaper := execution.NewReaper(process.NewGroupSignaler(), log, tracer, metrics)
	sink := execution.NewResultSink(deps.repo, log, tracer, metrics)

	orch := execution.NewOrchestrator(
		new(sync.Mutex),
		execution.NewCommandQueue(cfg.Execution.QueueCapacity),
		manifest.Preloaded(m),
		cfg.Execution.Deadline,
		executor,
		reaper,
		sink,
		log,
		tracer,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var batch *domain.ResultBatch
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		var err error
		batch, err = orch.RunManifest(gctx, path)
		return err
	})
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			log.Warn(ctx, "received signal, terminating running command", "signal", sig.String())
			return fmt.Errorf("interrupted by %s", sig)
		case <-gctx.Done():
			return nil
		}
	})
	runErr := g.Wait()

	if batch != nil && !batch.IsEmpty() {
		counts := batch.CountByOutcome()
		log.Info(ctx, "batch finished",
			"batch_id", batch.ID(),
			"records", batch.Len(),
			"completed", counts[domain.OutcomeCompleted],
			"timed_out", counts[domain.OutcomeTimedOut],
			"spawn_failed", counts[domain.OutcomeSpawnFailed],
		)
		if opts.reportPath != "" {
			if err := writeReport(opts.reportPath, cmd.OutOrStdout(), batch); err != nil {
				log.Error(ctx, "failed to write report", "path", opts.reportPath, "error", err)
				if runErr == nil {
					runErr = err
				}
			}
		}
	}

	return runErr
}

func writeReport(path string, stdout io.Writer, batch *domain.ResultBatch) error {
	if path == "-" {
		return execution.WriteReport(stdout, batch)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := execution.WriteReport(f, batch); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func newShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Print a stored batch as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid batch id %q: %w", args[0], err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			deps, err := setup(ctx, cmd, root.configPath, false)
			if err != nil {
				return err
			}
			defer deps.Close(context.Background())

			pb, err := deps.repo.GetBatch(ctx, id)
			if err != nil {
				return err
			}
			return execution.WritePersistedReport(cmd.OutOrStdout(), pb)
		},
	}
}
