package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/noppelmax/depio-go/internal/config"
	"github.com/noppelmax/depio-go/internal/display"
	"github.com/noppelmax/depio-go/internal/domain/executor"
	"github.com/noppelmax/depio-go/internal/domain/pipeline"
	"github.com/noppelmax/depio-go/internal/executor/cluster"
	"github.com/noppelmax/depio-go/internal/executor/inline"
	"github.com/noppelmax/depio-go/internal/executor/pool"
	"github.com/noppelmax/depio-go/internal/logging"
	"github.com/noppelmax/depio-go/internal/metrics"
)

func newRunCommand() *cobra.Command {
	var demo string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "resolve and run the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), demo)
		},
	}
	cmd.Flags().StringVar(&demo, "demo", "chain", "which built-in demo pipeline to run: chain, diamond, or failure")
	return cmd
}

func runPipeline(ctx context.Context, demoName string) error {
	cfg, err := config.Load(configPath, envFilePath)
	if err != nil {
		return err
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	logger := logging.New("depio", level)
	logging.InitGlobal(logger)

	if cfg.Metrics.Enabled {
		metrics.InitGlobal()
		go serveMetrics(cfg.Metrics.Address, logger)
	}

	exec, cleanup, err := buildExecutor(ctx, cfg.Executor)
	if err != nil {
		return err
	}
	defer cleanup()

	p := pipeline.New(exec, pipeline.Options{
		Name:                          cfg.Pipeline.Name,
		ClearScreen:                   cfg.Pipeline.ClearScreen,
		HideSuccessfulTerminatedTasks: cfg.Pipeline.HideSuccessfulTerminatedTasks,
		SubmitOnlyIfRunnable:          cfg.Pipeline.SubmitOnlyIfRunnable,
		Quiet:                         cfg.Pipeline.Quiet,
		RefreshPeriod:                 cfg.Pipeline.RefreshPeriod,
	})
	if !cfg.Pipeline.Quiet {
		p.SetRenderer(&display.TableRenderer{
			Out:                           os.Stdout,
			ClearScreen:                   cfg.Pipeline.ClearScreen,
			HideSuccessfulTerminatedTasks: cfg.Pipeline.HideSuccessfulTerminatedTasks,
		})
	}

	if err := buildDemoPipeline(p, demoName); err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := p.Run(runCtx)
	if err != nil && result == nil {
		return err
	}

	for _, t := range result.FailedTasks {
		logger.Error("task failed", "task", t.Name, "state", t.State().String(), "stderr", string(t.Stderr()))
	}

	if !result.Success {
		os.Exit(1)
	}
	return nil
}

func buildExecutor(ctx context.Context, cfg config.ExecutorConfig) (executor.Executor, func(), error) {
	switch cfg.Kind {
	case "pool":
		workers := cfg.Pool.MaxWorkers
		if workers <= 0 {
			workers = 4
		}
		opts := []pool.Option{}
		if cfg.Pool.RateLimit > 0 && cfg.Pool.Burst > 0 {
			opts = append(opts, pool.WithRateLimit(rate.Limit(cfg.Pool.RateLimit), cfg.Pool.Burst))
		}
		return pool.New(workers, opts...), func() {}, nil
	case "cluster":
		e, err := cluster.Dial(ctx, cluster.Config{
			Address:       cfg.Cluster.Address,
			PollInterval:  cfg.Cluster.PollInterval,
			MaxJobsQueued: cfg.Cluster.MaxJobsQueued,
			ScratchPath:   cfg.Cluster.ScratchPath,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return e, func() { _ = e.Close() }, nil
	default:
		return inline.New(), func() {}, nil
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
