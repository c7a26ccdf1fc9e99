// Command maskgen curates the label catalog and generates per-site
// three-class masks.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lacunalabels/maskgen/internal/adapters/http/api"
	app "github.com/lacunalabels/maskgen/internal/app"
	"github.com/lacunalabels/maskgen/internal/config"
	"github.com/lacunalabels/maskgen/pkg/logger"
	"github.com/lacunalabels/maskgen/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// The pipeline registry carries its own process metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

// run loads configuration, executes one pipeline run and returns the
// process exit code.
func run(ctx context.Context) int {
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Get().Error(ctx, "failed to load config", logger.Error(err))
		return 1
	}
	if err := configureLogging(cfg); err != nil {
		logger.Get().Warn(ctx, "invalid logging config; using text at info", logger.Error(err))
	}
	log := logger.Named("main")

	svc, err := app.New(cfg, app.WithLogger(logger.Named("service")))
	if err != nil {
		log.Error(ctx, "failed to create service", logger.Error(err))
		return 1
	}

	go startSystemMetricsUpdater(ctx)

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		srv = newStatusServer(ctx, cfg.MetricsAddr, svc)
		go func() {
			log.Info(ctx, "starting status server", logger.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "status server failed", logger.Error(err))
			}
		}()
	}

	log.Info(ctx, "pipeline starting",
		logger.String("data_dir", cfg.DataDir),
		logger.Int("workers", cfg.WorkerCount),
		logger.String("src_col", cfg.SrcCol),
		logger.Bool("overwrite", cfg.Overwrite),
	)
	summary, runErr := svc.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "status server shutdown failed", logger.Error(err))
		}
		cancel()
	}

	if runErr != nil {
		log.Error(ctx, "pipeline failed", logger.String("run_id", summary.RunID), logger.Error(runErr))
		return 1
	}
	log.Info(ctx, "label catalog written",
		logger.String("run_id", summary.RunID),
		logger.String("path", summary.ResultFile),
		logger.Int("ok", summary.OK),
		logger.Int("skipped", summary.Skipped),
		logger.Int("failed", summary.Failed),
	)
	return 0
}

// configureLogging re-initializes the global logger with the configured
// format and level.
func configureLogging(cfg *config.Config) error {
	if err := logger.InitWithWriter(os.Stdout, cfg.LogFormat); err != nil {
		_ = logger.Init()
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
		return err
	}
	return nil
}

// newStatusServer builds the HTTP server exposing /healthz, /stats and
// /metrics for stats.
func newStatusServer(ctx context.Context, addr string, stats api.StatsProvider) *http.Server {
	mux := http.NewServeMux()
	api.NewServer(stats).Register(ctx, mux)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater refreshes process metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.UpdateSystemGCPause(avgPauseMs)
	}
}
