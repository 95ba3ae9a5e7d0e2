// Command await blocks until the configured dependencies are ready. It exits
// with status 1 when a required target did not become ready in time.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alarmistdev/readiness"
	"github.com/alarmistdev/readiness/check"
	"github.com/alarmistdev/readiness/internal/config"
	"github.com/alarmistdev/readiness/internal/targets"
	"github.com/alarmistdev/readiness/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 5 * time.Second

func main() {
	flags := pflag.NewFlagSet("await", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to the targets file (default ./await.yaml)")
	flags.Duration("timeout", 0, "overall wait budget per target")
	flags.Duration("tick", 0, "pause between attempts")
	flags.String("metrics-addr", "", "serve /metrics and /ready on this address while waiting")
	flags.String("log-level", "", "debug, info, warn or error")
	_ = flags.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, flags); err != nil {
		slog.Error("await failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, flags *pflag.FlagSet) error {
	cfg, err := config.Load(configPath, flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	checkConfig := check.DefaultConfig().
		WithTimeout(cfg.Timeout).
		WithTick(cfg.Tick).
		WithAttemptTimeout(cfg.AttemptTimeout).
		WithLogger(logger)

	var (
		server *http.Server
		reg    = prometheus.NewRegistry()
	)
	if cfg.Metrics.Addr != "" {
		reg.MustRegister(collectors.NewGoCollector())

		collector, err := metrics.New(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		checkConfig = checkConfig.WithObserver(collector)

		server = &http.Server{
			Addr:              cfg.Metrics.Addr,
			ReadHeaderTimeout: time.Second,
		}
	}

	waiter := readiness.NewWaiter(checkConfig)
	if err := targets.Register(waiter, cfg.Targets, checkConfig); err != nil {
		return err
	}

	if server != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.Handle("/ready", waiter.Handler())
		server.Handler = mux

		go serve(logger, server)
		defer shutdown(logger, server)
	}

	start := time.Now()
	results, err := waiter.Wait(ctx)
	report(logger, results, time.Since(start))

	return err
}

func serve(logger *slog.Logger, server *http.Server) {
	logger.Info("serving metrics", "addr", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", "error", err)
	}
}

func shutdown(logger *slog.Logger, server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("failed to stop metrics server", "error", err)
	}
}

func report(logger *slog.Logger, results []readiness.Result, elapsed time.Duration) {
	ready := 0
	for _, result := range results {
		if result.Status == readiness.TargetStatusReady {
			ready++

			continue
		}

		logger.Warn("target not ready",
			"target", result.Target.Name,
			"importance", result.Target.Importance,
			"error", result.ErrorMessage,
		)
	}

	logger.Info("wait finished", "ready", ready, "total", len(results), "elapsed", elapsed.Round(time.Millisecond))
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}

	return l
}
