package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/asyade/audio-gen-exp/internal/logging"
	"github.com/asyade/audio-gen-exp/internal/metrics"
	"github.com/asyade/audio-gen-exp/internal/rpc"
)

// Helper implementations moved to dedicated files: version.go, config.go,
// logger.go, metrics_logger.go.

const healthCheckInterval = 30 * time.Second

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("audio-gen-exp %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	spawn := func(ctx context.Context) (*rpc.Supervisor, error) {
		return rpc.Spawn(ctx, cfg.workerEntryPoint, cfg.workerEnv)
	}
	initial, err := spawn(ctx)
	if err != nil {
		l.Error("worker_spawn_failed", "error", err)
		os.Exit(1)
	}
	ex := rpc.NewExecutor(initial, spawn)

	metrics.SetReadinessFunc(ex.Alive)
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	l.Info("bridge_started", "worker_entry_point", cfg.workerEntryPoint, "worker_addr", initial.Addr())

	if cfg.requestFile != "" {
		err := runRequestFile(ctx, ex, cfg, l)
		cancel()
		wg.Wait()
		if err != nil {
			l.Error("run_request_failed", "error", err)
			os.Exit(1)
		}
		return
	}

	startHealthCheck(ctx, ex, cfg.callTimeout, l, &wg)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	wg.Wait()
	logging.L().Info("bridge_stopped")
}

// startHealthCheck periodically asks the worker which diffusion models it
// has available, exercising the executor's respawn-on-failure path the
// same way an embedding audio host's own calls would.
func startHealthCheck(ctx context.Context, ex *rpc.Executor, callTimeout time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(healthCheckInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				callCtx := ctx
				var cancel context.CancelFunc
				if callTimeout > 0 {
					callCtx, cancel = context.WithTimeout(ctx, callTimeout)
				}
				models, err := rpc.Call[[]string](callCtx, ex, rpc.GetAvailableDiffusionModelTask{})
				if cancel != nil {
					cancel()
				}
				if err != nil {
					l.Warn("health_check_failed", "error", err)
					continue
				}
				l.Debug("health_check_ok", "available_models", len(models))
			case <-ctx.Done():
				return
			}
		}
	}()
}
