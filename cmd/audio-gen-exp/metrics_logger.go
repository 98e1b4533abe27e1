package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/asyade/audio-gen-exp/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"calls_sent", snap.CallsSent,
					"calls_resolved", snap.CallsResolved,
					"calls_cancelled", snap.CallsCancelled,
					"unknown_callbacks", snap.UnknownCallbacks,
					"registry_inflight", snap.RegistryInflight,
					"respawns", snap.Respawns,
					"malformed_frames", snap.Malformed,
					"nodehost_syncs", snap.NodeHostSyncs,
					"nodehost_loads", snap.NodeHostLoads,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
