package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/asyade/audio-gen-exp/internal/diffusion"
	"github.com/asyade/audio-gen-exp/internal/rpc"
)

// runRequest is the on-disk shape of a one-shot -request-file dispatch: the
// model the template belongs to and the filled-in option values to send.
type runRequest struct {
	Model    string             `json:"model"`
	Template diffusion.Template `json:"template"`
}

// runRequestFile reads a single diffusion run request from cfg.requestFile,
// dispatches it through ex, and prints the resulting asset paths to stdout.
// It is the CLI's one-shot mode, used to exercise a worker directly instead
// of embedding the bridge in an audio host.
func runRequestFile(ctx context.Context, ex *rpc.Executor, cfg *appConfig, l *slog.Logger) error {
	raw, err := os.ReadFile(cfg.requestFile)
	if err != nil {
		return fmt.Errorf("read request file: %w", err)
	}
	var req runRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("parse request file: %w", err)
	}

	callCtx := ctx
	if cfg.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cfg.callTimeout)
		defer cancel()
	}

	task := rpc.NewRunDiffusionModelTemplateTask(req.Template, cfg.hfAPIKey, cfg.outputDirectory)
	assets, err := rpc.CallDiffusionRun(callCtx, ex, task)
	if err != nil {
		return fmt.Errorf("run %q: %w", req.Model, err)
	}
	l.Info("run_complete", "model", req.Model, "assets", len(assets))
	for _, a := range assets {
		fmt.Println(a)
	}
	return nil
}
