package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/asyade/audio-gen-exp/internal/logging"
	"github.com/asyade/audio-gen-exp/internal/metrics"
)

// SpawnFunc launches a fresh worker supervisor; it is the type of Spawn,
// bound to a fixed entry point and environment so Executor can respawn
// without the caller threading those arguments through every call.
type SpawnFunc func(ctx context.Context) (*Supervisor, error)

// Executor is the typed call façade in front of a Supervisor: on a
// failed call it synchronously respawns a replacement and retries exactly
// once, surfacing the second failure verbatim. Background goroutines
// (the supervisor's reader/writer loop) never need write access to this
// slot — only Call does, and only for the width of one call plus its
// possible respawn.
type Executor struct {
	mu    sync.Mutex
	spawn SpawnFunc
	proc  *Supervisor
}

// NewExecutor wraps an already-spawned supervisor, using spawn to produce
// its replacement after a failed call.
func NewExecutor(initial *Supervisor, spawn SpawnFunc) *Executor {
	return &Executor{proc: initial, spawn: spawn}
}

// Call serializes task, invokes the matching procedure on the current
// supervisor, and deserializes the reply into R. On failure it
// synchronously respawns the supervisor and retries exactly once, unless
// ctx itself is done, in which case the error is returned without a
// respawn.
func Call[R any](ctx context.Context, ex *Executor, task Task) (R, error) {
	var zero R

	payload, err := json.Marshal(task)
	if err != nil {
		return zero, fmt.Errorf("rpc: marshal task: %w", err)
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()

	reply, err := ex.proc.CallWait(ctx, task.ProcedureID(), payload)
	if err == nil {
		return decode[R](reply)
	}
	if ctx.Err() != nil {
		// The caller's own deadline or cancellation, not a dead worker.
		return zero, err
	}

	logging.L().Warn("respawning_worker", "procedure", task.ProcedureID(), "error", err)
	replacement, spawnErr := ex.spawn(ctx)
	if spawnErr != nil {
		return zero, fmt.Errorf("rpc: respawn after %v: %w", err, spawnErr)
	}
	ex.proc = replacement
	metrics.IncRespawn()

	reply, err = ex.proc.CallWait(ctx, task.ProcedureID(), payload)
	if err != nil {
		return zero, fmt.Errorf("rpc: call failed after respawn: %w", err)
	}
	return decode[R](reply)
}

// Alive reports whether the executor's current supervisor is accepting
// calls, reflecting the latest respawn if one has occurred.
func (ex *Executor) Alive() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.proc.Alive()
}

func decode[R any](raw []byte) (R, error) {
	var v R
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("rpc: unmarshal reply: %w", err)
	}
	return v, nil
}

// CallDiffusionRun wraps Call for RunDiffusionModelTemplateTask, turning a
// reported worker error into ErrExternal instead of a decode failure —
// RunDiffusionModelTemplateTask's reply always decodes successfully even
// when the worker reports a failure, so the error has to be pulled out of
// the decoded result rather than out of Call's own error return.
func CallDiffusionRun(ctx context.Context, ex *Executor, task RunDiffusionModelTemplateTask) ([]string, error) {
	res, err := Call[RunDiffusionModelTemplateResult](ctx, ex, task)
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrExternal, *res.Error)
	}
	return res.Assets, nil
}
