package rpc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/asyade/audio-gen-exp/internal/metrics"
	"github.com/asyade/audio-gen-exp/internal/wire"
)

func callOf(callID uint64, procedureID string, payload json.RawMessage) wire.Call {
	return wire.Call{CallID: callID, ProcedureID: procedureID, Payload: payload}
}

// pendingCall is a one-shot completion handle: written exactly once by
// either the reader goroutine (on a matching CallBack) or the teardown
// path (on cancellation), and read exactly once by the caller blocked in
// CallWait.
type pendingCall struct {
	done chan result
}

type result struct {
	payload json.RawMessage
	err     error
}

// registry correlates outbound call ids with pending waiters. It is the
// single exclusive lock guarding both the pending map and the alive flag,
// so that "insert happens-before reply lookup" as required by the caller
// that enqueues onto the outbox while still holding this lock.
type registry struct {
	mu      sync.Mutex
	alive   bool
	pending map[uint64]*pendingCall
	outbox  *outbox
}

func newRegistry(ob *outbox) *registry {
	return &registry{
		alive:   true,
		pending: make(map[uint64]*pendingCall),
		outbox:  ob,
	}
}

// CallWait enqueues an outbound call and blocks until a reply is matched,
// ctx is cancelled, or the supervisor tears down. The outbound message is
// enqueued while still holding the registry lock, satisfying the
// insert-happens-before-reply-lookup invariant.
func (r *registry) CallWait(ctx context.Context, callID uint64, procedureID string, payload json.RawMessage) (json.RawMessage, error) {
	r.mu.Lock()
	if !r.alive {
		r.mu.Unlock()
		return nil, ErrNotAlive
	}
	pc := &pendingCall{done: make(chan result, 1)}
	r.pending[callID] = pc
	metrics.SetRegistryInflight(len(r.pending))
	r.outbox.Send(callOf(callID, procedureID, payload))
	metrics.IncCallsSent()
	r.mu.Unlock()

	select {
	case res := <-pc.done:
		return res.payload, res.err
	case <-ctx.Done():
		r.mu.Lock()
		if _, ok := r.pending[callID]; ok {
			delete(r.pending, callID)
			metrics.SetRegistryInflight(len(r.pending))
			metrics.IncCallsCancelled()
		}
		r.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Resolve matches an inbound CallBack to a pending call and fulfills its
// handle exactly once. An unknown or already-resolved call id is reported
// via ok=false so the caller can log and drop it.
func (r *registry) Resolve(callID uint64, payload json.RawMessage) (ok bool) {
	r.mu.Lock()
	pc, found := r.pending[callID]
	if found {
		delete(r.pending, callID)
		metrics.SetRegistryInflight(len(r.pending))
	}
	r.mu.Unlock()
	if !found {
		metrics.IncUnknownCallback()
		return false
	}
	pc.done <- result{payload: payload}
	metrics.IncCallsResolved()
	return true
}

// Teardown marks the registry not-alive exactly once and resolves every
// pending call with a cancellation error. Idempotent.
func (r *registry) Teardown() {
	r.mu.Lock()
	if !r.alive {
		r.mu.Unlock()
		return
	}
	r.alive = false
	pending := r.pending
	r.pending = make(map[uint64]*pendingCall)
	metrics.SetRegistryInflight(0)
	r.mu.Unlock()

	for _, pc := range pending {
		pc.done <- result{err: ErrCancelled}
		metrics.IncCallsCancelled()
	}
	r.outbox.Close()
}

// Alive reports whether the registry still accepts new calls.
func (r *registry) Alive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alive
}

// Len reports the current number of in-flight calls, for tests and metrics.
func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
