package rpc

import (
	"sync"
	"sync/atomic"

	"github.com/asyade/audio-gen-exp/internal/wire"
)

// outbox is the supervisor's single-producer-many, single-consumer FIFO of
// outbound Call messages awaiting the writer goroutine. Unlike
// transport.AsyncTx (bounded, drop-on-full), an outbox never drops: the
// call registry's at-most-once-delivery invariant depends on every enqueued
// Call eventually reaching the wire, so growth is unbounded and callers
// never observe backpressure from Send.
type outbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	q      []wire.Call
	closed atomic.Bool
}

func newOutbox() *outbox {
	o := &outbox{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Send enqueues a Call for the writer goroutine. It never blocks the caller.
func (o *outbox) Send(c wire.Call) {
	o.mu.Lock()
	if o.closed.Load() {
		o.mu.Unlock()
		return
	}
	o.q = append(o.q, c)
	o.mu.Unlock()
	o.cond.Signal()
}

// Next blocks until a Call is available or the outbox is closed, in which
// case ok is false.
func (o *outbox) Next() (c wire.Call, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.q) == 0 && !o.closed.Load() {
		o.cond.Wait()
	}
	if len(o.q) == 0 {
		return wire.Call{}, false
	}
	c = o.q[0]
	o.q[0] = wire.Call{}
	o.q = o.q[1:]
	return c, true
}

// Close stops the outbox; any goroutine blocked in Next wakes and returns
// ok=false. Idempotent.
func (o *outbox) Close() {
	o.mu.Lock()
	o.closed.Store(true)
	o.mu.Unlock()
	o.cond.Broadcast()
}
