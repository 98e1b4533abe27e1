package rpc

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// Invariant 2: concurrent calls each receive exactly the payload matching
// their own call_id, regardless of reply arrival order.
func TestRegistry_CallCorrelation_OutOfOrderReplies(t *testing.T) {
	ob := newOutbox()
	r := newRegistry(ob)

	results := make([]chan string, 3)
	for i := range results {
		results[i] = make(chan string, 1)
	}

	var wg sync.WaitGroup
	for i := uint64(0); i < 3; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			payload, err := r.CallWait(context.Background(), id, "proc", json.RawMessage(`{}`))
			if err != nil {
				t.Errorf("call %d: %v", id, err)
				return
			}
			var s string
			_ = json.Unmarshal(payload, &s)
			results[id] <- s
		}(i)
	}

	// Drain the outbox (the "writer") so every call has been registered,
	// then reply out of order: 2, 0, 1.
	for i := 0; i < 3; i++ {
		if _, ok := ob.Next(); !ok {
			t.Fatalf("outbox closed early")
		}
	}

	reply := func(id uint64, payload string) {
		raw, _ := json.Marshal(payload)
		if !r.Resolve(id, raw) {
			t.Errorf("Resolve(%d) reported unknown call", id)
		}
	}
	reply(2, "c")
	reply(0, "a")
	reply(1, "b")

	wg.Wait()
	want := []string{"a", "b", "c"}
	for i, w := range want {
		select {
		case got := <-results[i]:
			if got != w {
				t.Errorf("caller %d got %q, want %q", i, got, w)
			}
		default:
			t.Errorf("caller %d never received its reply", i)
		}
	}
}

// Invariant 3: a duplicate reply for an already-resolved call id is
// reported as unknown and has no effect.
func TestRegistry_AtMostOnceResolution(t *testing.T) {
	ob := newOutbox()
	r := newRegistry(ob)

	done := make(chan struct{})
	go func() {
		_, _ = r.CallWait(context.Background(), 1, "proc", json.RawMessage(`{}`))
		close(done)
	}()
	if _, ok := ob.Next(); !ok {
		t.Fatalf("outbox closed early")
	}

	if !r.Resolve(1, json.RawMessage(`"first"`)) {
		t.Fatalf("expected first Resolve to succeed")
	}
	<-done

	if r.Resolve(1, json.RawMessage(`"second"`)) {
		t.Fatalf("expected duplicate Resolve to report unknown")
	}
}

// Invariant 4: after Teardown, every pending waiter is resolved with a
// cancellation error and the registry is empty.
func TestRegistry_TeardownCancelsAllPending(t *testing.T) {
	ob := newOutbox()
	r := newRegistry(ob)

	errs := make([]chan error, 3)
	for i := range errs {
		errs[i] = make(chan error, 1)
	}
	for i := uint64(0); i < 3; i++ {
		go func(id uint64) {
			_, err := r.CallWait(context.Background(), id, "proc", json.RawMessage(`{}`))
			errs[id] <- err
		}(i)
	}
	for i := 0; i < 3; i++ {
		if _, ok := ob.Next(); !ok {
			t.Fatalf("outbox closed early")
		}
	}

	r.Teardown()

	deadline := time.After(time.Second)
	for i, ch := range errs {
		select {
		case err := <-ch:
			if err != ErrCancelled {
				t.Errorf("caller %d error = %v, want ErrCancelled", i, err)
			}
		case <-deadline:
			t.Fatalf("caller %d did not resolve after teardown", i)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("registry not empty after teardown: %d pending", r.Len())
	}
}

func TestRegistry_NotAliveAfterTeardown(t *testing.T) {
	ob := newOutbox()
	r := newRegistry(ob)
	r.Teardown()
	if _, err := r.CallWait(context.Background(), 1, "proc", json.RawMessage(`{}`)); err != ErrNotAlive {
		t.Fatalf("got %v, want ErrNotAlive", err)
	}
}

func TestRegistry_ContextCancellationRemovesPending(t *testing.T) {
	ob := newOutbox()
	r := newRegistry(ob)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := r.CallWait(ctx, 5, "proc", json.RawMessage(`{}`))
		done <- err
	}()
	if _, ok := ob.Next(); !ok {
		t.Fatalf("outbox closed early")
	}
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected context error")
		}
	case <-time.After(time.Second):
		t.Fatalf("CallWait did not return after cancellation")
	}
	if r.Len() != 0 {
		t.Fatalf("pending call not removed after cancellation: %d", r.Len())
	}
}
