package rpc

import (
	"testing"
	"time"

	"github.com/asyade/audio-gen-exp/internal/wire"
)

func TestOutbox_FIFOOrder(t *testing.T) {
	ob := newOutbox()
	for i := uint64(0); i < 5; i++ {
		ob.Send(wire.Call{CallID: i})
	}
	for i := uint64(0); i < 5; i++ {
		c, ok := ob.Next()
		if !ok {
			t.Fatalf("Next() returned ok=false for call %d", i)
		}
		if c.CallID != i {
			t.Fatalf("got call_id %d, want %d", c.CallID, i)
		}
	}
}

func TestOutbox_NextBlocksUntilSend(t *testing.T) {
	ob := newOutbox()
	done := make(chan wire.Call, 1)
	go func() {
		c, ok := ob.Next()
		if !ok {
			t.Error("Next() returned ok=false")
			return
		}
		done <- c
	}()

	select {
	case <-done:
		t.Fatalf("Next() returned before any Send")
	case <-time.After(20 * time.Millisecond):
	}

	ob.Send(wire.Call{CallID: 7})
	select {
	case c := <-done:
		if c.CallID != 7 {
			t.Fatalf("got call_id %d, want 7", c.CallID)
		}
	case <-time.After(time.Second):
		t.Fatalf("Next() did not wake after Send")
	}
}

func TestOutbox_CloseWakesBlockedNext(t *testing.T) {
	ob := newOutbox()
	done := make(chan bool, 1)
	go func() {
		_, ok := ob.Next()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	ob.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected ok=false after Close")
		}
	case <-time.After(time.Second):
		t.Fatalf("Next() did not wake after Close")
	}
}

func TestOutbox_SendAfterCloseIsDropped(t *testing.T) {
	ob := newOutbox()
	ob.Close()
	ob.Send(wire.Call{CallID: 1})
	if _, ok := ob.Next(); ok {
		t.Fatalf("expected no call delivered after Close")
	}
}
