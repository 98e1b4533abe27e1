package audio

import (
	"sync"
	"sync/atomic"

	"github.com/asyade/audio-gen-exp/internal/logging"
	"github.com/asyade/audio-gen-exp/internal/metrics"
)

// NodeHost double-buffers an installable sample: Load is called from any
// control thread, Fill is called from the real-time audio callback
// thread. The audio thread takes the slow, locking path at most once per
// installation event; in steady state it only reads an atomic flag.
type NodeHost struct {
	synced  atomic.Bool
	mu      sync.RWMutex
	pending *RawSample // shared, lock-protected

	current *SamplerNode // audio-thread private after sync
}

// NewNodeHost returns a NodeHost with nothing loaded and already synced,
// so the first Fill does not take the slow path.
func NewNodeHost() *NodeHost {
	h := &NodeHost{}
	h.synced.Store(true)
	return h
}

// Load installs a new sample to be picked up by the audio thread on its
// next Fill. It never blocks the audio thread: it only ever contends with
// other Load callers and the audio thread's own (brief) read-lock window.
func (h *NodeHost) Load(sample RawSample) {
	h.mu.Lock()
	h.pending = &sample
	h.mu.Unlock()
	h.synced.Store(false)
	metrics.IncNodeHostLoad()
}

// Fill writes len(out[0]) stereo frames into out[0] (left) and out[1]
// (right). If no sample has ever been loaded, the output is left
// untouched; pre-zeroing, if required, is the caller's responsibility.
func (h *NodeHost) Fill(out [][]float32) {
	h.sync()
	if h.current == nil {
		return
	}
	if len(out) < 2 {
		return
	}
	n := len(out[0])
	for i := 0; i < n; i++ {
		f := h.current.Tick()
		out[0][i] = f.L
		out[1][i] = f.R
	}
}

// sync is the fast path in steady state: a single atomic load. Only when
// a Load happened since the last sync does it take the read lock and
// rebuild the audio-thread-private sampler.
func (h *NodeHost) sync() {
	if h.synced.Load() {
		return
	}
	h.mu.RLock()
	pending := h.pending
	h.mu.RUnlock()
	if pending != nil {
		h.current = NewSamplerNode(*pending)
		logging.L().Debug("nodehost_sample_loaded")
	} else {
		h.current = nil
		logging.L().Debug("nodehost_sample_cleared")
	}
	h.synced.Store(true)
	metrics.IncNodeHostSync()
}
