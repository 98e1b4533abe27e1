package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/asyade/audio-gen-exp/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	CallsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rpc_calls_sent_total",
		Help: "Total calls sent to the diffusion worker.",
	})
	CallsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rpc_calls_resolved_total",
		Help: "Total calls resolved by a matching callback.",
	})
	CallsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rpc_calls_cancelled_total",
		Help: "Total calls cancelled by teardown or context expiry.",
	})
	UnknownCallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rpc_unknown_callback_total",
		Help: "Callbacks received for an unknown or already-resolved call id.",
	})
	RegistryInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rpc_registry_inflight",
		Help: "Current number of calls awaiting a reply.",
	})
	SupervisorRespawns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rpc_supervisor_respawns_total",
		Help: "Total times the worker process was respawned after a failure.",
	})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total wire frames rejected or skipped due to decode errors.",
	})
	NodeHostSyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodehost_syncs_total",
		Help: "Total times the audio node host rebuilt its active sample from a pending load.",
	})
	NodeHostLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodehost_loads_total",
		Help: "Total samples installed into the node host.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrChildExited   = "child_exited"
	ErrAcceptFailed  = "accept_failed"
	ErrConnRead      = "conn_read"
	ErrConnWrite     = "conn_write"
	ErrBindExhausted = "bind_exhausted"
	ErrExternal      = "external_worker"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready
// on addr, using its own mux, and returns the server for shutdown.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, cheap to poll without scraping Prometheus in-process.
var (
	localCallsSent        uint64
	localCallsResolved    uint64
	localCallsCancelled   uint64
	localUnknownCallbacks uint64
	localRegistryInflight uint64
	localRespawns         uint64
	localMalformed        uint64
	localErrors           uint64
	localNodeHostSyncs    uint64
	localNodeHostLoads    uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	CallsSent        uint64
	CallsResolved    uint64
	CallsCancelled   uint64
	UnknownCallbacks uint64
	RegistryInflight uint64
	Respawns         uint64
	Malformed        uint64
	Errors           uint64 // sum across error labels
	NodeHostSyncs    uint64
	NodeHostLoads    uint64
}

func Snap() Snapshot {
	return Snapshot{
		CallsSent:        atomic.LoadUint64(&localCallsSent),
		CallsResolved:    atomic.LoadUint64(&localCallsResolved),
		CallsCancelled:   atomic.LoadUint64(&localCallsCancelled),
		UnknownCallbacks: atomic.LoadUint64(&localUnknownCallbacks),
		RegistryInflight: atomic.LoadUint64(&localRegistryInflight),
		Respawns:         atomic.LoadUint64(&localRespawns),
		Malformed:        atomic.LoadUint64(&localMalformed),
		Errors:           atomic.LoadUint64(&localErrors),
		NodeHostSyncs:    atomic.LoadUint64(&localNodeHostSyncs),
		NodeHostLoads:    atomic.LoadUint64(&localNodeHostLoads),
	}
}

func IncCallsSent() {
	CallsSent.Inc()
	atomic.AddUint64(&localCallsSent, 1)
}

func IncCallsResolved() {
	CallsResolved.Inc()
	atomic.AddUint64(&localCallsResolved, 1)
}

func IncCallsCancelled() {
	CallsCancelled.Inc()
	atomic.AddUint64(&localCallsCancelled, 1)
}

func IncUnknownCallback() {
	UnknownCallbacks.Inc()
	atomic.AddUint64(&localUnknownCallbacks, 1)
}

func SetRegistryInflight(n int) {
	RegistryInflight.Set(float64(n))
	atomic.StoreUint64(&localRegistryInflight, uint64(n))
}

func IncRespawn() {
	SupervisorRespawns.Inc()
	atomic.AddUint64(&localRespawns, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func IncNodeHostSync() {
	NodeHostSyncs.Inc()
	atomic.AddUint64(&localNodeHostSyncs, 1)
}

func IncNodeHostLoad() {
	NodeHostLoads.Inc()
	atomic.AddUint64(&localNodeHostLoads, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrChildExited, ErrAcceptFailed, ErrConnRead, ErrConnWrite,
		ErrBindExhausted, ErrExternal,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
