package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/asyade/audio-gen-exp/internal/logging"
	"github.com/asyade/audio-gen-exp/internal/metrics"
	"github.com/asyade/audio-gen-exp/internal/wire"
)

const (
	firstPort  = 4240
	maxRetries = 256
	acceptWait = 10 * time.Second
)

// execCommand is a package-level hook so tests can substitute a stub
// worker process for the real entry point, mirroring the teacher's openSerialPort/openSocketCANDevice seams.
var execCommand = exec.Command

// Supervisor owns a worker process and the one TCP connection it accepts
// for its lifetime. It transitions from alive to not-alive exactly once,
// on child exit, socket error, socket EOF, accept failure, or cancellation
// of the context passed to Spawn.
type Supervisor struct {
	id       string
	registry *registry
	outbox   *outbox
	cmd      *exec.Cmd
	listener net.Listener
	addr     string

	teardownOnce sync.Once
	done         chan struct{} // closed once teardown completes
}

// Addr returns the "host:port" the supervisor bound for the worker to
// dial back into. It is fixed for the supervisor's lifetime.
func (s *Supervisor) Addr() string { return s.addr }

// ID returns a short identifier unique to this supervisor instance, used
// only to disambiguate generations of the same worker across a respawn in
// logs — two supervisors racing to tear down near-simultaneously are easy
// to tell apart in a shared log stream this way.
func (s *Supervisor) ID() string { return s.id }

// Spawn binds a listener on localhost starting at port 4240 (retrying up
// to 256 times on bind failure), launches entryPoint as a child process
// with PORT and env set, and starts a background goroutine that accepts
// exactly one inbound connection and then runs the duplex I/O loop on it.
// Spawn returns without waiting for that connection; calls made before it
// arrives stay queued in the outbox.
func Spawn(ctx context.Context, entryPoint string, env []string) (*Supervisor, error) {
	var listener net.Listener
	var port int
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		port = firstPort + i
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			listener = ln
			break
		}
		lastErr = err
	}
	if listener == nil {
		return nil, fmt.Errorf("%w: %v", ErrBindExhausted, lastErr)
	}

	cmd := execCommand(entryPoint)
	cmd.Env = append(append([]string{}, env...), fmt.Sprintf("PORT=%d", port))
	if err := cmd.Start(); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("rpc: start worker: %w", err)
	}

	ob := newOutbox()
	s := &Supervisor{
		id:       uuid.NewString(),
		registry: newRegistry(ob),
		outbox:   ob,
		cmd:      cmd,
		listener: listener,
		addr:     listener.Addr().String(),
		done:     make(chan struct{}),
	}
	logging.L().Info("worker_spawned", "supervisor_id", s.id, "addr", s.addr, "entry_point", entryPoint)

	go s.watchChildExit()
	go s.acceptAndRun(ctx)

	return s, nil
}

func (s *Supervisor) watchChildExit() {
	err := s.cmd.Wait()
	logging.L().Warn("worker_exited", "supervisor_id", s.id, "error", err)
	s.teardown(fmt.Errorf("%w: %v", ErrChildExited, err))
}

// acceptAndRun accepts exactly one inbound connection then runs the
// duplex loop. Additional connections to the listener are never accepted:
// the listener is closed as soon as one connection is established.
func (s *Supervisor) acceptAndRun(ctx context.Context) {
	type acceptResult struct {
		conn net.Conn
		err  error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		conn, err := s.listener.Accept()
		acceptCh <- acceptResult{conn, err}
	}()

	select {
	case res := <-acceptCh:
		_ = s.listener.Close()
		if res.err != nil {
			s.teardown(fmt.Errorf("%w: %v", ErrAcceptFailed, res.err))
			return
		}
		logging.L().Info("worker_connected")
		s.duplexLoop(ctx, res.conn)
	case <-time.After(acceptWait):
		_ = s.listener.Close()
		s.teardown(fmt.Errorf("%w: accept window expired", ErrAcceptFailed))
	case <-ctx.Done():
		_ = s.listener.Close()
		s.teardown(fmt.Errorf("%w: %v", ErrAcceptFailed, ctx.Err()))
	case <-s.done:
		// Child already exited before connecting; stop waiting on accept.
		_ = s.listener.Close()
	}
}

// duplexLoop multiplexes inbound socket bytes and outbound outbox
// messages through a single reader goroutine and a single writer
// goroutine; it tears the supervisor down on any read/write failure.
func (s *Supervisor) duplexLoop(ctx context.Context, conn net.Conn) {
	readDone := make(chan error, 1)
	go func() { readDone <- s.readLoop(conn) }()

	writeDone := make(chan error, 1)
	go func() { writeDone <- s.writeLoop(conn) }()

	select {
	case err := <-readDone:
		_ = conn.Close()
		s.teardown(fmt.Errorf("%w: %v", ErrConnRead, err))
	case err := <-writeDone:
		_ = conn.Close()
		s.teardown(fmt.Errorf("%w: %v", ErrConnWrite, err))
	case <-ctx.Done():
		_ = conn.Close()
		s.teardown(ctx.Err())
	}
}

func (s *Supervisor) readLoop(conn net.Conn) error {
	dec := wire.NewDecoder()
	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				payload, ok, derr := dec.Next()
				if derr != nil {
					logging.L().Error("wire_decode_error", "error", derr)
					return derr
				}
				if !ok {
					break
				}
				s.handleInbound(payload)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return err
		}
	}
}

func (s *Supervisor) handleInbound(payload []byte) {
	in, err := wire.DecodeInbound(payload)
	if err != nil {
		metrics.IncMalformed()
		logging.L().Error("wire_unmarshal_error", "error", err, "raw", string(payload))
		return
	}
	switch in.Kind {
	case wire.KindAck:
		// Diagnostic echo; ignored operationally.
	case wire.KindLog:
		forwardWorkerLog(in.Log)
	case wire.KindCallBack:
		if !s.registry.Resolve(in.CallBack.CallID, in.CallBack.Payload) {
			logging.L().Error("unknown_callback", "call_id", in.CallBack.CallID)
		}
	}
}

func forwardWorkerLog(l *wire.Log) {
	if l == nil {
		return
	}
	logger := logging.L().With("from", "diffusion_worker")
	switch normalizedLevel(l.Level) {
	case "error":
		logger.Error(l.Message)
	case "warn":
		logger.Warn(l.Message)
	case "debug":
		logger.Debug(l.Message)
	default:
		logger.Info(l.Message)
	}
}

func normalizedLevel(level string) string {
	switch lower(level) {
	case "error", "err":
		return "error"
	case "warn", "warning":
		return "warn"
	case "debug":
		return "debug"
	default:
		return "info"
	}
}

func lower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func (s *Supervisor) writeLoop(conn net.Conn) error {
	for {
		call, ok := s.outbox.Next()
		if !ok {
			return nil
		}
		raw, err := wire.EncodeCall(call)
		if err != nil {
			logging.L().Error("wire_encode_error", "error", err)
			continue
		}
		if err := wire.Encode(conn, raw); err != nil {
			return err
		}
	}
}

var lastCallID atomic.Uint64

// nextCallID allocates a monotonically increasing call id, unique over
// the lifetime of this process (the spec only requires uniqueness per
// supervisor instance; a process-wide counter trivially satisfies that).
func nextCallID() uint64 {
	return lastCallID.Add(1)
}

// CallWait enqueues an outbound call and blocks for a matching reply, ctx
// cancellation, or supervisor teardown.
func (s *Supervisor) CallWait(ctx context.Context, procedureID string, payload []byte) ([]byte, error) {
	return s.registry.CallWait(ctx, nextCallID(), procedureID, payload)
}

// Alive reports whether this supervisor still accepts new calls.
func (s *Supervisor) Alive() bool { return s.registry.Alive() }

func (s *Supervisor) teardown(cause error) {
	s.teardownOnce.Do(func() {
		s.registry.Teardown()
		close(s.done)
		if cause != nil {
			metrics.IncError(mapErrToMetric(cause))
			logging.L().Warn("supervisor_down", "supervisor_id", s.id, "error", cause)
		}
	})
}

// Done returns a channel closed once the supervisor has torn down.
func (s *Supervisor) Done() <-chan struct{} { return s.done }
