package rpc

import (
	"errors"

	"github.com/asyade/audio-gen-exp/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrNotAlive      = errors.New("rpc: supervisor not alive")
	ErrCancelled     = errors.New("rpc: call cancelled")
	ErrChildExited   = errors.New("rpc: worker process exited")
	ErrAcceptFailed  = errors.New("rpc: accept failed")
	ErrConnRead      = errors.New("rpc: connection read")
	ErrConnWrite     = errors.New("rpc: connection write")
	ErrBindExhausted = errors.New("rpc: exhausted listener port range")
	ErrExternal      = errors.New("rpc: worker reported an error")
)

// mapErrToMetric maps wrapped sentinel errors to metrics error labels.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrChildExited):
		return metrics.ErrChildExited
	case errors.Is(err, ErrAcceptFailed):
		return metrics.ErrAcceptFailed
	case errors.Is(err, ErrConnRead):
		return metrics.ErrConnRead
	case errors.Is(err, ErrConnWrite):
		return metrics.ErrConnWrite
	case errors.Is(err, ErrBindExhausted):
		return metrics.ErrBindExhausted
	case errors.Is(err, ErrExternal):
		return metrics.ErrExternal
	default:
		return "other"
	}
}
