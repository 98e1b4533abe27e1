package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/asyade/audio-gen-exp/internal/metrics"
)

// ErrTruncatedFrame names a stream that ended mid-frame. Decoder.Next does
// not return it: an incomplete frame is reported as (nil, false, nil),
// meaning "need more bytes", not a protocol violation.
var ErrTruncatedFrame = errors.New("wire: truncated frame")

// MaxFrameLen bounds a single frame's declared payload length, guarding
// against a corrupt 4-byte length prefix causing an unbounded allocation.
const MaxFrameLen = 64 << 20 // 64MiB

// lengthPrefixLen is the size in bytes of the frame length prefix header.
const lengthPrefixLen = 4

// Encode prepends a 4-byte big-endian length prefix to payload and writes
// both in a single Write call so partial writes on a shared connection
// cannot interleave two frames.
func Encode(w io.Writer, payload []byte) error {
	buf := make([]byte, lengthPrefixLen+len(payload))
	binary.BigEndian.PutUint32(buf[:lengthPrefixLen], uint32(len(payload)))
	copy(buf[lengthPrefixLen:], payload)
	_, err := w.Write(buf)
	if err != nil {
		return fmt.Errorf("wire encode: %w", err)
	}
	return nil
}

// Decoder incrementally reassembles length-prefixed frames from a stream
// of arbitrarily chunked reads. It is not safe for concurrent use.
type Decoder struct {
	buf []byte
}

// NewDecoder returns a Decoder with no buffered bytes.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends newly read bytes to the decoder's internal buffer.
func (d *Decoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// Next peels one complete frame's payload off the front of the internal
// buffer. It returns (nil, false, nil) when more bytes are needed. A
// corrupt length prefix is a permanent error: the caller should close the
// connection since the stream can no longer be reliably resynchronized.
func (d *Decoder) Next() (payload []byte, ok bool, err error) {
	if len(d.buf) < lengthPrefixLen {
		return nil, false, nil
	}
	n := binary.BigEndian.Uint32(d.buf[:lengthPrefixLen])
	if n > MaxFrameLen {
		metrics.IncMalformed()
		return nil, false, fmt.Errorf("wire decode: frame length %d exceeds max %d", n, MaxFrameLen)
	}
	total := lengthPrefixLen + int(n)
	if len(d.buf) < total {
		return nil, false, nil
	}
	payload = make([]byte, n)
	copy(payload, d.buf[lengthPrefixLen:total])
	remaining := len(d.buf) - total
	copy(d.buf, d.buf[total:])
	d.buf = d.buf[:remaining]
	return payload, true, nil
}
