package wire

import (
	"bytes"
	"testing"
)

func TestCodec_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{
		[]byte(`{"id":"ack","request":"run"}`),
		[]byte(`{"id":"log","level":"info","message":"hello"}`),
		[]byte(`{}`),
	}
	for _, p := range payloads {
		if err := Encode(&buf, p); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}

	dec := NewDecoder()
	dec.Feed(buf.Bytes())
	var got [][]byte
	for {
		p, ok, err := dec.Next()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, p)
	}
	if len(got) != len(payloads) {
		t.Fatalf("got %d frames, want %d", len(got), len(payloads))
	}
	for i := range payloads {
		if !bytes.Equal(got[i], payloads[i]) {
			t.Fatalf("frame %d mismatch: got %q want %q", i, got[i], payloads[i])
		}
	}
}

func TestCodec_FeedsAcrossPartialReads(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"id":"ack","request":"x"}`)
	if err := Encode(&buf, payload); err != nil {
		t.Fatalf("encode: %v", err)
	}
	whole := buf.Bytes()

	dec := NewDecoder()
	// Feed one byte at a time to exercise the "need more bytes" path.
	for i := 0; i < len(whole); i++ {
		dec.Feed(whole[i : i+1])
		p, ok, err := dec.Next()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if i < len(whole)-1 {
			if ok {
				t.Fatalf("decoded frame before all bytes were fed (at byte %d)", i)
			}
			continue
		}
		if !ok {
			t.Fatalf("expected a complete frame after final byte")
		}
		if !bytes.Equal(p, payload) {
			t.Fatalf("got %q want %q", p, payload)
		}
	}
}

// S1: the length prefix counts only the JSON payload bytes, big-endian,
// not the prefix itself.
func TestCodec_S1LengthPrefixCountsPayloadOnly(t *testing.T) {
	payload := []byte(`{"id":"Log","message":"hi","level":"info"}`)
	var buf bytes.Buffer
	if err := Encode(&buf, payload); err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{
		byte(len(payload) >> 24), byte(len(payload) >> 16),
		byte(len(payload) >> 8), byte(len(payload)),
	}
	got := buf.Bytes()[:4]
	if !bytes.Equal(got, want) {
		t.Fatalf("length prefix = % X, want % X", got, want)
	}
	if buf.Len() != 4+len(payload) {
		t.Fatalf("total frame length = %d, want %d", buf.Len(), 4+len(payload))
	}
}

func TestCodec_MalformedLengthRejected(t *testing.T) {
	dec := NewDecoder()
	huge := make([]byte, 4)
	huge[0] = 0xFF // declares a frame far larger than MaxFrameLen
	dec.Feed(huge)
	if _, _, err := dec.Next(); err == nil {
		t.Fatalf("expected error for oversized frame length")
	}
}
