// Package wire implements the length-prefixed JSON framing protocol shared
// between the host and the diffusion worker process.
package wire

import "encoding/json"

// Kind discriminates the tagged union carried by the "id" field of every
// frame, mirroring the worker's own enum-tagged wire messages.
type Kind string

const (
	KindCall     Kind = "Call"
	KindAck      Kind = "Ack"
	KindLog      Kind = "Log"
	KindCallBack Kind = "CallBack"
)

// Call is sent host -> worker to invoke a procedure.
type Call struct {
	CallID      uint64          `json:"call_id"`
	ProcedureID string          `json:"procedure_id"`
	Payload     json.RawMessage `json:"payload"`
}

// Ack is sent worker -> host to acknowledge receipt of a Call. It carries
// no correlation data the host relies on and is otherwise ignored.
type Ack struct {
	Request string `json:"request"`
}

// Log is sent worker -> host and forwarded verbatim to the structured logger.
type Log struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// CallBack is sent worker -> host with the result of a previously issued Call.
type CallBack struct {
	CallID  uint64          `json:"call_id"`
	Payload json.RawMessage `json:"payload"`
}

// envelope is the wire shape every message is wrapped in: a tag field plus
// the inner payload flattened at decode time.
type envelope struct {
	ID Kind `json:"id"`
}

// Inbound is the decoded result of a worker -> host frame: exactly one of
// Ack, Log, or CallBack is non-nil depending on Kind.
type Inbound struct {
	Kind     Kind
	Ack      *Ack
	Log      *Log
	CallBack *CallBack
}

// EncodeCall serializes a Call as a tagged-union JSON object.
func EncodeCall(c Call) ([]byte, error) {
	return json.Marshal(struct {
		ID          Kind            `json:"id"`
		CallID      uint64          `json:"call_id"`
		ProcedureID string          `json:"procedure_id"`
		Payload     json.RawMessage `json:"payload"`
	}{
		ID:          KindCall,
		CallID:      c.CallID,
		ProcedureID: c.ProcedureID,
		Payload:     c.Payload,
	})
}

// DecodeInbound sniffs the "id" tag and unmarshals into the matching
// concrete message. An unrecognized tag is reported as an error so the
// caller can log and skip the frame without tearing down the stream.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, err
	}
	switch env.ID {
	case KindAck:
		var a Ack
		if err := json.Unmarshal(raw, &a); err != nil {
			return Inbound{}, err
		}
		return Inbound{Kind: KindAck, Ack: &a}, nil
	case KindLog:
		var l Log
		if err := json.Unmarshal(raw, &l); err != nil {
			return Inbound{}, err
		}
		return Inbound{Kind: KindLog, Log: &l}, nil
	case KindCallBack:
		var cb CallBack
		if err := json.Unmarshal(raw, &cb); err != nil {
			return Inbound{}, err
		}
		return Inbound{Kind: KindCallBack, CallBack: &cb}, nil
	default:
		return Inbound{}, &ErrUnknownKind{Kind: env.ID}
	}
}

// ErrUnknownKind reports a frame whose "id" tag did not match any known
// inbound message kind.
type ErrUnknownKind struct {
	Kind Kind
}

func (e *ErrUnknownKind) Error() string {
	if e.Kind == "" {
		return "wire: missing id field"
	}
	return "wire: unknown id " + string(e.Kind)
}
