// Package diffusion carries the plain tagged-union option schema the
// worker's templates are built from. It implements no procedure logic of
// its own — that lives in internal/rpc — it exists so a template value has
// somewhere to be typed and cloned before being sent over the wire.
package diffusion

import (
	"encoding/json"
	"fmt"
)

// ReservedHFAPIKey and ReservedOutputDirectory name the two template
// options the executor always injects before dispatching a run, mirroring
// CondaExecutor's insertion of the same two keys in the original worker
// bridge. A worker may ignore either if its template doesn't declare them.
const (
	ReservedHFAPIKey        = "HF_API_KEY"
	ReservedOutputDirectory = "OUTPUT_DIRECTORY"
)

// Kind discriminates the tagged union carried by an option's "kind" field.
type Kind string

const (
	KindInt    Kind = "Int"
	KindFloat  Kind = "Float"
	KindString Kind = "String"
)

// IntRange and FloatRange bound an option's accepted value.
type IntRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type FloatRange struct {
	Start float32 `json:"start"`
	End   float32 `json:"end"`
}

// Opt is one entry of a diffusion model's option template: a kind tag plus
// exactly one of the typed sub-structs populated according to Kind. The
// worker's wire schema is an internally-tagged enum (`#[serde(tag =
// "kind")]` on the Rust side) where the Int and Float variants both reuse
// the field names "range"/"value" and only the String variant adds
// "possible_values"/"max_length" alongside its own "value" — so Opt can't
// be a single flat struct with per-kind JSON tags without colliding field
// names. MarshalJSON/UnmarshalJSON below dispatch on Kind to produce and
// consume exactly that shape.
type Opt struct {
	Kind Kind `json:"kind"`

	IntRange   *IntRange
	IntValue   *int64
	FloatRange *FloatRange
	FloatValue *float32

	PossibleValues []string
	MaxLength      *string
	StringValue    *string

	Hidden bool
}

// IntOpt builds an integer-valued option.
func IntOpt(value int64, hidden bool) Opt {
	v := value
	return Opt{Kind: KindInt, IntValue: &v, Hidden: hidden}
}

// FloatOpt builds a float-valued option.
func FloatOpt(value float32, hidden bool) Opt {
	v := value
	return Opt{Kind: KindFloat, FloatValue: &v, Hidden: hidden}
}

// StringOpt builds a string-valued option, as used for the reserved
// HF_API_KEY / OUTPUT_DIRECTORY injections.
func StringOpt(value string, hidden bool) Opt {
	v := value
	return Opt{Kind: KindString, StringValue: &v, Hidden: hidden}
}

// RawValue renders the option's populated value as a string, or ("", false)
// if the option carries no value, matching the original's into_raw_value.
func (o Opt) RawValue() (string, bool) {
	switch o.Kind {
	case KindInt:
		if o.IntValue == nil {
			return "", false
		}
		return formatInt(*o.IntValue), true
	case KindFloat:
		if o.FloatValue == nil {
			return "", false
		}
		return formatFloat(*o.FloatValue), true
	case KindString:
		if o.StringValue == nil {
			return "", false
		}
		return *o.StringValue, true
	default:
		return "", false
	}
}

// intOptWire, floatOptWire, and stringOptWire are the per-kind wire shapes
// Opt's MarshalJSON/UnmarshalJSON dispatch between, matching the field
// names of the original engine's IntOpt/FloatOpt/StringOpt structs exactly.
type intOptWire struct {
	Kind   Kind      `json:"kind"`
	Range  *IntRange `json:"range,omitempty"`
	Value  *int64    `json:"value,omitempty"`
	Hidden bool      `json:"hidden"`
}

type floatOptWire struct {
	Kind   Kind        `json:"kind"`
	Range  *FloatRange `json:"range,omitempty"`
	Value  *float32    `json:"value,omitempty"`
	Hidden bool        `json:"hidden"`
}

type stringOptWire struct {
	Kind           Kind     `json:"kind"`
	PossibleValues []string `json:"possible_values,omitempty"`
	MaxLength      *string  `json:"max_length,omitempty"`
	Value          *string  `json:"value,omitempty"`
	Hidden         bool     `json:"hidden"`
}

// MarshalJSON renders o using the field names of its Kind's wire shape.
func (o Opt) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case KindInt:
		return json.Marshal(intOptWire{Kind: KindInt, Range: o.IntRange, Value: o.IntValue, Hidden: o.Hidden})
	case KindFloat:
		return json.Marshal(floatOptWire{Kind: KindFloat, Range: o.FloatRange, Value: o.FloatValue, Hidden: o.Hidden})
	case KindString:
		return json.Marshal(stringOptWire{
			Kind:           KindString,
			PossibleValues: o.PossibleValues,
			MaxLength:      o.MaxLength,
			Value:          o.StringValue,
			Hidden:         o.Hidden,
		})
	default:
		return nil, fmt.Errorf("diffusion: marshal opt: unknown kind %q", o.Kind)
	}
}

// UnmarshalJSON parses o according to the kind tag, populating only the
// fields that kind's wire shape carries.
func (o *Opt) UnmarshalJSON(data []byte) error {
	var tag struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("diffusion: unmarshal opt kind: %w", err)
	}
	switch tag.Kind {
	case KindInt:
		var w intOptWire
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("diffusion: unmarshal int opt: %w", err)
		}
		*o = Opt{Kind: KindInt, IntRange: w.Range, IntValue: w.Value, Hidden: w.Hidden}
	case KindFloat:
		var w floatOptWire
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("diffusion: unmarshal float opt: %w", err)
		}
		*o = Opt{Kind: KindFloat, FloatRange: w.Range, FloatValue: w.Value, Hidden: w.Hidden}
	case KindString:
		var w stringOptWire
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("diffusion: unmarshal string opt: %w", err)
		}
		*o = Opt{
			Kind:           KindString,
			PossibleValues: w.PossibleValues,
			MaxLength:      w.MaxLength,
			StringValue:    w.Value,
			Hidden:         w.Hidden,
		}
	default:
		return fmt.Errorf("diffusion: unmarshal opt: unknown kind %q", tag.Kind)
	}
	return nil
}

// Template is the full set of named options for one diffusion model.
type Template map[string]Opt

// Clone returns a shallow copy of the template whose top-level map can be
// mutated (e.g. to inject reserved options) without aliasing the caller's.
func (t Template) Clone() Template {
	out := make(Template, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
