package diffusion

import (
	"encoding/json"
	"testing"
)

func TestOpt_RawValue(t *testing.T) {
	cases := []struct {
		name string
		opt  Opt
		want string
		ok   bool
	}{
		{"int", IntOpt(7, false), "7", true},
		{"float", FloatOpt(1.5, false), "1.5", true},
		{"string", StringOpt("abc", false), "abc", true},
		{"empty int", Opt{Kind: KindInt}, "", false},
	}
	for _, c := range cases {
		got, ok := c.opt.RawValue()
		if ok != c.ok || got != c.want {
			t.Errorf("%s: RawValue() = (%q, %v), want (%q, %v)", c.name, got, ok, c.want, c.ok)
		}
	}
}

func TestTemplate_CloneDoesNotAliasReservedInjection(t *testing.T) {
	base := Template{"steps": IntOpt(20, false)}
	clone := base.Clone()
	clone[ReservedHFAPIKey] = StringOpt("secret", true)

	if _, present := base[ReservedHFAPIKey]; present {
		t.Fatalf("mutating the clone leaked into the original template")
	}
	if len(base) != 1 {
		t.Fatalf("original template size changed: %d", len(base))
	}
}

func TestOpt_JSONTagging(t *testing.T) {
	raw, err := json.Marshal(IntOpt(3, true))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["kind"] != "Int" {
		t.Fatalf("kind = %v, want Int", decoded["kind"])
	}
	if decoded["value"] != float64(3) {
		t.Fatalf("value = %v, want 3", decoded["value"])
	}
	if decoded["hidden"] != true {
		t.Fatalf("hidden = %v, want true", decoded["hidden"])
	}
}
