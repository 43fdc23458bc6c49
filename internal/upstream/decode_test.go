package upstream

import "testing"

func TestDecodePolicy(t *testing.T) {
	invalid := []byte("caf\xc3\xa9 \xff\xfebar")

	tests := []struct {
		policy DecodePolicy
		want   string
	}{
		{DecodeRaw, "caf\xc3\xa9 \xff\xfebar"},
		{DecodeIgnore, "café bar"},
		{DecodeReplace, "café ��bar"},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			got, err := tt.policy.Decode(invalid)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDecodePolicy_ValidInputUnchanged(t *testing.T) {
	valid := []byte(`<toplevel><CompleteSuggestion><suggestion data="über"/></CompleteSuggestion></toplevel>`)
	for _, p := range []DecodePolicy{DecodeRaw, DecodeIgnore, DecodeReplace} {
		got, err := p.Decode(valid)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", p, err)
		}
		if got != string(valid) {
			t.Errorf("%s: valid input was modified: %q", p, got)
		}
	}
}

func TestDecodePolicy_Unknown(t *testing.T) {
	if _, err := DecodePolicy(42).Decode([]byte("x")); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestParseDecodePolicy(t *testing.T) {
	for _, want := range []DecodePolicy{DecodeRaw, DecodeIgnore, DecodeReplace} {
		got, err := ParseDecodePolicy(" " + want.String() + " ")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", want, err)
		}
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
	if _, err := ParseDecodePolicy("latin1"); err == nil {
		t.Error("expected error for unknown policy name")
	}
}
