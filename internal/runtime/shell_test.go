// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"testing"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"

	"github.com/invowk/scriptwrap/internal/exitguard"
)

func TestTranslate(t *testing.T) {
	t.Parallel()

	other := errors.New("boom")
	req := &exitguard.ExitRequest{Code: 5}

	tests := []struct {
		name     string
		err      error
		exited   bool
		wantReq  int // -1 means no exit request
		wantStat int // -1 means no status error
	}{
		{name: "success", wantReq: -1, wantStat: -1},
		{name: "exit builtin zero", exited: true, wantReq: 0, wantStat: -1},
		{name: "exit builtin status", err: interp.ExitStatus(3), exited: true, wantReq: 3, wantStat: -1},
		{name: "exit request passes through", err: req, wantReq: 5, wantStat: -1},
		{name: "status", err: interp.ExitStatus(7), wantReq: -1, wantStat: 7},
		{name: "other", err: other, wantReq: -1, wantStat: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := translate("frag", tt.err, tt.exited)
			r, isReq := exitguard.AsExitRequest(got)
			switch {
			case tt.wantReq >= 0 && (!isReq || int(r.Code) != tt.wantReq):
				t.Errorf("translate() = %v, want exit request %d", got, tt.wantReq)
			case tt.wantReq < 0 && isReq:
				t.Errorf("translate() = %v, want no exit request", got)
			}

			var status *StatusError
			switch {
			case tt.wantStat >= 0 && (!errors.As(got, &status) || status.Status != tt.wantStat):
				t.Errorf("translate() = %v, want status %d", got, tt.wantStat)
			case tt.wantStat < 0 && errors.As(got, &status):
				t.Errorf("translate() = %v, want no status error", got)
			}
		})
	}

	if got := translate("frag", other, false); !errors.Is(got, other) {
		t.Errorf("translate() = %v, want it to wrap %v", got, other)
	}
	if translate("frag", nil, false) != nil {
		t.Error("translate() of a clean run should be nil")
	}
}

func TestAssignment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"plain string", "abc", "v=abc"},
		{"spaces", "a b", "v='a b'"},
		{"integer", 42, "v=42"},
		{"logic", true, "v=true"},
		{"array", []any{"x", "y z", 3}, "v=(x 'y z' 3)"},
		{"empty array", []any{}, "v=()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := assignment("v", tt.value)
			if err != nil {
				t.Fatalf("assignment() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("assignment() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCanonical(t *testing.T) {
	t.Parallel()

	if a, _ := canonical(int64(3)); a != "s:3" {
		t.Errorf("canonical(3) = %q, want s:3", a)
	}
	s, _ := canonical("3")
	if i, _ := canonical(3); s != i {
		t.Errorf("canonical(\"3\") = %q, canonical(3) = %q, want equal", s, i)
	}
	x, _ := canonical([]any{"a", "b"})
	y, _ := canonical([]string{"a", "b"})
	if x != y || x == s {
		t.Errorf("canonical arrays = %q and %q", x, y)
	}
	if _, ok := canonical([]any{[]any{1}, []any{2}}); ok {
		t.Error("canonical() should reject nested arrays")
	}
	if _, ok := canonical([]any{[]any{1}, 2}); ok {
		t.Error("canonical() should reject jagged arrays")
	}
}

func TestFromShell(t *testing.T) {
	t.Parallel()

	if v, ok := fromShell(expand.Variable{Set: true, Kind: expand.String, Str: "x"}); !ok || v != "x" {
		t.Errorf("fromShell(string) = %v, %v", v, ok)
	}
	v, ok := fromShell(expand.Variable{Set: true, Kind: expand.Indexed, List: []string{"a", "b"}})
	if list, _ := v.([]any); !ok || len(list) != 2 || list[1] != "b" {
		t.Errorf("fromShell(indexed) = %v, %v", v, ok)
	}
	if _, ok := fromShell(expand.Variable{Set: true, Kind: expand.Associative, Map: map[string]string{"k": "v"}}); ok {
		t.Error("fromShell() should skip associative arrays")
	}
}
