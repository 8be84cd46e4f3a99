// SPDX-License-Identifier: MPL-2.0

package channel

import (
	"encoding/base64"
	"reflect"
	"testing"

	"github.com/invowk/scriptwrap/internal/marshal"
)

func TestScalarLine(t *testing.T) {
	t.Parallel()

	line := ScalarLine("result", "ok")
	want := "_D_0_M_" + base64.StdEncoding.EncodeToString([]byte("result_D_0_M_ok"))
	if line != want {
		t.Errorf("ScalarLine() = %q, want %q", line, want)
	}

	rec := ParseLine(line + "\n")
	if rec.Kind != KindScalar || rec.Key != "result" || rec.Value != "ok" {
		t.Errorf("ParseLine() = %+v, want scalar result=ok", rec)
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	b64 := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name string
		line string
		want Kind
	}{
		{"plain text", "hello world", KindText},
		{"empty", "", KindText},
		{"scalar", ScalarLine("k", "v"), KindScalar},
		{"scalar value holding sentinel", ScalarLine("k", "a_D_0_M_b"), KindScalar},
		{"scalar prefix with junk", "_D_0_M_not base64!", KindText},
		{"scalar without inner sentinel", "_D_0_M_" + b64("just text"), KindText},
		{"array header", ArrayHeaderLine("m", []int{2, 2}), KindArrayHeader},
		{"array leaf", ArrayLeafLine(marshal.NewLeaf([]int{1, 0}, 3)), KindArrayLeaf},
		{"array prefix with junk", "_A_0_R_%%%", KindText},
		{"array without inner sentinel", "_A_0_R_" + b64("nothing here"), KindText},
		{"array header with bad dims", "_A_0_R_" + b64("m_A_0_R_x,y"), KindText},
		{"array leaf with bad category", "_A_0_R_" + b64("0_A_0_R_Blob_A_0_R_1"), KindText},
		{"sentinel mid-line", "note: _D_0_M_" + b64("k_D_0_M_v"), KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := ParseLine(tt.line)
			if rec.Kind != tt.want {
				t.Errorf("ParseLine(%q).Kind = %v, want %v", tt.line, rec.Kind, tt.want)
			}
			if rec.Raw != tt.line {
				t.Errorf("ParseLine(%q).Raw = %q", tt.line, rec.Raw)
			}
		})
	}
}

func TestParseLine_ArrayHeader(t *testing.T) {
	t.Parallel()

	rec := ParseLine(ArrayHeaderLine("grid", []int{3, 4}))
	if rec.Name != "grid" || !reflect.DeepEqual(rec.Dims, []int{3, 4}) {
		t.Errorf("ParseLine() header = %q %v, want grid [3 4]", rec.Name, rec.Dims)
	}
}

func TestParseLine_LeafValueWithSentinel(t *testing.T) {
	t.Parallel()

	leaf := marshal.NewLeaf([]int{0}, "x_A_0_R_y")
	rec := ParseLine(ArrayLeafLine(leaf))
	if rec.Kind != KindArrayLeaf {
		t.Fatalf("ParseLine().Kind = %v, want array-leaf", rec.Kind)
	}
	if rec.Leaf.Value != "x_A_0_R_y" {
		t.Errorf("leaf value = %q, want %q", rec.Leaf.Value, "x_A_0_R_y")
	}
}
