// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/invowk/scriptwrap/internal/channel"
	"github.com/invowk/scriptwrap/pkg/types"
)

func sampleCollected() channel.Collected {
	return channel.Collected{
		Scalars: []channel.Scalar{{Key: "result", Value: "ok"}},
		Arrays: []channel.Array{{
			Name:     "grid",
			Dims:     []int{2},
			Value:    []any{"a", "b"},
			Received: 2,
			Complete: true,
		}},
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"table", "json", "yaml"} {
		if got, err := parseFormat(valid); err != nil || string(got) != valid {
			t.Errorf("parseFormat(%q) = %q, %v", valid, got, err)
		}
	}
	if _, err := parseFormat("xml"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("parseFormat(xml) error = %v, want ErrInvalidFormat", err)
	}
}

func TestRenderRecords_JSON(t *testing.T) {
	t.Parallel()

	v := newRecordsView(sampleCollected())
	code := types.ExitCode(3)
	v.ExitCode = &code

	var buf bytes.Buffer
	if err := renderRecords(&buf, v, formatJSON); err != nil {
		t.Fatalf("renderRecords() error = %v", err)
	}

	var got struct {
		ExitCode int `json:"exit_code"`
		Scalars  []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"scalars"`
		Arrays []struct {
			Name     string `json:"name"`
			Dims     []int  `json:"dims"`
			Value    []any  `json:"value"`
			Complete bool   `json:"complete"`
		} `json:"arrays"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if got.ExitCode != 3 {
		t.Errorf("exit_code = %d, want 3", got.ExitCode)
	}
	if len(got.Scalars) != 1 || got.Scalars[0].Key != "result" || got.Scalars[0].Value != "ok" {
		t.Errorf("scalars = %+v", got.Scalars)
	}
	if len(got.Arrays) != 1 || got.Arrays[0].Name != "grid" || len(got.Arrays[0].Value) != 2 || !got.Arrays[0].Complete {
		t.Errorf("arrays = %+v", got.Arrays)
	}
}

func TestRenderRecords_YAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := renderRecords(&buf, newRecordsView(sampleCollected()), formatYAML); err != nil {
		t.Fatalf("renderRecords() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"key: result", "value: ok", "name: grid", "complete: true"} {
		if !strings.Contains(out, want) {
			t.Errorf("YAML output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "exit_code") {
		t.Errorf("YAML output has an exit code without one being set:\n%s", out)
	}
}

func TestRenderRecords_Table(t *testing.T) {
	t.Parallel()

	c := sampleCollected()
	c.Arrays = append(c.Arrays, channel.Array{Name: "partial", Dims: []int{3}, Value: []any{"x", "", ""}, Received: 1})
	v := newRecordsView(c)
	code := types.ExitCode(0)
	v.ExitCode = &code

	var buf bytes.Buffer
	if err := renderRecords(&buf, v, formatTable); err != nil {
		t.Fatalf("renderRecords() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"result", "ok", "grid", "array(2)", "(incomplete)", "Exit code:"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderRecords_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := renderRecords(&buf, newRecordsView(channel.Collected{}), formatTable); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No records") {
		t.Errorf("output = %q, want No records", buf.String())
	}
}
