// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/invowk/scriptwrap/internal/channel"
	"github.com/invowk/scriptwrap/internal/marshal"
	"github.com/invowk/scriptwrap/pkg/types"
)

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

// ErrInvalidFormat is returned for an unknown --format value.
var ErrInvalidFormat = errors.New("invalid output format")

type (
	outputFormat string

	// recordsView is the rendered form of collected records.
	recordsView struct {
		ExitCode *types.ExitCode `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
		Scalars  []scalarView    `json:"scalars" yaml:"scalars"`
		Arrays   []arrayView     `json:"arrays" yaml:"arrays"`
	}

	scalarView struct {
		Key   string `json:"key" yaml:"key"`
		Value string `json:"value" yaml:"value"`
	}

	arrayView struct {
		Name     string `json:"name" yaml:"name"`
		Dims     []int  `json:"dims" yaml:"dims"`
		Value    any    `json:"value" yaml:"value"`
		Complete bool   `json:"complete" yaml:"complete"`
	}
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(s); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w %q (valid: table, json, yaml)", ErrInvalidFormat, s)
	}
}

func newRecordsView(c channel.Collected) recordsView {
	v := recordsView{Scalars: []scalarView{}, Arrays: []arrayView{}}
	for _, s := range c.Scalars {
		v.Scalars = append(v.Scalars, scalarView{Key: s.Key, Value: s.Value})
	}
	for _, a := range c.Arrays {
		v.Arrays = append(v.Arrays, arrayView{Name: a.Name, Dims: a.Dims, Value: a.Value, Complete: a.Complete})
	}
	return v
}

func renderRecords(w io.Writer, v recordsView, format outputFormat) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return renderTable(w, v)
	}
}

func renderTable(w io.Writer, v recordsView) error {
	if len(v.Scalars) == 0 && len(v.Arrays) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("No records"))
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("Kind", "Name", "Value")
		for _, s := range v.Scalars {
			table.Append("scalar", s.Key, s.Value)
		}
		for _, a := range v.Arrays {
			kind := "array(" + marshal.JoinInts(a.Dims) + ")"
			if !a.Complete {
				kind += " (incomplete)"
			}
			table.Append(kind, a.Name, fmt.Sprint(a.Value))
		}
		if err := table.Render(); err != nil {
			return fmt.Errorf("render table: %w", err)
		}
	}
	if v.ExitCode != nil {
		style := SuccessStyle
		if !v.ExitCode.IsSuccess() {
			style = ErrorStyle
		}
		fmt.Fprintf(w, "\n%s %s\n", CmdStyle.Render("Exit code:"), style.Render(v.ExitCode.String()))
	}
	return nil
}
