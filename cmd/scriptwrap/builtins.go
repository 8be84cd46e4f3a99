// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/invowk/scriptwrap/internal/runtime"
)

func newBuiltinsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "builtins",
		Short: "List the shell builtins available to scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := tablewriter.NewWriter(app.stdout)
			table.Header("Builtin", "Usage", "Description")
			for _, b := range runtime.Builtins() {
				table.Append(b.Name, b.Usage, b.Help)
			}
			return table.Render()
		},
	}
}
