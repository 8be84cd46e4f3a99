// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptwrap/internal/config"
	"github.com/invowk/scriptwrap/internal/issue"
)

func newExplainCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "explain [issue]",
		Short: "Explain an issue reported by scriptwrap",
		Long: `Explain an issue reported by scriptwrap.

Without an argument, lists the known issues. Error messages name the issue
to explain, e.g. 'scriptwrap explain 2'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, i := range issue.Values() {
					fmt.Fprintf(app.stdout, "%s  %s\n", CmdStyle.Render(fmt.Sprintf("%2s", i.ID())), i.Title())
				}
				return nil
			}

			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("issue must be a number: %q", args[0])
			}
			entry := issue.Get(issue.ID(n))
			if entry == nil {
				return fmt.Errorf("unknown issue %d (run 'scriptwrap explain' for the list)", n)
			}

			cfg := app.loadConfig(cmd.Context())
			rendered, err := entry.Render(glamourStyle(cfg.UI.ColorScheme))
			if err != nil {
				return fmt.Errorf("render issue: %w", err)
			}
			fmt.Fprint(app.stdout, rendered)
			return nil
		},
	}
}

// glamourStyle maps the configured color scheme to a glamour style name.
func glamourStyle(cs config.ColorScheme) string {
	switch cs {
	case config.ColorSchemeDark, config.ColorSchemeLight:
		return string(cs)
	default:
		return "auto"
	}
}
