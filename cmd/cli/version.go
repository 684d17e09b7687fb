package cli

import (
	"fmt"

	"github.com/devblin/infisical/internal/version"

	"github.com/spf13/cobra"
)

func NewVersionCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "infisical %s (%s, %s)\n", version.GetShortVersion(), info.GoVersion, info.Platform)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table, json)")

	return cmd
}
