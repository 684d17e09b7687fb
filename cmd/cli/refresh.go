package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewRefreshCommand(app *App) *cobra.Command {
	var showToken bool

	cmd := &cobra.Command{
		Use:   "refresh <integration-auth-id>",
		Short: "Exchange the refresh token of an integration auth now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := app.Container()
			if err != nil {
				return err
			}

			deps, err := container.BuildIntegrationDependencies(cmd.Context())
			if err != nil {
				return err
			}

			access, err := deps.AccessManager.RefreshIntegrationAuthAccess(cmd.Context(), args[0])
			if err != nil {
				log.Error().Err(err).Str("integration_auth_id", args[0]).Msg("Refresh failed")
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, okStyle.Render("✅ Access token refreshed"))
			fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("Expires at:"), formatExpiry(access.AccessExpiresAt))
			if showToken {
				fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("Access token:"), access.AccessToken)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showToken, "show-token", false, "Print the new access token")

	return cmd
}
