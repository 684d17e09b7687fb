package cli

import (
	"fmt"
	"time"

	"github.com/devblin/infisical/pkg/domain"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func NewAuthCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored integration auths",
	}

	cmd.AddCommand(NewAuthAddCommand(app))
	cmd.AddCommand(NewAuthAccessCommand(app))

	return cmd
}

type authAddOptions struct {
	workspaceID  string
	integration  string
	teamID       string
	url          string
	accessID     string
	accessToken  string
	refreshToken string
	expiresIn    time.Duration
	interactive  bool
}

func NewAuthAddCommand(app *App) *cobra.Command {
	opts := &authAddOptions{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store a new integration auth",
		Long: `Store an integration auth with its tokens encrypted at rest. Missing values
are prompted for when --interactive is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.interactive {
				if err := promptAuthAdd(opts); err != nil {
					return err
				}
			}

			if err := opts.validate(); err != nil {
				return err
			}

			container, err := app.Container()
			if err != nil {
				return err
			}

			deps, err := container.BuildIntegrationDependencies(cmd.Context())
			if err != nil {
				return err
			}

			params := domain.CreateIntegrationAuthParams{
				WorkspaceID:  opts.workspaceID,
				Integration:  domain.IntegrationType(opts.integration),
				TeamID:       opts.teamID,
				URL:          opts.url,
				AccessID:     opts.accessID,
				AccessToken:  opts.accessToken,
				RefreshToken: opts.refreshToken,
			}

			if opts.expiresIn > 0 {
				expiresAt := time.Now().Add(opts.expiresIn)
				params.AccessExpiresAt = &expiresAt
			}

			auth, err := deps.AuthManager.CreateIntegrationAuth(cmd.Context(), params)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, okStyle.Render("✅ Integration auth stored"))
			fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("ID:"), auth.ID)
			fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("Integration:"), auth.Integration)
			fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("Expires at:"), formatExpiry(auth.AccessExpiresAt))

			return nil
		},
	}

	cmd.Flags().StringVar(&opts.workspaceID, "workspace", "", "Workspace ID")
	cmd.Flags().StringVar(&opts.integration, "integration", "", "Integration (azure-key-vault, heroku, gitlab, gcp-secret-manager)")
	cmd.Flags().StringVar(&opts.teamID, "team-id", "", "Provider team ID")
	cmd.Flags().StringVar(&opts.url, "url", "", "Provider URL")
	cmd.Flags().StringVar(&opts.accessID, "access-id", "", "Provider access ID")
	cmd.Flags().StringVar(&opts.accessToken, "access-token", "", "Current access token")
	cmd.Flags().StringVar(&opts.refreshToken, "refresh-token", "", "Refresh token")
	cmd.Flags().DurationVar(&opts.expiresIn, "expires-in", 0, "Time until the current access token expires")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Prompt for missing values")

	return cmd
}

func (o *authAddOptions) validate() error {
	if o.workspaceID == "" {
		return fmt.Errorf("--workspace is required")
	}

	if !domain.IntegrationType(o.integration).IsKnown() {
		return fmt.Errorf("unsupported integration %q", o.integration)
	}

	if o.refreshToken == "" {
		return fmt.Errorf("--refresh-token is required")
	}

	return nil
}

func promptAuthAdd(opts *authAddOptions) error {
	if opts.workspaceID == "" {
		if err := huh.NewInput().Title("Workspace ID").Value(&opts.workspaceID).Run(); err != nil {
			return err
		}
	}

	if opts.integration == "" {
		options := make([]huh.Option[string], 0, len(domain.IntegrationTypes))
		for _, integration := range domain.IntegrationTypes {
			options = append(options, huh.NewOption(string(integration), string(integration)))
		}

		if err := huh.NewSelect[string]().Title("Integration").Options(options...).Value(&opts.integration).Run(); err != nil {
			return err
		}
	}

	if opts.accessToken == "" {
		if err := huh.NewInput().Title("Access token").EchoMode(huh.EchoModePassword).Value(&opts.accessToken).Run(); err != nil {
			return err
		}
	}

	if opts.refreshToken == "" {
		if err := huh.NewInput().Title("Refresh token").EchoMode(huh.EchoModePassword).Value(&opts.refreshToken).Run(); err != nil {
			return err
		}
	}

	return nil
}

func NewAuthAccessCommand(app *App) *cobra.Command {
	var showToken bool

	cmd := &cobra.Command{
		Use:   "access <integration-auth-id>",
		Short: "Show a valid access token, refreshing it when expired",
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

			access, err := deps.AccessManager.GetIntegrationAuthAccess(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Expires at:"), formatExpiry(access.AccessExpiresAt))
			if access.AccessID != "" {
				fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Access ID:"), access.AccessID)
			}
			if showToken {
				fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Access token:"), access.AccessToken)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showToken, "show-token", false, "Print the access token")

	return cmd
}
