package cli

import (
	"fmt"
	"io"

	"github.com/devblin/infisical/internal/config"

	"github.com/spf13/cobra"
)

func NewStatusCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the loaded configuration",
		Long:  `Display which backends are configured and which integration providers have client credentials, without printing any secret.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := app.Container()
			if err != nil {
				return err
			}

			printStatus(cmd.OutOrStdout(), container.GetConfig())

			return nil
		},
	}

	return cmd
}

func printStatus(out io.Writer, cfg *config.Config) {
	if err := cfg.RequireServer(); err != nil {
		fmt.Fprintln(out, errorStyle.Render("❌ Server is not ready: "+err.Error()))
	} else {
		fmt.Fprintln(out, okStyle.Render("✅ Server is configured"))
	}

	fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("Environment:"), cfg.Environment)
	fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("HTTP address:"), cfg.HTTPAddress)
	fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("Store:"), cfg.StoreDriver)
	fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("Query cache:"), cfg.CacheDriver)
	fmt.Fprintf(out, "   %s %s, window %s\n", labelStyle.Render("Refresh:"), cfg.RefreshSchedule, cfg.RefreshWindow)
	fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("API URL:"), cfg.APIBaseURL)
	fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("Secrets API:"), readiness(cfg.RequireSecretsAPI() == nil))
	fmt.Fprintf(out, "   %s %s\n", labelStyle.Render("Error tracking:"), readiness(cfg.SentryDSN != ""))

	fmt.Fprintln(out, labelStyle.Render("   Providers:"))
	providers := []struct {
		name       string
		configured bool
	}{
		{"azure-key-vault", cfg.ClientIDAzure != "" && cfg.ClientSecretAzure != ""},
		{"heroku", cfg.ClientSecretHeroku != ""},
		{"gitlab", cfg.ClientIDGitLab != "" && cfg.ClientSecretGitLab != ""},
		{"gcp-secret-manager", cfg.ClientIDGCPSecretManager != "" && cfg.ClientSecretGCPSecretManager != ""},
	}
	for _, p := range providers {
		fmt.Fprintf(out, "     %-20s %s\n", p.name, readiness(p.configured))
	}
}

func readiness(ok bool) string {
	if ok {
		return okStyle.Render("configured")
	}

	return dimStyle.Render("not configured")
}
