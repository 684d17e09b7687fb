package cli

import (
	"fmt"
	"os"

	"github.com/devblin/infisical/internal/config"
	"github.com/devblin/infisical/internal/initialization"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// App carries state shared by all sub-commands. The container is built on
// first use so commands that need no config, like version, never load it.
type App struct {
	configFile string
	container  *initialization.Container
}

func (a *App) Container() (*initialization.Container, error) {
	if a.container != nil {
		return a.container, nil
	}

	cfg, err := config.Load(config.LoadOptions{ConfigFile: a.configFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a.container = initialization.NewContainer(cfg)

	return a.container, nil
}

func NewRootCommand() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "infisical",
		Short: "Infisical integrations and secrets CLI",
		Long: `Infisical keeps third-party integration access tokens fresh and reads
end-to-end encrypted project secrets from the Infisical API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return err
			}

			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app.container == nil {
				return nil
			}

			return app.container.Close(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&app.configFile, "config", "", "Path to a config file (default: search ./config.yaml, ./config, $HOME/.infisical)")

	rootCmd.AddCommand(NewServeCommand(app))
	rootCmd.AddCommand(NewRefreshCommand(app))
	rootCmd.AddCommand(NewAuthCommand(app))
	rootCmd.AddCommand(NewSecretsCommand(app))
	rootCmd.AddCommand(NewKeysCommand())
	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewStatusCommand(app))

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
