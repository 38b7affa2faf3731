package commands

import (
	"os"

	"github.com/phrazzld/arcana/internal/app"
	"github.com/phrazzld/arcana/internal/config"
	"github.com/phrazzld/arcana/internal/platform/logger"
	"github.com/spf13/cobra"
)

var (
	client  *app.Client
	verbose bool
	noDelay bool
)

// Execute runs the root command.
func Execute() error {
	defer func() {
		if client != nil {
			client.Close()
		}
	}()
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "arcana",
		Short:         "Tarot readings with a coin economy",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.Server.LogLevel = "warn"
			if verbose {
				cfg.Server.LogLevel = "debug"
			}
			if noDelay {
				cfg.Client.DrawLatency = 0
				cfg.Client.AdDuration = 0
			}

			log, err := logger.SetupWithWriter(cfg.Server, os.Stderr)
			if err != nil {
				return err
			}
			client, err = app.New(cmd.Context(), cfg, log, app.Options{})
			return err
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	root.PersistentFlags().BoolVar(&noDelay, "no-delay", false, "skip draw and ad animations")

	root.AddCommand(
		spreadsCmd(), readCmd(), playCmd(),
		balanceCmd(), adCmd(), bannerCmd(), syncCmd(),
		storeCmd(), buyCmd(), restoreCmd(),
		levelCmd(), languageCmd(), historyCmd(), transactionsCmd(),
	)
	return root
}
