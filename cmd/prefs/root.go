package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kalambet/prefstate/internal/config"
)

var (
	noColor    bool
	driverFlag string
	pathFlag   string

	// cfg is loaded before every command runs.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:           "prefs",
	Short:         "Read, write and watch typed preferences",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		statusOut = cmd.ErrOrStderr()
		if !cmd.Flags().Changed("no-color") {
			noColor = os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stderr.Fd()))
		}

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if driverFlag != "" {
			loaded.Store.Driver = driverFlag
		}
		if pathFlag != "" {
			loaded.Store.Path = pathFlag
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "store driver: sqlite, yaml or memory (overrides store.driver)")
	rootCmd.PersistentFlags().StringVar(&pathFlag, "path", "", "store data directory (overrides store.path)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(getCmd, setCmd, unsetCmd, listCmd, watchCmd, serveCmd, configCmd)
}
