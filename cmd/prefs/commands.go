package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"github.com/toon-format/toon-go"

	"github.com/kalambet/prefstate/internal/api"
	"github.com/kalambet/prefstate/internal/config"
	"github.com/kalambet/prefstate/pkg/datastore"
	"github.com/kalambet/prefstate/pkg/preference"
)

// --- get ---

var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print a preference value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		prettyOut, _ := cmd.Flags().GetBool("pretty")

		store, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer store.Close()

		e, ok := preference.Bind(cmd.Context(), store, datastore.RawKey(name)).Lookup()
		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintf(out, "%s (not set)\n", name)
			return nil
		}
		if prettyOut && json.Valid([]byte(e.Value)) {
			formatted := pretty.Pretty([]byte(e.Value))
			if colorFor(out) {
				formatted = pretty.Color(formatted, nil)
			}
			out.Write(formatted)
			return nil
		}
		fmt.Fprintln(out, e.Value)
		return nil
	},
}

func init() {
	getCmd.Flags().Bool("pretty", false, "indent JSON values")
}

// --- set ---

var setCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Store a preference value",
	Long: `Store a preference value.

Examples:
  prefs set theme dark
  prefs set retries 5 --kind int
  prefs set plugins '["git","lsp"]' --kind string_set`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, value := args[0], args[1]
		kindStr, _ := cmd.Flags().GetString("kind")

		kind, err := datastore.ParseKind(kindStr)
		if err != nil {
			return err
		}
		e := datastore.Entry{Kind: kind, Value: value}
		if err := e.Validate(); err != nil {
			return err
		}

		store, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := store.Edit(cmd.Context(), func(m *datastore.MutablePreferences) error {
			return m.SetEntry(name, e)
		})
		if err != nil {
			return err
		}
		printSuccess("Set %s (%s) = %s [version %d]", name, kind, value, p.Version())
		return nil
	},
}

func init() {
	setCmd.Flags().String("kind", string(datastore.KindString), "value kind: int, int64, float32, float64, string, bool, string_set")
}

// --- unset ---

var unsetCmd = &cobra.Command{
	Use:   "unset <name>",
	Short: "Remove a preference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		store, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer store.Close()

		if !store.Snapshot().Contains(name) {
			printWarning("%s was not set", name)
			return nil
		}
		if _, err := store.Edit(cmd.Context(), func(m *datastore.MutablePreferences) error {
			return m.Remove(name)
		}); err != nil {
			return err
		}
		printSuccess("Removed %s", name)
		return nil
	},
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		store, err := openStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer store.Close()

		return writeSnapshot(cmd.OutOrStdout(), store.Snapshot(), format)
	},
}

func init() {
	listCmd.Flags().String("format", "text", "output format: text, json or toon")
}

func writeSnapshot(w io.Writer, p *datastore.Preferences, format string) error {
	switch format {
	case "text":
		color := colorFor(w)
		for _, name := range p.Names() {
			e, _ := p.Entry(name)
			fmt.Fprintln(w, entryLine(name, e, color))
		}
		return nil
	case "json":
		data, err := json.MarshalIndent(api.SnapshotResponse{
			Version: p.Version(),
			ID:      p.ID(),
			Entries: p.Entries(),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	case "toon":
		entries := make(map[string]any, p.Len())
		for name, e := range p.Entries() {
			entries[name] = map[string]any{"kind": string(e.Kind), "value": e.Value}
		}
		data, err := toon.Marshal(map[string]any{
			"version": p.Version(),
			"entries": entries,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text, json or toon)", format)
	}
}

// --- watch ---

var watchCmd = &cobra.Command{
	Use:   "watch <name>",
	Short: "Print a preference every time it changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		count, _ := cmd.Flags().GetInt("count")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx, true)
		if err != nil {
			return err
		}
		defer store.Close()

		stream := preference.Bind(ctx, store, datastore.RawKey(name)).Observe()
		out := cmd.OutOrStdout()
		printStep("watching %s (Ctrl-C to stop)", name)
		for printed := 1; ; printed++ {
			if e := stream.Value(); e.Kind == "" {
				fmt.Fprintf(out, "%s (not set)\n", name)
			} else {
				fmt.Fprintf(out, "%s = %s\n", name, e.Value)
			}
			if count > 0 && printed >= count {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-stream.Changes():
				stream.Next()
			}
		}
	},
}

func init() {
	watchCmd.Flags().Int("count", 0, "exit after printing this many values (0 means never)")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		if f := cfg.StoreFile(); f != "" {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, "store file"), f)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
