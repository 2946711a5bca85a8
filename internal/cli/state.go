package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/keshon/cordhost/internal/state"
)

func newStateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state <component>",
		Short: "Print the persisted state of a component",
		Long: `Print the snapshot a component keeps in DATA_DIR, e.g. "state tickets".
"state history" prints the command history kept in HISTORY_PATH.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			dir := cfg.DataDir
			if args[0] == "history" {
				dir = cfg.HistoryPath
			}
			if _, err := os.Stat(filepath.Join(dir, args[0]+".json")); err != nil {
				return fmt.Errorf("no state for %s: %w", args[0], err)
			}

			store, err := state.Open(state.Config{Dir: dir, Name: args[0]}, func() json.RawMessage { return nil })
			if err != nil {
				return err
			}
			defer store.Close()

			return store.View(func(raw json.RawMessage) error {
				var out bytes.Buffer
				if opts.Format == "json" {
					if err := json.Compact(&out, raw); err != nil {
						return err
					}
				} else if err := json.Indent(&out, raw, "", "  "); err != nil {
					return err
				}
				out.WriteByte('\n')
				_, err := c.OutOrStdout().Write(out.Bytes())
				return err
			})
		},
	}
}
