// Package cli implements the cordhost-cli commands used to inspect a
// deployment offline: persisted component state, command trees and dry-run
// matching.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/keshon/cordhost/internal/app"
	"github.com/keshon/cordhost/internal/components/tickets"
	"github.com/keshon/cordhost/internal/config"
	"github.com/keshon/cordhost/internal/logging"
	"github.com/keshon/cordhost/pkg/cmd"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format   string // "json" | "text"
	LogLevel string
	// Env replaces the process environment when set. Used by tests.
	Env map[string]string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = &RootOptions{}
	}

	root := &cobra.Command{
		Use:   "cordhost-cli",
		Short: "Inspect a cordhost deployment",
		Long:  "Reads the same configuration as the bot and inspects component state and commands without connecting to Discord.",
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			_, err := logging.Setup(logging.Options{Level: opts.LogLevel, Pretty: true, Console: c.ErrOrStderr()})
			return err
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level")

	root.AddCommand(newStateCommand(opts))
	root.AddCommand(newTreeCommand(opts))
	root.AddCommand(newMatchCommand(opts))
	return root
}

func (o *RootOptions) config() (*config.Config, error) {
	if o.Env != nil {
		return config.FromEnv(o.Env)
	}
	return config.Load()
}

// offline stands in for Discord. Commands here only match lines, they
// never run handlers.
type offline struct{ tickets.Platform }

// host assembles the components with roles granted statically.
func (o *RootOptions) host(roles ...string) (*config.Config, *app.Host, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	h, err := app.New(cfg, app.Deps{Platform: offline{}, Roles: cmd.StaticRoles(roles)})
	if err != nil {
		return nil, nil, err
	}
	return cfg, h, nil
}
