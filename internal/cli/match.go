package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keshon/cordhost/internal/component"
	"github.com/keshon/cordhost/pkg/cmd"
)

// MatchResult is the outcome of a dry-run.
type MatchResult struct {
	Matched   bool           `json:"matched"`
	Component string         `json:"component,omitempty"`
	Command   string         `json:"command,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Failure   string         `json:"failure,omitempty"`
	Message   string         `json:"message,omitempty"`
}

func newMatchCommand(opts *RootOptions) *cobra.Command {
	var (
		roles []string
		user  string
		guild string
	)
	c := &cobra.Command{
		Use:   "match <line>",
		Short: "Resolve a command line without running it",
		Long: `Resolve a command line against the components' trees the way the bot
would, with the given roles granted, and print the command and bound
arguments. Handlers are not run. The prefix is optional.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cfg, h, err := opts.host(roles...)
			if err != nil {
				return err
			}
			defer h.Close()

			line := strings.Join(args, " ")
			line = strings.TrimPrefix(line, string(cfg.Prefix()))
			caller := cmd.Caller{UserID: user, Scope: guild}

			res, err := dryRun(c.Context(), h.Dispatcher.Components(), cmd.Split(line), h.Auth, caller)
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			out := c.OutOrStdout()
			switch {
			case res.Matched:
				fmt.Fprintf(out, "%s: %s\n", res.Component, res.Command)
				for _, k := range slices.Sorted(maps.Keys(res.Args)) {
					fmt.Fprintf(out, "  %s = %v\n", k, res.Args[k])
				}
			case res.Failure != "":
				fmt.Fprintf(out, "%s: %s (%s)\n", res.Component, res.Message, res.Failure)
			default:
				fmt.Fprintln(out, "not matched")
			}
			return nil
		},
	}
	c.Flags().StringArrayVar(&roles, "role", nil, "role granted to the caller (repeatable)")
	c.Flags().StringVar(&user, "user", "0", "caller user ID")
	c.Flags().StringVar(&guild, "guild", "0", "guild ID, empty for a direct message")
	return c
}

// dryRun offers tokens to each tree in registration order; the first tree
// that does not answer ErrNotMatched decides.
func dryRun(ctx context.Context, comps []component.Component, tokens []string, auth cmd.Authorizer, caller cmd.Caller) (MatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, comp := range comps {
		holder, ok := comp.(treeHolder)
		if !ok || holder.Tree() == nil {
			continue
		}
		tree := holder.Tree()
		m, err := tree.Match(ctx, cmd.Root, tokens, auth, caller)
		if errors.Is(err, cmd.ErrNotMatched) {
			continue
		}
		var me *cmd.MatchError
		switch {
		case errors.As(err, &me):
			return MatchResult{Component: comp.Name(), Failure: me.Kind.String(), Message: me.Error()}, nil
		case err != nil:
			return MatchResult{}, err
		}

		info, _ := tree.Info(m.Command)
		res := MatchResult{Matched: true, Component: comp.Name(), Command: m.Name(), Args: map[string]any{}}
		for _, a := range info.Args {
			if v, ok := m.Args.Lookup(a.Name); ok {
				res.Args[a.Name] = v
			}
		}
		return res, nil
	}
	return MatchResult{}, nil
}
