package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keshon/cordhost/pkg/cmd"
)

type treeNode struct {
	Component string `json:"component"`
	Path      string `json:"path"`
	Usage     string `json:"usage"`
	Group     bool   `json:"group"`
	Role      string `json:"role,omitempty"`
	Help      string `json:"help,omitempty"`
}

type treeHolder interface {
	Tree() *cmd.Tree
}

func newTreeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the command tree of every component",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, h, err := opts.host()
			if err != nil {
				return err
			}
			defer h.Close()

			var nodes []treeNode
			var sb strings.Builder
			for _, comp := range h.Dispatcher.Components() {
				holder, ok := comp.(treeHolder)
				if !ok || holder.Tree() == nil {
					continue
				}
				fmt.Fprintf(&sb, "%s\n", comp.Name())
				holder.Tree().Walk(func(n cmd.NodeInfo, depth int) {
					nodes = append(nodes, treeNode{
						Component: comp.Name(),
						Path:      strings.Join(n.Path, " "),
						Usage:     n.Usage(),
						Group:     n.Group,
						Role:      n.Role,
						Help:      n.Help,
					})
					line := string(cfg.Prefix()) + n.Usage()
					if n.Group {
						line = n.Name + "/"
					}
					fmt.Fprintf(&sb, "%s%s", strings.Repeat("  ", depth+1), line)
					if n.Role != "" {
						fmt.Fprintf(&sb, " [role: %s]", n.Role)
					}
					if n.Help != "" {
						fmt.Fprintf(&sb, "  # %s", n.Help)
					}
					sb.WriteByte('\n')
				})
			}

			if opts.Format == "json" {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(nodes)
			}
			_, err = fmt.Fprint(c.OutOrStdout(), sb.String())
			return err
		},
	}
}
