// Package misc holds the small commands every deployment gets: ping, the
// recent command history of a guild and help.
package misc

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/keshon/cordhost/internal/component"
	"github.com/keshon/cordhost/internal/history"
	"github.com/keshon/cordhost/pkg/cmd"
)

const Name = "misc"

// DefaultHistoryCount is how many entries `misc history` shows without a count.
const DefaultHistoryCount = 10

// Settings is the misc section of the components file.
type Settings struct {
	Role     string `yaml:"role"`
	PingRole string `yaml:"ping_role"`
}

// HistorySource is read by the history command.
type HistorySource interface {
	Get(guildID string, n int) []history.Entry
}

// Options configures New.
type Options struct {
	Settings Settings
	History  HistorySource
	// Catalog lists the components whose commands help describes.
	Catalog           func() []component.Component
	Prefix            rune
	InvitePermissions int64
	Auth              cmd.Authorizer
	Middlewares       []component.Middleware
}

// Misc is the component.
type Misc struct {
	*component.Base

	history     HistorySource
	catalog     func() []component.Component
	prefix      rune
	permissions int64
}

func New(opts Options) (*Misc, error) {
	m := &Misc{
		history:     opts.History,
		catalog:     opts.Catalog,
		prefix:      opts.Prefix,
		permissions: opts.InvitePermissions,
	}
	if m.prefix == 0 {
		m.prefix = '!'
	}

	tree, err := cmd.NewTree(&cmd.Group{
		Name:    Name,
		Role:    opts.Settings.Role,
		Help:    "Miscellaneous and test commands",
		Default: "ping",
		Children: []cmd.Node{
			&cmd.Command{Name: "ping", Role: opts.Settings.PingRole, Help: "Answers pong!"},
			&cmd.Command{
				Name: "history",
				Help: "Shows the last commands run in this server",
				Args: []cmd.Arg{{Name: "count", Kind: cmd.Int, Optional: true, Help: "How many, up to 20"}},
			},
			&cmd.Command{Name: "help", Help: "Lists the available commands"},
		},
	})
	if err != nil {
		return nil, err
	}

	router, err := component.NewRouter(Name, tree, opts.Auth, map[string]component.HandlerFunc{
		"misc ping":    m.ping,
		"misc history": m.showHistory,
		"misc help":    m.help,
	}, opts.Middlewares...)
	if err != nil {
		return nil, err
	}

	m.Base = component.NewBase(Name, router)
	m.On(component.EventReady, m.onReady)
	m.On(component.EventGuildCreate, m.onGuildCreate)
	return m, nil
}

func (m *Misc) ping(context.Context, *component.Invocation) (*component.Reply, error) {
	return component.Text("pong!"), nil
}

func (m *Misc) showHistory(_ context.Context, inv *component.Invocation) (*component.Reply, error) {
	guildID := inv.Request.Caller.Scope
	if guildID == "" {
		return component.Errorf("history is only kept for servers"), nil
	}
	if m.history == nil {
		return component.Errorf("history is disabled"), nil
	}

	count := DefaultHistoryCount
	if inv.Match.Args.Has("count") {
		count = int(inv.Match.Args.Int("count"))
	}
	if count < 1 || count > history.Limit {
		return component.Errorf("count must be between 1 and %d", history.Limit), nil
	}

	entries := m.history.Get(guildID, count)
	reply := &component.Reply{Kind: component.ReplyInfo, Title: "Recent commands"}
	if len(entries) == 0 {
		reply.Text = "Nothing yet."
		return reply, nil
	}

	var sb strings.Builder
	for _, e := range entries {
		line := strings.TrimSpace(e.Command + " " + e.Param)
		fmt.Fprintf(&sb, "`%s` %s: %c%s\n", e.Datetime.Format("2006-01-02 15:04"), e.Username, m.prefix, line)
	}
	reply.Text = strings.TrimRight(sb.String(), "\n")
	return reply, nil
}

// help lists every command of every component, one field per component.
func (m *Misc) help(context.Context, *component.Invocation) (*component.Reply, error) {
	reply := &component.Reply{Kind: component.ReplyInfo, Title: "Help"}
	if m.catalog == nil {
		reply.Text = "No commands."
		return reply, nil
	}

	for _, c := range m.catalog() {
		holder, ok := c.(interface{ Tree() *cmd.Tree })
		if !ok || holder.Tree() == nil {
			continue
		}
		value := Usage(holder.Tree(), m.prefix)
		if value == "" {
			continue
		}
		reply.Fields = append(reply.Fields, component.Field{Name: c.Name(), Value: value})
	}
	return reply, nil
}

// Usage renders one line per command of tree.
func Usage(tree *cmd.Tree, prefix rune) string {
	var sb strings.Builder
	for _, id := range tree.Commands() {
		n, _ := tree.Info(id)
		fmt.Fprintf(&sb, "`%c%s`", prefix, n.Usage())
		if n.Help != "" {
			sb.WriteString(" - " + n.Help)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m *Misc) onReady(ctx context.Context, ev component.Event) component.Result {
	ready, ok := ev.Payload.(component.Ready)
	if !ok {
		return component.Pass()
	}
	logger := log.Ctx(ctx)
	logger.Info().Msgf("%s is connected!", ready.Username)
	logger.Info().Str("url", InviteURL(ready.UserID, m.permissions)).Int("guilds", len(ready.Guilds)).Msg("Invitation")
	return component.Done(nil)
}

func (m *Misc) onGuildCreate(ctx context.Context, ev component.Event) component.Result {
	guild, ok := ev.Payload.(component.Guild)
	if !ok {
		return component.Pass()
	}
	log.Ctx(ctx).Info().Str("guild_id", guild.ID).Str("guild", guild.Name).Msg("Guild available")
	return component.Done(nil)
}

// InviteURL returns the OAuth2 URL adding the bot to a server.
func InviteURL(clientID string, permissions int64) string {
	return fmt.Sprintf("https://discord.com/oauth2/authorize?client_id=%s&scope=bot&permissions=%d", clientID, permissions)
}
