// Package tickets is the ticket manager component. Members pick a ticket
// type from a menu and get a private channel with the staff; staff manage
// the ticket types with the categories commands.
package tickets

import (
	"cmp"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/cordhost/internal/component"
	"github.com/keshon/cordhost/internal/state"
	"github.com/keshon/cordhost/pkg/cmd"
)

const Name = "tickets"

// Interaction custom IDs.
const (
	MenuCreateID  = "menu_ticket_create"
	ButtonCloseID = "button_ticket_close"
)

// Settings is the tickets section of the components file.
type Settings struct {
	// AdminRole may configure the component.
	AdminRole string `yaml:"admin_role"`
	// StaffRole sees every ticket and may add members to any of them.
	StaffRole string `yaml:"staff_role"`
	// ArchiveDir receives closed tickets.
	ArchiveDir string `yaml:"archive_dir"`
}

// Options configures New.
type Options struct {
	DataDir     string
	Settings    Settings
	Platform    Platform
	Auth        cmd.Authorizer
	Middlewares []component.Middleware
	OnFlush     func(string, time.Duration, error)
}

// Tickets is the component.
type Tickets struct {
	*component.Base

	store    *state.Store[Data]
	platform Platform
	auth     cmd.Authorizer
	settings Settings
	onFlush  func(string, time.Duration, error)
}

// New opens the component's store and builds its command tree.
func New(opts Options) (*Tickets, error) {
	if opts.Platform == nil {
		return nil, &cmd.ConfigError{Path: Name, Reason: "no platform"}
	}
	s := opts.Settings
	s.AdminRole = cmp.Or(s.AdminRole, "staff")
	s.StaffRole = cmp.Or(s.StaffRole, "staff")
	s.ArchiveDir = cmp.Or(s.ArchiveDir, filepath.Join(opts.DataDir, "archives", "tickets"))

	store, err := state.Open(state.Config{Dir: opts.DataDir, Name: Name, BackupCount: 3, OnFlush: opts.OnFlush}, emptyData)
	if err != nil {
		return nil, err
	}

	t := &Tickets{
		store:    store,
		platform: opts.Platform,
		auth:     opts.Auth,
		settings: s,
		onFlush:  opts.OnFlush,
	}

	tree, err := cmd.NewTree(commands(s)...)
	if err != nil {
		return nil, err
	}
	router, err := component.NewRouter(Name, tree, opts.Auth, map[string]component.HandlerFunc{
		"tickets set_channel": t.setChannel,
		"categories add":      t.addCategory,
		"categories remove":   t.removeCategory,
		"categories list":     t.listCategories,
		"ticket close":        t.closeTicket,
		"ticket add_member":   t.addMember,
	}, opts.Middlewares...)
	if err != nil {
		return nil, err
	}

	t.Base = component.NewBase(Name, router)
	t.On(component.EventReady, t.onReady)
	t.On(component.EventComponentInteraction, t.onInteraction)
	return t, nil
}

func commands(s Settings) []cmd.Node {
	return []cmd.Node{
		&cmd.Group{
			Name: "tickets",
			Role: s.AdminRole,
			Help: "Ticket management",
			Children: []cmd.Node{
				&cmd.Command{
					Name: "set_channel",
					Help: "Posts the ticket menu in a channel",
					Args: []cmd.Arg{{Name: "channel", Kind: cmd.ID, Optional: true, Help: "Text channel, defaults to this one"}},
				},
			},
		},
		&cmd.Group{
			Name: "categories",
			Role: s.AdminRole,
			Help: "Ticket categories",
			Children: []cmd.Node{
				&cmd.Command{
					Name: "add",
					Help: "Adds a ticket category",
					Args: []cmd.Arg{
						{Name: "name", Kind: cmd.String, Help: "Category name"},
						{Name: "category_id", Kind: cmd.ID, Help: "Discord category the tickets are created in"},
						{Name: "prefix", Kind: cmd.String, Help: "Ticket channel prefix"},
						{Name: "hidden", Kind: cmd.Bool, Help: "Hide the category from the menu"},
						{Name: "desc", Kind: cmd.String, Optional: true, Variadic: true, Help: "Description"},
					},
				},
				&cmd.Command{
					Name: "remove",
					Help: "Removes a ticket category",
					Args: []cmd.Arg{cmd.Required("name", cmd.String)},
				},
				&cmd.Command{Name: "list", Help: "Lists the ticket categories"},
			},
		},
		&cmd.Group{
			Name: "ticket",
			Help: "Commands inside a ticket",
			Children: []cmd.Node{
				&cmd.Command{Name: "close", Help: "Closes the current ticket"},
				&cmd.Command{
					Name: "add_member",
					Help: "Adds someone to the current ticket",
					Args: []cmd.Arg{cmd.Required("who", cmd.ID)},
				},
			},
		},
	}
}

// Close flushes and closes the store.
func (t *Tickets) Close() error {
	return t.store.Close()
}

// Snapshot returns a copy of the current state.
func (t *Tickets) Snapshot() Data {
	var out Data
	_ = t.store.View(func(d Data) error {
		out.Menu = d.Menu
		for _, c := range d.Categories {
			c.Tickets = slices.Clone(c.Tickets)
			out.Categories = append(out.Categories, c)
		}
		return nil
	})
	return out
}

func (t *Tickets) onReady(ctx context.Context, _ component.Event) component.Result {
	if err := t.refreshMenu(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to refresh the ticket menu, forgetting it")
		if err := t.store.Update(func(d *Data) error { d.Menu = nil; return nil }); err != nil {
			return component.Fail(err)
		}
	}
	return component.Done(nil)
}

func (t *Tickets) onInteraction(ctx context.Context, ev component.Event) component.Result {
	switch ev.CustomID {
	case MenuCreateID:
		return t.onMenuCreate(ctx, ev)
	case ButtonCloseID:
		if err := t.closeChannel(ctx, ev.ChannelID); err != nil {
			return component.Result{Claim: component.Failed, Reply: ephemeral(component.Errorf("%s", userMessage(err))), Err: err}
		}
		return component.Done(nil)
	default:
		return component.Pass()
	}
}

func (t *Tickets) onMenuCreate(ctx context.Context, ev component.Event) component.Result {
	if ev.Caller.Scope == "" {
		return component.Fail(errors.New("ticket menu used outside of a guild"))
	}
	if len(ev.Values) == 0 {
		return component.Fail(errors.New("no ticket category selected"))
	}

	var category Category
	found := false
	_ = t.store.View(func(d Data) error {
		if i := d.find(ev.Values[0]); i >= 0 {
			category, found = d.Categories[i], true
		}
		return nil
	})
	if !found {
		err := errors.New("category " + ev.Values[0] + " does not exist")
		return component.Result{Claim: component.Failed, Reply: ephemeral(component.Errorf("%s", err)), Err: err}
	}

	channelID, err := t.createTicket(ctx, ev, category)
	if err != nil {
		reply := component.Errorf("could not create the ticket")
		if errors.Is(err, ErrStaffRoleMissing) {
			reply = component.Errorf("could not create the ticket, the `%s` role does not exist", t.settings.StaffRole)
		}
		return component.Result{Claim: component.Failed, Reply: ephemeral(reply), Err: err}
	}
	return component.Done(ephemeral(component.Success("Ticket created: <#%s>", channelID)))
}

func ephemeral(r *component.Reply) *component.Reply {
	r.Ephemeral = true
	return r
}
