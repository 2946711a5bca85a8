package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/cordhost/internal/component"
	"github.com/keshon/cordhost/internal/state"
)

// errNotTicket is returned when a ticket command runs in another channel.
var errNotTicket = errors.New("this channel is not a ticket")

func (t *Tickets) setChannel(ctx context.Context, inv *component.Invocation) (*component.Reply, error) {
	var old *MenuLocation
	var options []MenuOption
	_ = t.store.View(func(d Data) error {
		old = d.Menu
		options = d.menuOptions()
		return nil
	})

	if old != nil {
		if err := t.platform.DeleteMessage(ctx, *old); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("Failed to delete the previous ticket menu")
		}
	}

	channelID := inv.Request.ChannelID
	if inv.Match.Args.Has("channel") {
		channelID = inv.Match.Args.ID("channel")
	}

	messageID, err := t.platform.SendMenu(ctx, channelID, options)
	if err != nil {
		return nil, fmt.Errorf("sending the ticket menu: %w", err)
	}

	err = t.store.Update(func(d *Data) error {
		d.Menu = &MenuLocation{ChannelID: channelID, MessageID: messageID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ephemeral(component.Success("Ticket channel set to <#%s>", channelID)), nil
}

func (t *Tickets) addCategory(ctx context.Context, inv *component.Invocation) (*component.Reply, error) {
	args := inv.Match.Args
	category := Category{
		Name:    args.Text("name"),
		ID:      args.ID("category_id"),
		Prefix:  args.Text("prefix"),
		Hidden:  args.Bool("hidden"),
		Desc:    args.Text("desc"),
		Tickets: []string{},
	}

	exists := false
	err := t.store.Update(func(d *Data) error {
		if d.find(category.Name) >= 0 {
			exists = true
			return nil
		}
		d.Categories = append(d.Categories, category)
		return nil
	})
	if exists {
		return component.Errorf("category already exists"), nil
	}
	if err != nil {
		return nil, err
	}

	t.refreshMenuLogged(ctx)
	return categoryReply("Category created", category), nil
}

func (t *Tickets) removeCategory(ctx context.Context, inv *component.Invocation) (*component.Reply, error) {
	name := inv.Match.Args.Text("name")

	var removed *Category
	err := t.store.Update(func(d *Data) error {
		i := d.find(name)
		if i < 0 {
			return nil
		}
		c := d.Categories[i]
		removed = &c
		d.Categories = append(d.Categories[:i], d.Categories[i+1:]...)
		return nil
	})
	if removed == nil {
		return component.Errorf("category does not exist"), nil
	}
	if err != nil {
		return nil, err
	}

	t.refreshMenuLogged(ctx)
	return categoryReply("Category removed", *removed), nil
}

func (t *Tickets) listCategories(_ context.Context, _ *component.Invocation) (*component.Reply, error) {
	reply := &component.Reply{Kind: component.ReplyInfo, Title: "Ticket categories"}
	_ = t.store.View(func(d Data) error {
		for _, c := range d.Categories {
			reply.Fields = append(reply.Fields, component.Field{Name: c.Name, Value: c.description()})
		}
		return nil
	})
	if len(reply.Fields) == 0 {
		reply.Text = "No categories yet."
	}
	return reply, nil
}

func (t *Tickets) closeTicket(ctx context.Context, inv *component.Invocation) (*component.Reply, error) {
	if err := t.closeChannel(ctx, inv.Request.ChannelID); err != nil {
		if errors.Is(err, errNotTicket) {
			return component.Errorf("%s", err), nil
		}
		return nil, err
	}
	// The channel is gone, there is nowhere to reply.
	return nil, nil
}

func (t *Tickets) addMember(ctx context.Context, inv *component.Invocation) (*component.Reply, error) {
	req := inv.Request
	if req.Caller.Scope == "" {
		return component.Errorf("this command is not available in direct messages"), nil
	}

	ok, err := t.isTicket(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return component.Errorf("%s", errNotTicket), nil
	}

	allowed, err := t.mayManage(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return component.Errorf("you are not allowed to add members to this ticket"), nil
	}

	who := inv.Match.Args.ID("who")
	if err := t.platform.AllowMember(ctx, req.ChannelID, who); err != nil {
		return component.Errorf("could not add <@%s>: %v", who, err), nil
	}
	return component.Success("<@%s> has been added.", who), nil
}

// mayManage reports whether the caller is staff or owns the ticket.
func (t *Tickets) mayManage(ctx context.Context, inv *component.Invocation) (bool, error) {
	caller := inv.Request.Caller
	if t.auth != nil {
		staff, err := t.auth.Allow(ctx, t.settings.StaffRole, caller)
		if err != nil {
			return false, err
		}
		if staff {
			return true, nil
		}
	}
	owner, err := t.platform.TicketOwner(ctx, inv.Request.ChannelID)
	if err != nil {
		return false, err
	}
	return owner != "" && owner == caller.UserID, nil
}

func categoryReply(title string, c Category) *component.Reply {
	return &component.Reply{
		Kind:   component.ReplySuccess,
		Title:  title,
		Fields: []component.Field{{Name: c.Name, Value: c.description()}},
	}
}

// refreshMenu rewrites the menu options, if a menu was posted.
func (t *Tickets) refreshMenu(ctx context.Context) error {
	var loc *MenuLocation
	var options []MenuOption
	_ = t.store.View(func(d Data) error {
		loc = d.Menu
		options = d.menuOptions()
		return nil
	})
	if loc == nil {
		return nil
	}
	return t.platform.UpdateMenu(ctx, *loc, options)
}

func (t *Tickets) refreshMenuLogged(ctx context.Context) {
	if err := t.refreshMenu(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to refresh the ticket menu")
	}
}

func (t *Tickets) isTicket(ctx context.Context, channelID string) (bool, error) {
	parent, err := t.platform.ParentID(ctx, channelID)
	if err != nil {
		return false, fmt.Errorf("looking up channel %s: %w", channelID, err)
	}
	if parent == "" {
		return false, nil
	}
	found := false
	_ = t.store.View(func(d Data) error {
		found = d.byDiscordCategory(parent) >= 0
		return nil
	})
	return found, nil
}

// closeChannel archives a ticket channel and deletes it.
func (t *Tickets) closeChannel(ctx context.Context, channelID string) error {
	ok, err := t.isTicket(ctx, channelID)
	if err != nil {
		return err
	}
	if !ok {
		return errNotTicket
	}
	if err := t.archive(ctx, channelID); err != nil {
		return fmt.Errorf("archiving the ticket: %w", err)
	}
	if err := t.platform.DeleteChannel(ctx, channelID); err != nil {
		return fmt.Errorf("deleting the ticket: %w", err)
	}
	return t.store.Update(func(d *Data) error {
		for i := range d.Categories {
			d.Categories[i].Tickets = remove(d.Categories[i].Tickets, channelID)
		}
		return nil
	})
}

// Archive is a closed ticket as written to the archive directory.
type Archive struct {
	ChannelID string    `json:"channel_id"`
	ClosedAt  time.Time `json:"closed_at"`
	Messages  []Message `json:"messages"`
}

func (t *Tickets) archive(ctx context.Context, channelID string) error {
	messages, err := t.platform.Messages(ctx, channelID)
	if err != nil {
		return err
	}
	store, err := state.Open(state.Config{Dir: t.settings.ArchiveDir, Name: channelID, OnFlush: t.onFlush}, func() Archive { return Archive{} })
	if err != nil {
		return err
	}
	err = store.Update(func(a *Archive) error {
		*a = Archive{ChannelID: channelID, ClosedAt: time.Now().UTC(), Messages: messages}
		return nil
	})
	return errors.Join(err, store.Close())
}

func (t *Tickets) createTicket(ctx context.Context, ev component.Event, c Category) (string, error) {
	username := ev.Username
	if username == "" {
		name, err := t.platform.Username(ctx, ev.Caller.UserID)
		if err != nil {
			name = ev.Caller.UserID
		}
		username = name
	}

	channelID, err := t.platform.CreateTicket(ctx, TicketSpec{
		GuildID:    ev.Caller.Scope,
		CategoryID: c.ID,
		Name:       c.Prefix + "-" + username,
		OwnerID:    ev.Caller.UserID,
		StaffRole:  t.settings.StaffRole,
	})
	if err != nil {
		return "", err
	}

	err = t.store.Update(func(d *Data) error {
		if i := d.find(c.Name); i >= 0 {
			d.Categories[i].Tickets = append(d.Categories[i].Tickets, channelID)
		}
		return nil
	})
	if err != nil {
		// The channel exists; only the bookkeeping failed.
		log.Ctx(ctx).Error().Err(err).Str("channel_id", channelID).Msg("Failed to record the ticket")
	}
	return channelID, nil
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// userMessage returns the text shown for a failed close.
func userMessage(err error) string {
	if errors.Is(err, errNotTicket) {
		return errNotTicket.Error()
	}
	return "could not close the ticket"
}
