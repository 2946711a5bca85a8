package discord

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/cordhost/internal/components/tickets"
	"github.com/keshon/cordhost/pkg/retrylimit"
)

// ownerTopic prefixes the topic of a ticket channel; the owner's ID follows.
const ownerTopic = "Ticket opened by "

// ticketAllow is what the owner and the staff may do in a ticket.
const ticketAllow = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory

// maxArchived bounds how many messages are archived per ticket.
const maxArchived = 1000

// TicketPlatform performs the ticket workflow on Discord.
type TicketPlatform struct {
	session Session
	roles   *RoleProvider
	limiter *retrylimit.AdaptiveLimiter
}

var _ tickets.Platform = (*TicketPlatform)(nil)

func NewTicketPlatform(s Session, lim *retrylimit.AdaptiveLimiter) *TicketPlatform {
	return &TicketPlatform{session: s, roles: NewRoleProvider(s), limiter: lim}
}

func (p *TicketPlatform) do(ctx context.Context, fn func() error) error {
	return retrylimit.WithRetry(ctx, fn, p.limiter)
}

func menuEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Open a ticket",
		Description: "Pick the kind of ticket you need below. A private channel will be created for you and the staff.",
		Color:       EmbedColor,
	}
}

// menuComponents renders the select menu. Discord rejects an empty select,
// so no options means no components.
func menuComponents(options []tickets.MenuOption) []discordgo.MessageComponent {
	if len(options) == 0 {
		return []discordgo.MessageComponent{}
	}
	menu := discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    tickets.MenuCreateID,
		Placeholder: "Choose a ticket type",
	}
	for _, o := range options {
		menu.Options = append(menu.Options, discordgo.SelectMenuOption{Label: o.Label, Value: o.Value, Description: o.Description})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}}}
}

func (p *TicketPlatform) SendMenu(ctx context.Context, channelID string, options []tickets.MenuOption) (string, error) {
	var msg *discordgo.Message
	err := p.do(ctx, func() (err error) {
		msg, err = p.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{menuEmbed()},
			Components: menuComponents(options),
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (p *TicketPlatform) UpdateMenu(ctx context.Context, loc tickets.MenuLocation, options []tickets.MenuOption) error {
	components := menuComponents(options)
	embeds := []*discordgo.MessageEmbed{menuEmbed()}
	return p.do(ctx, func() error {
		_, err := p.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			ID:         loc.MessageID,
			Channel:    loc.ChannelID,
			Embeds:     &embeds,
			Components: &components,
		})
		return err
	})
}

func (p *TicketPlatform) DeleteMessage(ctx context.Context, loc tickets.MenuLocation) error {
	return p.do(ctx, func() error {
		return p.session.ChannelMessageDelete(loc.ChannelID, loc.MessageID)
	})
}

func (p *TicketPlatform) channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	var ch *discordgo.Channel
	err := p.do(ctx, func() (err error) {
		ch, err = p.session.Channel(channelID)
		return err
	})
	return ch, err
}

func (p *TicketPlatform) ParentID(ctx context.Context, channelID string) (string, error) {
	ch, err := p.channel(ctx, channelID)
	if err != nil {
		return "", err
	}
	return ch.ParentID, nil
}

func (p *TicketPlatform) TicketOwner(ctx context.Context, channelID string) (string, error) {
	ch, err := p.channel(ctx, channelID)
	if err != nil {
		return "", err
	}
	owner, ok := strings.CutPrefix(ch.Topic, ownerTopic)
	if !ok {
		return "", nil
	}
	return strings.Trim(owner, "<@!>"), nil
}

// CreateTicket creates a channel only the owner and the staff role can
// see, then pins a greeting with a close button.
func (p *TicketPlatform) CreateTicket(ctx context.Context, spec tickets.TicketSpec) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		// @everyone shares the guild's ID.
		{ID: spec.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: spec.OwnerID, Type: discordgo.PermissionOverwriteTypeMember, Allow: ticketAllow},
	}
	if spec.StaffRole != "" {
		staffID, err := p.roles.roleID(spec.GuildID, spec.StaffRole)
		if err != nil {
			return "", err
		}
		if staffID == "" {
			return "", fmt.Errorf("%w: %q in guild %s", tickets.ErrStaffRoleMissing, spec.StaffRole, spec.GuildID)
		}
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{ID: staffID, Type: discordgo.PermissionOverwriteTypeRole, Allow: ticketAllow})
	}

	var ch *discordgo.Channel
	err := p.do(ctx, func() (err error) {
		ch, err = p.session.GuildChannelCreateComplex(spec.GuildID, discordgo.GuildChannelCreateData{
			Name:                 channelName(spec.Name),
			Type:                 discordgo.ChannelTypeGuildText,
			Topic:                ownerTopic + "<@" + spec.OwnerID + ">",
			ParentID:             spec.CategoryID,
			PermissionOverwrites: overwrites,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("creating ticket channel: %w", err)
	}

	if err := p.greet(ctx, ch.ID, spec.OwnerID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("channel_id", ch.ID).Msg("Failed to greet the ticket owner")
	}
	return ch.ID, nil
}

func (p *TicketPlatform) greet(ctx context.Context, channelID, ownerID string) error {
	var msg *discordgo.Message
	err := p.do(ctx, func() (err error) {
		msg, err = p.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Content: "<@" + ownerID + ">",
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "Ticket opened",
				Description: "Describe your request, the staff will answer here. Close the ticket once you are done.",
				Color:       EmbedColor,
			}},
			Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Close", Style: discordgo.DangerButton, CustomID: tickets.ButtonCloseID},
			}}},
		})
		return err
	})
	if err != nil {
		return err
	}
	return p.do(ctx, func() error {
		return p.session.ChannelMessagePin(channelID, msg.ID)
	})
}

// channelName lowercases name and replaces what Discord does not accept in
// a text channel name.
func channelName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		if r == ' ' {
			return '-'
		}
		return r
	}, name)
}

func (p *TicketPlatform) AllowMember(ctx context.Context, channelID, userID string) error {
	return p.do(ctx, func() error {
		return p.session.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember, ticketAllow, 0)
	})
}

// Messages returns the channel's messages, oldest first.
func (p *TicketPlatform) Messages(ctx context.Context, channelID string) ([]tickets.Message, error) {
	var all []*discordgo.Message
	before := ""
	for len(all) < maxArchived {
		var page []*discordgo.Message
		err := p.do(ctx, func() (err error) {
			page, err = p.session.ChannelMessages(channelID, 100, before, "", "")
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("reading messages of %s: %w", channelID, err)
		}
		all = append(all, page...)
		if len(page) < 100 {
			break
		}
		before = page[len(page)-1].ID
	}
	slices.Reverse(all)

	out := make([]tickets.Message, 0, len(all))
	for _, m := range all {
		msg := tickets.Message{ID: m.ID, Content: m.Content, Timestamp: m.Timestamp}
		if m.Author != nil {
			msg.AuthorID, msg.Author = m.Author.ID, m.Author.Username
		}
		out = append(out, msg)
	}
	return out, nil
}

func (p *TicketPlatform) DeleteChannel(ctx context.Context, channelID string) error {
	return p.do(ctx, func() error {
		_, err := p.session.ChannelDelete(channelID)
		return err
	})
}

func (p *TicketPlatform) Username(ctx context.Context, userID string) (string, error) {
	var u *discordgo.User
	err := p.do(ctx, func() (err error) {
		u, err = p.session.User(userID)
		return err
	})
	if err != nil {
		return "", err
	}
	return u.Username, nil
}
