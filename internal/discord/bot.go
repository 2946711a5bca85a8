// Package discord connects the component dispatcher to the Discord gateway.
// It turns gateway events into commands and events for the components and
// sends their replies back.
package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/cordhost/internal/component"
	"github.com/keshon/cordhost/pkg/cmd"
	"github.com/keshon/cordhost/pkg/retrylimit"
)

// Options configures a Bot.
type Options struct {
	// Blacklist lists guilds the bot leaves as soon as it sees them.
	Blacklist []string
	// EventTimeout bounds the handling of one gateway event.
	EventTimeout time.Duration
	Limiter      *retrylimit.AdaptiveLimiter
}

// Bot is the gateway adapter.
type Bot struct {
	session    Session
	dispatcher *component.Dispatcher
	opts       Options
	ctx        context.Context
}

// NewBot returns a Bot sending through session.
func NewBot(session Session, d *component.Dispatcher, opts Options) *Bot {
	if opts.EventTimeout <= 0 {
		opts.EventTimeout = 30 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5)
	}
	return &Bot{session: session, dispatcher: d, opts: opts, ctx: context.Background()}
}

// Run opens dg, serves events until ctx is done, then closes it.
func (b *Bot) Run(ctx context.Context, dg *discordgo.Session) error {
	b.ctx = ctx

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onInteractionCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, closing the gateway")
	return nil
}

func (b *Bot) eventContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, b.opts.EventTimeout)
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	ctx, cancel := b.eventContext()
	defer cancel()

	req := &component.Request{
		Caller:    cmd.Caller{UserID: m.Author.ID, Scope: m.GuildID},
		Username:  m.Author.Username,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Line:      m.Content,
	}
	res := b.dispatcher.RouteCommand(ctx, req)
	if res.Reply == nil {
		return
	}
	// Soft: the original message may be gone by now, e.g. a closed ticket.
	if err := b.send(ctx, m.ChannelID, m.SoftReference(), res.Reply); err != nil {
		log.Error().Err(err).Str("request_id", req.ID).Str("channel_id", m.ChannelID).Msg("Failed to send reply")
	}
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	ctx, cancel := b.eventContext()
	defer cancel()

	ready := component.Ready{}
	if r.User != nil {
		ready.UserID, ready.Username = r.User.ID, r.User.Username
	}
	for _, g := range r.Guilds {
		if b.leaveBlacklisted(g.ID) {
			continue
		}
		ready.Guilds = append(ready.Guilds, g.ID)
	}

	res := b.dispatcher.RouteEvent(ctx, component.Event{Kind: component.EventReady, Payload: ready})
	if res.Claim == component.Failed {
		log.Warn().Err(res.Err).Msg("Ready handlers failed")
	}
}

func (b *Bot) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || b.leaveBlacklisted(g.ID) {
		return
	}
	ctx, cancel := b.eventContext()
	defer cancel()

	b.dispatcher.RouteEvent(ctx, component.Event{
		Kind:    component.EventGuildCreate,
		Caller:  cmd.Caller{Scope: g.ID},
		Payload: component.Guild{ID: g.ID, Name: g.Name},
	})
}

func (b *Bot) leaveBlacklisted(guildID string) bool {
	if !slices.Contains(b.opts.Blacklist, guildID) {
		return false
	}
	log.Info().Str("guild_id", guildID).Msg("Leaving blacklisted guild")
	if err := b.session.GuildLeave(guildID); err != nil {
		log.Error().Err(err).Str("guild_id", guildID).Msg("Failed to leave guild")
	}
	return true
}

func (b *Bot) onInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		log.Debug().Int("type", int(i.Type)).Msg("Ignoring interaction")
		return
	}
	ctx, cancel := b.eventContext()
	defer cancel()

	data := i.MessageComponentData()
	ev := component.Event{
		Kind:      component.EventComponentInteraction,
		Caller:    cmd.Caller{Scope: i.GuildID},
		ChannelID: i.ChannelID,
		CustomID:  data.CustomID,
		Values:    data.Values,
	}
	if u := interactionUser(i.Interaction); u != nil {
		ev.Caller.UserID, ev.Username = u.ID, u.Username
	}
	if i.Message != nil {
		ev.MessageID = i.Message.ID
	}

	res := b.dispatcher.RouteEvent(ctx, ev)
	if res.Claim == component.NotClaimed {
		log.Debug().Str("custom_id", data.CustomID).Msg("No component handled the interaction")
		return
	}
	if err := b.respond(ctx, i.Interaction, res.Reply); err != nil {
		log.Error().Err(err).Str("custom_id", data.CustomID).Msg("Failed to respond to interaction")
	}
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// send posts reply in channelID, answering ref when set.
func (b *Bot) send(ctx context.Context, channelID string, ref *discordgo.MessageReference, reply *component.Reply) error {
	msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{Embed(reply)}, Reference: ref}
	return retrylimit.WithRetry(ctx, func() error {
		_, err := b.session.ChannelMessageSendComplex(channelID, msg)
		return err
	}, b.opts.Limiter)
}

// respond answers an interaction. A nil reply only acknowledges it.
func (b *Bot) respond(ctx context.Context, i *discordgo.Interaction, reply *component.Reply) error {
	resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	if reply != nil {
		data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{Embed(reply)}}
		if reply.Ephemeral {
			data.Flags = discordgo.MessageFlagsEphemeral
		}
		resp = &discordgo.InteractionResponse{Type: discordgo.InteractionResponseChannelMessageWithSource, Data: data}
	}
	err := retrylimit.WithRetry(ctx, func() error {
		return b.session.InteractionRespond(i, resp)
	}, b.opts.Limiter)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("interaction expired: %w", err)
	}
	return err
}
