package discord

import (
	"context"
	"strconv"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/cordhost/internal/component"
	"github.com/keshon/cordhost/internal/components/misc"
	"github.com/keshon/cordhost/internal/components/tickets"
	"github.com/keshon/cordhost/pkg/cmd"
)

const guildID = "500"

type fixture struct {
	session *fakeSession
	bot     *Bot
	tickets *tickets.Tickets
}

// newFixture wires misc and tickets to a fake session the way main does.
func newFixture(t *testing.T, miscSettings misc.Settings, blacklist ...string) *fixture {
	t.Helper()
	s := newFakeSession()
	s.roles = []*discordgo.Role{{ID: "r1", Name: "Staff"}, {ID: "r2", Name: "Pingers"}}
	s.members["1"] = &discordgo.Member{Roles: []string{"r1"}}
	s.members["7"] = &discordgo.Member{}
	s.channels["42"] = &discordgo.Channel{ID: "42", GuildID: guildID}

	auth := cmd.NewGate(NewRoleProvider(s))
	d := component.NewDispatcher('!')

	m, err := misc.New(misc.Options{Settings: miscSettings, Auth: auth, Catalog: d.Components})
	require.NoError(t, err)
	require.NoError(t, d.Register(m))

	tk, err := tickets.New(tickets.Options{DataDir: t.TempDir(), Platform: NewTicketPlatform(s, nil), Auth: auth})
	require.NoError(t, err)
	t.Cleanup(func() { tk.Close() })
	require.NoError(t, d.Register(tk))

	return &fixture{session: s, bot: NewBot(s, d, Options{Blacklist: blacklist}), tickets: tk}
}

func (f *fixture) say(userID, channelID, content string) {
	f.bot.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m" + userID,
		GuildID:   guildID,
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: userID, Username: "user" + userID},
	}})
}

func (f *fixture) click(userID, channelID, customID string, values ...string) {
	f.bot.onInteractionCreate(nil, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   guildID,
		ChannelID: channelID,
		Member:    &discordgo.Member{User: &discordgo.User{ID: userID, Username: "alice"}},
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID, Values: values},
	}})
}

func (f *fixture) lastSent(t *testing.T, channelID string) *discordgo.MessageSend {
	t.Helper()
	sent := f.session.sent[channelID]
	require.NotEmpty(t, sent)
	return sent[len(sent)-1]
}

func TestBot_MessageCreate(t *testing.T) {
	f := newFixture(t, misc.Settings{})

	f.say("7", "42", "!misc ping")
	msg := f.lastSent(t, "42")
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "pong!", msg.Embeds[0].Description)
	assert.Equal(t, EmbedColor, msg.Embeds[0].Color)
	require.NotNil(t, msg.Reference)
	assert.Equal(t, "m7", msg.Reference.MessageID)
}

func TestBot_IgnoresOtherMessages(t *testing.T) {
	f := newFixture(t, misc.Settings{})

	f.say("7", "42", "misc ping")
	f.say("7", "42", "!unknown")
	f.bot.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "42",
		Content:   "!misc ping",
		Author:    &discordgo.User{ID: "9", Bot: true},
	}})
	assert.Empty(t, f.session.sent["42"])
}

func TestBot_RoleChecksUseGuildRoles(t *testing.T) {
	f := newFixture(t, misc.Settings{PingRole: "pingers"})

	f.say("7", "42", "!misc ping")
	msg := f.lastSent(t, "42")
	assert.Equal(t, ErrorColor, msg.Embeds[0].Color)
	assert.Equal(t, "you need the `pingers` role to use `misc ping`", msg.Embeds[0].Description)

	f.session.members["7"].Roles = []string{"r2"}
	f.say("7", "42", "!misc ping")
	assert.Equal(t, "pong!", f.lastSent(t, "42").Embeds[0].Description)
}

func TestBot_ReadyLeavesBlacklistedGuilds(t *testing.T) {
	f := newFixture(t, misc.Settings{}, "666")

	f.bot.onReady(nil, &discordgo.Ready{
		User:   &discordgo.User{ID: "42", Username: "cordhost"},
		Guilds: []*discordgo.Guild{{ID: guildID}, {ID: "666"}},
	})
	assert.Equal(t, []string{"666"}, f.session.left)

	f.bot.onGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "666"}})
	f.bot.onGuildCreate(nil, &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "501"}})
	assert.Equal(t, []string{"666", "666"}, f.session.left)
}

func TestBot_TicketWorkflow(t *testing.T) {
	f := newFixture(t, misc.Settings{})
	s := f.session

	f.say("7", "42", "!categories add Support 111 SUP false")
	assert.Equal(t, ErrorColor, f.lastSent(t, "42").Embeds[0].Color, "members are not staff")

	f.say("1", "42", `!categories add Support 111 SUP false "General help"`)
	assert.Equal(t, SuccessColor, f.lastSent(t, "42").Embeds[0].Color)

	f.say("1", "42", "!tickets set_channel <#900>")
	menu := f.lastSent(t, "900")
	require.Len(t, menu.Components, 1)
	row := menu.Components[0].(discordgo.ActionsRow)
	sel := row.Components[0].(discordgo.SelectMenu)
	assert.Equal(t, tickets.MenuCreateID, sel.CustomID)
	assert.Equal(t, []discordgo.SelectMenuOption{{Label: "Support", Value: "Support", Description: "General help"}}, sel.Options)

	// A member picks the category.
	f.click("7", "900", tickets.MenuCreateID, "Support")
	require.Len(t, s.created, 1)
	created := s.created[0]
	assert.Equal(t, "sup-alice", created.Name)
	assert.Equal(t, "111", created.ParentID)
	require.Len(t, created.PermissionOverwrites, 3)
	assert.Equal(t, "r1", created.PermissionOverwrites[2].ID)

	require.Len(t, s.responses, 1)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, s.responses[0].Data.Flags)

	ticket := f.tickets.Snapshot().Categories[0].Tickets
	require.Len(t, ticket, 1)
	channel := ticket[0]
	assert.Len(t, s.pinned, 1)

	platform := NewTicketPlatform(s, nil)
	owner, err := platform.TicketOwner(context.Background(), channel)
	require.NoError(t, err)
	assert.Equal(t, "7", owner)

	// The owner adds a friend.
	f.say("7", channel, "!ticket add_member <@8>")
	assert.Equal(t, []string{"8"}, s.perms[channel])

	// The close button archives and deletes the channel.
	s.history[channel] = []*discordgo.Message{
		{ID: "3", Content: "thanks", Author: &discordgo.User{ID: "7", Username: "alice"}},
		{ID: "2", Content: "hello", Author: &discordgo.User{ID: "7", Username: "alice"}},
	}
	f.click("7", channel, tickets.ButtonCloseID)
	_, exists := s.channels[channel]
	assert.False(t, exists)
	require.Len(t, s.responses, 2)
	assert.Equal(t, discordgo.InteractionResponseDeferredMessageUpdate, s.responses[1].Type)
	assert.Empty(t, f.tickets.Snapshot().Categories[0].Tickets)
}

func TestBot_TicketNeedsStaffRole(t *testing.T) {
	f := newFixture(t, misc.Settings{})
	s := f.session

	f.say("1", "42", "!categories add Support 111 SUP false")
	f.say("1", "42", "!tickets set_channel <#900>")

	// The staff role is deleted after the menu went up.
	s.roles = []*discordgo.Role{{ID: "r2", Name: "Pingers"}}
	f.click("7", "900", tickets.MenuCreateID, "Support")

	assert.Empty(t, s.created, "no ticket only its owner can see")
	assert.Empty(t, f.tickets.Snapshot().Categories[0].Tickets)
	require.Len(t, s.responses, 1)
	data := s.responses[0].Data
	assert.Equal(t, discordgo.MessageFlagsEphemeral, data.Flags)
	assert.Equal(t, ErrorColor, data.Embeds[0].Color)
	assert.Contains(t, data.Embeds[0].Description, "the `staff` role does not exist")

	platform := NewTicketPlatform(s, nil)
	_, err := platform.CreateTicket(context.Background(), tickets.TicketSpec{GuildID: guildID, Name: "x", OwnerID: "7", StaffRole: "staff"})
	assert.ErrorIs(t, err, tickets.ErrStaffRoleMissing)
	assert.Empty(t, s.created)
}

func TestBot_UnclaimedInteractionIsNotAnswered(t *testing.T) {
	f := newFixture(t, misc.Settings{})
	f.click("7", "42", "someone_else")
	assert.Empty(t, f.session.responses)
}

func TestRoleProvider(t *testing.T) {
	s := newFakeSession()
	s.roles = []*discordgo.Role{{ID: "r1", Name: "Staff"}}
	s.members["1"] = &discordgo.Member{Roles: []string{"r1"}}
	p := NewRoleProvider(s)

	ok, err := p.HasRole(context.Background(), "staff", guildID, "1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.HasRole(context.Background(), "admins", guildID, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.HasRole(context.Background(), "staff", guildID, "404")
	assert.Error(t, err)
}

func TestTicketPlatform_MessagesArePaged(t *testing.T) {
	s := newFakeSession()
	for i := 250; i > 0; i-- {
		s.history["c"] = append(s.history["c"], &discordgo.Message{ID: "id" + strconv.Itoa(i), Content: strconv.Itoa(i)})
	}
	p := NewTicketPlatform(s, nil)

	msgs, err := p.Messages(context.Background(), "c")
	require.NoError(t, err)
	require.Len(t, msgs, 250)
	assert.Equal(t, "1", msgs[0].Content)
	assert.Equal(t, "250", msgs[249].Content)
}

func TestEmbed(t *testing.T) {
	e := Embed(&component.Reply{
		Kind:   component.ReplySuccess,
		Title:  "Category created",
		Fields: []component.Field{{Name: "Support", Value: "*No description*"}},
	})
	assert.Equal(t, SuccessColor, e.Color)
	assert.Equal(t, "Category created", e.Title)
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "Support", e.Fields[0].Name)
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "sup-jane-doe", channelName("SUP-Jane Doe"))
}
