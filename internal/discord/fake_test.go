package discord

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// fakeSession records what the host sends and serves canned guild data.
type fakeSession struct {
	mu sync.Mutex

	nextID    int
	sent      map[string][]*discordgo.MessageSend
	edits     []*discordgo.MessageEdit
	deleted   []string
	pinned    []string
	channels  map[string]*discordgo.Channel
	created   []discordgo.GuildChannelCreateData
	perms     map[string][]string
	members   map[string]*discordgo.Member
	roles     []*discordgo.Role
	history   map[string][]*discordgo.Message
	left      []string
	responses []*discordgo.InteractionResponse
	users     map[string]*discordgo.User

	failSend error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		nextID:   100,
		sent:     map[string][]*discordgo.MessageSend{},
		channels: map[string]*discordgo.Channel{},
		perms:    map[string][]string{},
		members:  map[string]*discordgo.Member{},
		history:  map[string][]*discordgo.Message{},
		users:    map[string]*discordgo.User{},
	}
}

func (f *fakeSession) id() string {
	f.nextID++
	return fmt.Sprint(f.nextID)
}

func notFound() error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend != nil {
		return nil, f.failSend
	}
	f.sent[channelID] = append(f.sent[channelID], data)
	return &discordgo.Message{ID: f.id(), ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *fakeSession) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, channelID+"/"+messageID)
	return nil
}

func (f *fakeSession) ChannelMessages(channelID string, limit int, beforeID, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// history is stored newest first, like the API returns it.
	all := f.history[channelID]
	start := 0
	if beforeID != "" {
		for i, m := range all {
			if m.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(all))
	return all[start:end], nil
}

func (f *fakeSession) ChannelMessagePin(channelID, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = append(f.pinned, channelID+"/"+messageID)
	return nil
}

func (f *fakeSession) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, notFound()
	}
	return ch, nil
}

func (f *fakeSession) ChannelDelete(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, notFound()
	}
	delete(f.channels, channelID)
	return ch, nil
}

func (f *fakeSession) ChannelPermissionSet(channelID, targetID string, _ discordgo.PermissionOverwriteType, _, _ int64, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perms[channelID] = append(f.perms[channelID], targetID)
	return nil
}

func (f *fakeSession) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, data)
	ch := &discordgo.Channel{ID: f.id(), GuildID: guildID, Name: data.Name, Topic: data.Topic, ParentID: data.ParentID}
	f.channels[ch.ID] = ch
	return ch, nil
}

func (f *fakeSession) GuildMember(_, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[userID]
	if !ok {
		return nil, notFound()
	}
	return m, nil
}

func (f *fakeSession) GuildRoles(string, ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles, nil
}

func (f *fakeSession) GuildLeave(guildID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, guildID)
	return nil
}

func (f *fakeSession) User(userID string, _ ...discordgo.RequestOption) (*discordgo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, notFound()
	}
	return u, nil
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}
