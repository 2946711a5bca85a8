package discord

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/keshon/cordhost/pkg/cmd"
)

// RoleProvider answers role checks with the member's guild roles. Roles are
// named in the command trees, so the guild's role list is searched by name,
// ignoring case.
type RoleProvider struct {
	session Session
}

var _ cmd.RoleProvider = (*RoleProvider)(nil)

func NewRoleProvider(s Session) *RoleProvider {
	return &RoleProvider{session: s}
}

func (p *RoleProvider) HasRole(_ context.Context, role, guildID, userID string) (bool, error) {
	member, err := p.session.GuildMember(guildID, userID)
	if err != nil {
		return false, fmt.Errorf("fetching member %s: %w", userID, err)
	}
	if len(member.Roles) == 0 {
		return false, nil
	}
	id, err := p.roleID(guildID, role)
	if err != nil || id == "" {
		return false, err
	}
	return slices.Contains(member.Roles, id), nil
}

// roleID returns the ID of the guild role named name, or "".
func (p *RoleProvider) roleID(guildID, name string) (string, error) {
	roles, err := p.session.GuildRoles(guildID)
	if err != nil {
		return "", fmt.Errorf("fetching roles of guild %s: %w", guildID, err)
	}
	for _, r := range roles {
		if strings.EqualFold(r.Name, name) {
			return r.ID, nil
		}
	}
	return "", nil
}
