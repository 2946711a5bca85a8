package cmd

import (
	"context"
	"slices"
	"strings"
)

// Caller identifies who typed a line and where.
type Caller struct {
	UserID string
	// Scope is the guild the line was sent in. Empty for direct messages.
	Scope string
}

// RoleProvider answers whether a caller holds a named role within a scope.
// It is the external identity source; answers are never cached here.
type RoleProvider interface {
	HasRole(ctx context.Context, role, scope, caller string) (bool, error)
}

// RoleProviderFunc adapts a function to RoleProvider.
type RoleProviderFunc func(ctx context.Context, role, scope, caller string) (bool, error)

func (f RoleProviderFunc) HasRole(ctx context.Context, role, scope, caller string) (bool, error) {
	return f(ctx, role, scope, caller)
}

// Authorizer decides whether a caller may pass a node requiring role.
type Authorizer interface {
	Allow(ctx context.Context, role string, caller Caller) (bool, error)
}

// Gate is the default Authorizer. Owners pass every check. Outside of a
// guild there are no roles, so any role requirement fails.
type Gate struct {
	Roles  RoleProvider
	Owners []string
}

// NewGate returns a Gate backed by roles.
func NewGate(roles RoleProvider, owners ...string) *Gate {
	return &Gate{Roles: roles, Owners: owners}
}

func (g *Gate) Allow(ctx context.Context, role string, caller Caller) (bool, error) {
	if role == "" {
		return true, nil
	}
	if g == nil {
		return false, nil
	}
	if caller.UserID != "" && slices.Contains(g.Owners, caller.UserID) {
		return true, nil
	}
	if caller.Scope == "" || g.Roles == nil {
		return false, nil
	}
	return g.Roles.HasRole(ctx, role, caller.Scope, caller.UserID)
}

// StaticRoles grants the listed role names to every caller in any guild.
// Names compare case-insensitively.
type StaticRoles []string

func (s StaticRoles) HasRole(_ context.Context, role, _, _ string) (bool, error) {
	for _, r := range s {
		if strings.EqualFold(r, role) {
			return true, nil
		}
	}
	return false, nil
}
