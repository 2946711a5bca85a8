// Package history keeps the most recent commands run in each guild.
package history

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/cordhost/internal/component"
	"github.com/keshon/cordhost/internal/state"
)

// Limit is the number of entries kept per guild.
const Limit = 20

// Entry is one handled command.
type Entry struct {
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Command   string    `json:"command"`
	Param     string    `json:"param"`
	Datetime  time.Time `json:"datetime"`
}

// Record is the persisted form: entries keyed by guild ID.
type Record map[string][]Entry

// History is a per-guild command log backed by a state store.
type History struct {
	store *state.Store[Record]
	now   func() time.Time
}

// Open loads the history kept in dir.
func Open(dir string, onFlush func(string, time.Duration, error)) (*History, error) {
	store, err := state.Open(state.Config{Dir: dir, Name: "history", OnFlush: onFlush}, func() Record { return Record{} })
	if err != nil {
		return nil, err
	}
	return &History{store: store, now: time.Now}, nil
}

// Close flushes and closes the underlying store.
func (h *History) Close() error {
	return h.store.Close()
}

// Add appends e to the guild's history, dropping the oldest entries beyond
// Limit.
func (h *History) Add(guildID string, e Entry) error {
	return h.store.Update(func(r *Record) error {
		if *r == nil {
			*r = Record{}
		}
		list := append((*r)[guildID], e)
		if len(list) > Limit {
			list = list[len(list)-Limit:]
		}
		(*r)[guildID] = list
		return nil
	})
}

// Get returns up to n of the guild's most recent entries, oldest first.
// n <= 0 returns all of them.
func (h *History) Get(guildID string, n int) []Entry {
	var out []Entry
	_ = h.store.View(func(r Record) error {
		list := r[guildID]
		if n > 0 && len(list) > n {
			list = list[len(list)-n:]
		}
		out = append([]Entry(nil), list...)
		return nil
	})
	return out
}

// Middleware records every command that ran in a guild, whatever its
// outcome. Failing to record is logged and does not affect the reply.
func (h *History) Middleware() component.Middleware {
	return func(next component.HandlerFunc) component.HandlerFunc {
		return func(ctx context.Context, inv *component.Invocation) (*component.Reply, error) {
			reply, err := next(ctx, inv)

			req := inv.Request
			if req.Caller.Scope == "" {
				return reply, err
			}
			var param string
			if n := len(inv.Match.Path); n < len(req.Tokens) {
				param = strings.Join(req.Tokens[n:], " ")
			}
			entry := Entry{
				ChannelID: req.ChannelID,
				UserID:    req.Caller.UserID,
				Username:  req.Username,
				Command:   inv.Match.Name(),
				Param:     param,
				Datetime:  h.now(),
			}
			if e := h.Add(req.Caller.Scope, entry); e != nil {
				log.Ctx(ctx).Warn().Err(e).Str("command", entry.Command).Msg("Failed to log command")
			}
			return reply, err
		}
	}
}
