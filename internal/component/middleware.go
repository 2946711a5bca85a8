package component

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Middleware wraps a command handler (e.g. logging, metrics, history).
type Middleware func(HandlerFunc) HandlerFunc

// Chain applies middlewares to h; the first in the list is the outermost.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// WithLogging logs every handled command with its duration.
func WithLogging() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, inv *Invocation) (*Reply, error) {
			start := time.Now()
			reply, err := next(ctx, inv)

			ev := log.Ctx(ctx).Info()
			if err != nil {
				ev = log.Ctx(ctx).Error().Err(err)
			}
			ev.Str("component", inv.Component).
				Str("command", inv.Match.Name()).
				Str("user_id", inv.Request.Caller.UserID).
				Str("guild_id", inv.Request.Caller.Scope).
				Dur("took", time.Since(start)).
				Msg("Command handled")
			return reply, err
		}
	}
}
