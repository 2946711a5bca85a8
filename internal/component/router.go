package component

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/keshon/cordhost/pkg/cmd"
)

// Invocation is what a command handler receives.
type Invocation struct {
	Component string
	Request   *Request
	Match     *cmd.Match
}

// HandlerFunc runs a matched command. A returned error makes the claim
// Failed; user facing refusals are replies, not errors.
type HandlerFunc func(ctx context.Context, inv *Invocation) (*Reply, error)

// Router binds the commands of a tree to handlers.
type Router struct {
	component string
	tree      *cmd.Tree
	auth      cmd.Authorizer
	handlers  map[cmd.NodeID]HandlerFunc
}

// NewRouter returns a router for tree. handlers is keyed by command path
// ("categories add"). Every command needs exactly one handler and every
// handler must name a command. mws wrap each handler, the first one
// outermost.
func NewRouter(component string, tree *cmd.Tree, auth cmd.Authorizer, handlers map[string]HandlerFunc, mws ...Middleware) (*Router, error) {
	if tree == nil {
		return nil, &cmd.ConfigError{Path: component, Reason: "router needs a command tree"}
	}
	r := &Router{
		component: component,
		tree:      tree,
		auth:      auth,
		handlers:  make(map[cmd.NodeID]HandlerFunc, len(handlers)),
	}

	for _, path := range slices.Sorted(maps.Keys(handlers)) {
		h := handlers[path]
		id, ok := tree.Lookup(strings.Fields(path)...)
		if !ok {
			return nil, &cmd.ConfigError{Path: component + ": " + path, Reason: "handler for unknown command"}
		}
		if info, _ := tree.Info(id); info.Group {
			return nil, &cmd.ConfigError{Path: component + ": " + path, Reason: "handler bound to a group"}
		}
		if h == nil {
			return nil, &cmd.ConfigError{Path: component + ": " + path, Reason: "nil handler"}
		}
		r.handlers[id] = Chain(h, mws...)
	}

	for _, id := range tree.Commands() {
		if _, ok := r.handlers[id]; !ok {
			return nil, &cmd.ConfigError{Path: component + ": " + tree.Path(id), Reason: "command has no handler"}
		}
	}
	return r, nil
}

// Tree returns the command tree.
func (r *Router) Tree() *cmd.Tree { return r.tree }

// TryCommand matches req.Tokens and runs the handler.
func (r *Router) TryCommand(ctx context.Context, req *Request) Result {
	m, err := r.tree.Match(ctx, cmd.Root, req.Tokens, r.auth, req.Caller)
	if errors.Is(err, cmd.ErrNotMatched) {
		return Pass()
	}
	if err != nil {
		return Fail(err)
	}

	reply, err := r.handlers[m.Command](ctx, &Invocation{Component: r.component, Request: req, Match: m})
	if err != nil {
		return Result{Claim: Failed, Reply: reply, Err: fmt.Errorf("%s: %w", m.Name(), err)}
	}
	return Done(reply)
}

// EventFunc handles one event kind.
type EventFunc func(ctx context.Context, ev Event) Result

// Base implements Component from a Router and a set of event handlers.
// Components embed it and register their handlers in their constructor.
type Base struct {
	name   string
	router *Router
	kinds  []EventKind
	events map[EventKind]EventFunc
}

// NewBase returns a Base named name. router may be nil for components
// without commands.
func NewBase(name string, router *Router) *Base {
	return &Base{name: name, router: router, events: map[EventKind]EventFunc{}}
}

// On registers fn for events of kind. A later registration replaces the
// earlier one.
func (b *Base) On(kind EventKind, fn EventFunc) {
	if _, ok := b.events[kind]; !ok {
		b.kinds = append(b.kinds, kind)
	}
	b.events[kind] = fn
}

func (b *Base) Name() string { return b.name }

func (b *Base) Events() []EventKind { return slices.Clone(b.kinds) }

// Tree returns the component's command tree, or nil.
func (b *Base) Tree() *cmd.Tree {
	if b.router == nil {
		return nil
	}
	return b.router.Tree()
}

func (b *Base) TryCommand(ctx context.Context, req *Request) Result {
	if b.router == nil {
		return Pass()
	}
	return b.router.TryCommand(ctx, req)
}

func (b *Base) TryEvent(ctx context.Context, ev Event) Result {
	fn, ok := b.events[ev.Kind]
	if !ok {
		return Pass()
	}
	return fn(ctx, ev)
}
