package component

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/keshon/cordhost/pkg/cmd"
)

// RouteHook observes every routing decision. route is "command" or "event";
// component is empty when nothing claimed the input.
type RouteHook func(route, component string, claim Claim, took time.Duration)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRouteHook installs a hook called after every routing decision.
func WithRouteHook(h RouteHook) Option {
	return func(d *Dispatcher) { d.hook = h }
}

// Dispatcher offers inbound text commands and events to the registered
// components. A command goes to the first component that claims it; an
// event goes to every component listening for its kind.
type Dispatcher struct {
	prefix rune
	hook   RouteHook

	mu         sync.Mutex
	components []Component
	names      map[string]struct{}
	// roots maps a lower-cased root command name to its component.
	roots      map[string]string
	sealed     bool
}

// NewDispatcher returns a Dispatcher for lines starting with prefix.
func NewDispatcher(prefix rune, opts ...Option) *Dispatcher {
	d := &Dispatcher{prefix: prefix, names: map[string]struct{}{}, roots: map[string]string{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds c after the components registered so far. Component names
// and the root names of their command trees must be unique, and
// registration is closed once routing has started.
func (d *Dispatcher) Register(c Component) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c == nil {
		return &cmd.ConfigError{Reason: "nil component"}
	}
	name := strings.ToLower(c.Name())
	if name == "" {
		return &cmd.ConfigError{Reason: "component without a name"}
	}
	if d.sealed {
		return &cmd.ConfigError{Path: c.Name(), Reason: "registration after routing started"}
	}
	if _, dup := d.names[name]; dup {
		return &cmd.ConfigError{Path: c.Name(), Reason: "component already registered"}
	}
	roots := rootNames(c)
	for _, root := range roots {
		if owner, taken := d.roots[root]; taken {
			return &cmd.ConfigError{Path: c.Name(), Reason: "command " + root + " is already registered by " + owner}
		}
	}
	for _, root := range roots {
		d.roots[root] = c.Name()
	}
	d.names[name] = struct{}{}
	d.components = append(d.components, c)
	log.Debug().Str("component", c.Name()).Msg("Component registered")
	return nil
}

// rootNames returns the lower-cased root names of c's command tree, if it
// has one.
func rootNames(c Component) []string {
	holder, ok := c.(interface{ Tree() *cmd.Tree })
	if !ok || holder.Tree() == nil {
		return nil
	}
	tree := holder.Tree()
	var names []string
	for _, id := range tree.Roots() {
		info, _ := tree.Info(id)
		names = append(names, strings.ToLower(info.Name))
	}
	return names
}

// Components returns the registered components in registration order.
func (d *Dispatcher) Components() []Component {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.components)
}

// Prefix returns the command prefix.
func (d *Dispatcher) Prefix() rune { return d.prefix }

func (d *Dispatcher) snapshot() []Component {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sealed = true
	return d.components
}

// RouteCommand strips the prefix from req.Line, tokenizes the rest once and
// offers it to each component in registration order. The first claim is
// final, including Failed ones, whose error is turned into a reply here.
func (d *Dispatcher) RouteCommand(ctx context.Context, req *Request) Result {
	start := time.Now()
	components := d.snapshot()

	rest, ok := d.strip(req.Line)
	if !ok {
		return Pass()
	}
	req.Tokens = cmd.Split(rest)
	if len(req.Tokens) == 0 {
		return Pass()
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	logger := log.With().Str("request_id", req.ID).Logger()
	ctx = logger.WithContext(ctx)

	for _, c := range components {
		res := tryCommand(ctx, c, req)
		switch res.Claim {
		case NotClaimed:
			continue
		case Failed:
			var me *cmd.MatchError
			if errors.As(res.Err, &me) {
				logger.Debug().Err(res.Err).Str("component", c.Name()).Str("failure", me.Kind.String()).Msg("Command rejected")
			} else {
				logger.Error().Err(res.Err).Str("component", c.Name()).Msg("Command failed")
			}
			if res.Reply == nil {
				res.Reply = FailureReply(res.Err)
			}
		}
		d.observe("command", c.Name(), res.Claim, start)
		return res
	}

	d.observe("command", "", NotClaimed, start)
	return Pass()
}

// RouteEvent delivers ev to every component listening for ev.Kind. Failures
// are logged and joined but do not stop delivery. The result is Failed if
// any component failed, Claimed if any claimed, NotClaimed otherwise. The
// first reply produced wins.
func (d *Dispatcher) RouteEvent(ctx context.Context, ev Event) Result {
	start := time.Now()
	components := d.snapshot()

	logger := log.With().Str("request_id", uuid.NewString()).Str("event", string(ev.Kind)).Logger()
	ctx = logger.WithContext(ctx)

	var (
		out  = Pass()
		errs []error
	)
	for _, c := range components {
		if !slices.Contains(c.Events(), ev.Kind) {
			continue
		}
		res := tryEvent(ctx, c, ev)
		d.observe("event", c.Name(), res.Claim, start)

		switch res.Claim {
		case NotClaimed:
			continue
		case Failed:
			logger.Error().Err(res.Err).Str("component", c.Name()).Msg("Event handler failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), res.Err))
		case Claimed:
			if out.Claim == NotClaimed {
				out.Claim = Claimed
			}
		}
		if out.Reply == nil && res.Reply != nil {
			out.Reply = res.Reply
		}
	}

	if len(errs) > 0 {
		out.Claim = Failed
		out.Err = errors.Join(errs...)
		if out.Reply == nil {
			out.Reply = FailureReply(out.Err)
		}
	}
	return out
}

func (d *Dispatcher) strip(line string) (string, bool) {
	r, size := utf8.DecodeRuneInString(line)
	if size == 0 || r != d.prefix {
		return "", false
	}
	return line[size:], true
}

func (d *Dispatcher) observe(route, component string, claim Claim, start time.Time) {
	if d.hook != nil {
		d.hook(route, component, claim, time.Since(start))
	}
}

func tryCommand(ctx context.Context, c Component, req *Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Fail(fmt.Errorf("%s: panic: %v", c.Name(), r))
		}
	}()
	return c.TryCommand(ctx, req)
}

func tryEvent(ctx context.Context, c Component, ev Event) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Fail(fmt.Errorf("panic: %v", r))
		}
	}()
	return c.TryEvent(ctx, ev)
}
