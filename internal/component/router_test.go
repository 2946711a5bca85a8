package component

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/cordhost/pkg/cmd"
)

func miscTree(t *testing.T) *cmd.Tree {
	t.Helper()
	tree, err := cmd.NewTree(&cmd.Group{
		Name: "misc",
		Children: []cmd.Node{
			&cmd.Command{Name: "ping"},
			&cmd.Command{Name: "echo", Args: []cmd.Arg{cmd.Rest("text")}},
		},
	})
	require.NoError(t, err)
	return tree
}

func textHandler(text string) HandlerFunc {
	return func(context.Context, *Invocation) (*Reply, error) { return Text(text), nil }
}

func TestNewRouter_ConfigurationErrors(t *testing.T) {
	tree := miscTree(t)

	tests := []struct {
		name     string
		handlers map[string]HandlerFunc
	}{
		{name: "missing handler", handlers: map[string]HandlerFunc{"misc ping": textHandler("")}},
		{name: "unknown command", handlers: map[string]HandlerFunc{"misc ping": textHandler(""), "misc echo": textHandler(""), "misc nope": textHandler("")}},
		{name: "bound to group", handlers: map[string]HandlerFunc{"misc": textHandler(""), "misc ping": textHandler(""), "misc echo": textHandler("")}},
		{name: "nil handler", handlers: map[string]HandlerFunc{"misc ping": nil, "misc echo": textHandler("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRouter("misc", tree, nil, tt.handlers)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	_, err := NewRouter("misc", nil, nil, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRouter_TryCommand(t *testing.T) {
	var got *Invocation
	router, err := NewRouter("misc", miscTree(t), nil, map[string]HandlerFunc{
		"misc ping": textHandler("pong!"),
		"misc echo": func(_ context.Context, inv *Invocation) (*Reply, error) {
			got = inv
			if inv.Match.Args.Text("text") == "fail" {
				return nil, errors.New("handler failed")
			}
			return Text(inv.Match.Args.Text("text")), nil
		},
	})
	require.NoError(t, err)

	res := router.TryCommand(context.Background(), &Request{Tokens: []string{"misc", "ping"}})
	assert.Equal(t, Claimed, res.Claim)
	assert.Equal(t, "pong!", res.Reply.Text)

	res = router.TryCommand(context.Background(), &Request{Tokens: []string{"misc", "echo", "hello", "world"}})
	assert.Equal(t, "hello world", res.Reply.Text)
	assert.Equal(t, "misc", got.Component)

	res = router.TryCommand(context.Background(), &Request{Tokens: []string{"tickets", "list"}})
	assert.Equal(t, NotClaimed, res.Claim)

	res = router.TryCommand(context.Background(), &Request{Tokens: []string{"misc", "ping", "extra"}})
	assert.Equal(t, Failed, res.Claim)
	assert.ErrorIs(t, res.Err, cmd.ErrTooManyArguments)

	res = router.TryCommand(context.Background(), &Request{Tokens: []string{"misc", "echo", "fail"}})
	assert.Equal(t, Failed, res.Claim)
	assert.EqualError(t, res.Err, "misc echo: handler failed")
}

func TestChain_FirstIsOutermost(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, inv *Invocation) (*Reply, error) {
				order = append(order, name+">")
				r, err := next(ctx, inv)
				order = append(order, "<"+name)
				return r, err
			}
		}
	}

	h := Chain(func(context.Context, *Invocation) (*Reply, error) {
		order = append(order, "handler")
		return nil, nil
	}, mw("a"), mw("b"))

	_, _ = h(context.Background(), &Invocation{})
	assert.Equal(t, []string{"a>", "b>", "handler", "<b", "<a"}, order)
}

func TestRouter_MiddlewaresWrapHandlers(t *testing.T) {
	var seen []string
	record := func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, inv *Invocation) (*Reply, error) {
			seen = append(seen, inv.Match.Name())
			return next(ctx, inv)
		}
	}

	router, err := NewRouter("misc", miscTree(t), nil, map[string]HandlerFunc{
		"misc ping": textHandler("pong!"),
		"misc echo": textHandler(""),
	}, WithLogging(), record)
	require.NoError(t, err)

	router.TryCommand(context.Background(), &Request{Tokens: []string{"misc", "ping"}})
	assert.Equal(t, []string{"misc ping"}, seen)
}

func TestBase_Events(t *testing.T) {
	b := NewBase("tickets", nil)
	b.On(EventReady, func(context.Context, Event) Result { return Done(nil) })
	b.On(EventComponentInteraction, func(_ context.Context, ev Event) Result {
		if ev.CustomID != "button_ticket_close" {
			return Pass()
		}
		return Done(Success("closed"))
	})
	b.On(EventReady, func(context.Context, Event) Result { return Done(Text("replaced")) })

	assert.Equal(t, []EventKind{EventReady, EventComponentInteraction}, b.Events())
	assert.Equal(t, "replaced", b.TryEvent(context.Background(), Event{Kind: EventReady}).Reply.Text)
	assert.Equal(t, NotClaimed, b.TryEvent(context.Background(), Event{Kind: EventComponentInteraction, CustomID: "other"}).Claim)
	assert.Equal(t, NotClaimed, b.TryEvent(context.Background(), Event{Kind: EventGuildCreate}).Claim)
	assert.Equal(t, NotClaimed, b.TryCommand(context.Background(), &Request{Tokens: []string{"x"}}).Claim)
	assert.Nil(t, b.Tree())
}
