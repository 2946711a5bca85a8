package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/cordhost/internal/component"
	"github.com/keshon/cordhost/pkg/cmd"
)

func TestHistory_AddKeepsLimit(t *testing.T) {
	h, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer h.Close()

	for i := 0; i < Limit+5; i++ {
		require.NoError(t, h.Add("g1", Entry{Command: fmt.Sprintf("cmd%d", i)}))
	}
	require.NoError(t, h.Add("g2", Entry{Command: "other"}))

	all := h.Get("g1", 0)
	require.Len(t, all, Limit)
	assert.Equal(t, "cmd5", all[0].Command)
	assert.Equal(t, fmt.Sprintf("cmd%d", Limit+4), all[Limit-1].Command)

	last := h.Get("g1", 2)
	require.Len(t, last, 2)
	assert.Equal(t, fmt.Sprintf("cmd%d", Limit+4), last[1].Command)

	assert.Len(t, h.Get("g2", 10), 1)
	assert.Empty(t, h.Get("nope", 10))
}

func TestHistory_Persists(t *testing.T) {
	dir := t.TempDir()
	h, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, h.Add("g1", Entry{Command: "misc ping"}))
	require.NoError(t, h.Close())

	h, err = Open(dir, nil)
	require.NoError(t, err)
	defer h.Close()
	got := h.Get("g1", 0)
	require.Len(t, got, 1)
	assert.Equal(t, "misc ping", got[0].Command)
}

func TestHistory_Middleware(t *testing.T) {
	h, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer h.Close()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	tree, err := cmd.NewTree(&cmd.Group{
		Name:    "misc",
		Default: "ping",
		Children: []cmd.Node{
			&cmd.Command{Name: "ping"},
			&cmd.Command{Name: "echo", Args: []cmd.Arg{cmd.Rest("text")}},
		},
	})
	require.NoError(t, err)

	handler := h.Middleware()(func(context.Context, *component.Invocation) (*component.Reply, error) {
		return component.Text("ok"), nil
	})

	run := func(scope string, tokens ...string) {
		m, err := tree.Match(context.Background(), cmd.Root, tokens, nil, cmd.Caller{})
		require.NoError(t, err)
		req := &component.Request{
			Caller:    cmd.Caller{UserID: "u1", Scope: scope},
			Username:  "alice",
			ChannelID: "c1",
			Tokens:    tokens,
		}
		_, err = handler(context.Background(), &component.Invocation{Component: "misc", Request: req, Match: m})
		require.NoError(t, err)
	}

	run("g1", "misc", "echo", "hello", "there")
	run("g1", "misc")
	run("", "misc", "ping")

	got := h.Get("g1", 0)
	require.Len(t, got, 2)
	assert.Equal(t, Entry{
		ChannelID: "c1",
		UserID:    "u1",
		Username:  "alice",
		Command:   "misc echo",
		Param:     "hello there",
		Datetime:  fixed,
	}, got[0])
	assert.Equal(t, "misc ping", got[1].Command)
	assert.Empty(t, got[1].Param)
}
