package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/cordhost/internal/component"
	"github.com/keshon/cordhost/internal/components/tickets"
	"github.com/keshon/cordhost/internal/config"
	"github.com/keshon/cordhost/pkg/cmd"
)

// offline satisfies tickets.Platform; the tests never reach it.
type offline struct{ tickets.Platform }

func newHost(t *testing.T, env map[string]string) *Host {
	t.Helper()
	dir := t.TempDir()
	vars := map[string]string{
		"DATA_DIR":        dir,
		"COMPONENTS_FILE": filepath.Join(dir, "components.yaml"),
	}
	for k, v := range env {
		vars[k] = v
	}
	cfg, err := config.FromEnv(vars)
	require.NoError(t, err)

	h, err := New(cfg, Deps{Platform: offline{}, Roles: cmd.StaticRoles{"staff"}, Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHost_RegistersComponentsInOrder(t *testing.T) {
	h := newHost(t, nil)

	var names []string
	for _, c := range h.Dispatcher.Components() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"misc", "tickets"}, names)
}

func TestHost_RoutesAndRecords(t *testing.T) {
	h := newHost(t, map[string]string{"COMMAND_PREFIX": "?"})

	res := h.Dispatcher.RouteCommand(context.Background(), &component.Request{
		Caller:   cmd.Caller{UserID: "1", Scope: "500"},
		Username: "alice",
		Line:     "?categories add Support 111 SUP no",
	})
	require.Equal(t, component.Claimed, res.Claim, "%v", res.Err)

	entries := h.History.Get("500", 0)
	require.Len(t, entries, 1)
	assert.Equal(t, "categories add", entries[0].Command)
	assert.Equal(t, "Support 111 SUP no", entries[0].Param)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.Metrics.Commands.WithLabelValues("tickets", "categories add", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.Metrics.Routes.WithLabelValues("command", "tickets", "claimed")))

	res = h.Dispatcher.RouteCommand(context.Background(), &component.Request{
		Caller: cmd.Caller{UserID: "1", Scope: "500"},
		Line:   "?misc history",
	})
	require.Equal(t, component.Claimed, res.Claim)
	assert.Contains(t, res.Reply.Text, "alice: ?categories add Support 111 SUP no")
}

func TestHost_OwnersBypassRoles(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.FromEnv(map[string]string{"DATA_DIR": dir, "OWNERS": "9", "COMPONENTS_FILE": filepath.Join(dir, "components.yaml")})
	require.NoError(t, err)
	h, err := New(cfg, Deps{Platform: offline{}})
	require.NoError(t, err)
	defer h.Close()

	res := h.Dispatcher.RouteCommand(context.Background(), &component.Request{
		Caller: cmd.Caller{UserID: "9", Scope: "500"},
		Line:   "!categories list",
	})
	assert.Equal(t, component.Claimed, res.Claim)

	res = h.Dispatcher.RouteCommand(context.Background(), &component.Request{
		Caller: cmd.Caller{UserID: "8", Scope: "500"},
		Line:   "!categories list",
	})
	assert.ErrorIs(t, res.Err, cmd.ErrPermissionDenied)
}
