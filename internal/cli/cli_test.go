package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/cordhost/internal/app"
	"github.com/keshon/cordhost/internal/component"
	"github.com/keshon/cordhost/internal/config"
	"github.com/keshon/cordhost/pkg/cmd"
)

func testEnv(t *testing.T) map[string]string {
	dir := t.TempDir()
	return map[string]string{"DATA_DIR": dir, "COMPONENTS_FILE": filepath.Join(dir, "components.yaml")}
}

func execute(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(&RootOptions{Env: env})
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMatch(t *testing.T) {
	env := testEnv(t)

	out, err := execute(t, env, "match", "--role", "staff", `!categories add Support <#111> SUP yes "General help"`)
	require.NoError(t, err)
	assert.Equal(t, "tickets: categories add\n"+
		"  category_id = 111\n"+
		"  desc = [General help]\n"+
		"  hidden = true\n"+
		"  name = Support\n"+
		"  prefix = SUP\n", out)

	out, err = execute(t, env, "match", "categories", "list")
	require.NoError(t, err)
	assert.Equal(t, "tickets: you need the `staff` role to use `categories` (permission_denied)\n", out)

	out, err = execute(t, env, "match", "nothing here")
	require.NoError(t, err)
	assert.Equal(t, "not matched\n", out)
}

func TestMatch_JSON(t *testing.T) {
	out, err := execute(t, testEnv(t), "--format", "json", "match", "misc")
	require.NoError(t, err)

	var res MatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Matched)
	assert.Equal(t, "misc", res.Component)
	assert.Equal(t, "misc ping", res.Command)
}

func TestTree(t *testing.T) {
	out, err := execute(t, testEnv(t), "tree")
	require.NoError(t, err)
	assert.Contains(t, out, "misc\n  misc/")
	assert.Contains(t, out, "    !misc history [count:int]")
	assert.Contains(t, out, "  categories/ [role: staff]")
	assert.Contains(t, out, "    !categories add <name> <category_id:id> <prefix> <hidden:bool> [desc...]")
}

func TestState(t *testing.T) {
	env := testEnv(t)

	_, err := execute(t, env, "state", "tickets")
	assert.Error(t, err, "nothing persisted yet")

	cfg, err := config.FromEnv(env)
	require.NoError(t, err)
	h, err := app.New(cfg, app.Deps{Platform: offline{}, Roles: cmd.StaticRoles{"staff"}})
	require.NoError(t, err)
	res := h.Dispatcher.RouteCommand(context.Background(), &component.Request{
		Caller: cmd.Caller{UserID: "1", Scope: "500"},
		Line:   "!categories add Support 111 SUP false",
	})
	require.Equal(t, component.Claimed, res.Claim)
	require.NoError(t, h.Close())

	before, err := os.ReadFile(filepath.Join(cfg.DataDir, "tickets.json"))
	require.NoError(t, err)

	out, err := execute(t, env, "state", "tickets")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Support"`)

	out, err = execute(t, env, "--format", "json", "state", "history")
	require.NoError(t, err)
	assert.Contains(t, out, `"command":"categories add"`)

	after, err := os.ReadFile(filepath.Join(cfg.DataDir, "tickets.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "inspecting does not rewrite the snapshot")
}

func TestRoot_RejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, testEnv(t), "--format", "yaml", "tree")
	assert.Error(t, err)
}
