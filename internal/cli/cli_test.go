package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuncerburak97/gozcu/internal/config"
	"github.com/tuncerburak97/gozcu/internal/model"
	"github.com/tuncerburak97/gozcu/internal/repository"
	"github.com/tuncerburak97/gozcu/internal/repository/repotest"
)

const testConfig = `
log:
  level: error
db:
  type: sqlite
  path: %s
capture:
  async: false
api_log_settings:
  urls:
    - license
`

func writeConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "gozcu.db")
	configPath = filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(testConfig, dbPath)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath, dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seed(t *testing.T, dbPath string) []string {
	t.Helper()
	ctx := context.Background()
	repo, err := repository.Open(ctx, &config.DBConfig{Type: "sqlite", Path: dbPath})
	require.NoError(t, err)
	defer repo.Close()

	var ids []string
	for i, rec := range []*model.Record{
		repotest.NewRecord("https://license.example.com/ok", true, 1),
		repotest.NewRecord("https://license.example.com/down", false, 2),
	} {
		id, err := repo.Create(ctx, rec)
		require.NoError(t, err, "record %d", i)
		ids = append(ids, id)
	}
	return ids
}

func TestSettingsCommands(t *testing.T) {
	t.Setenv("GOZCU_CONFIG", "")
	cfgPath, _ := writeConfig(t)

	out, err := run(t, "--config", cfgPath, "settings", "get")
	require.NoError(t, err)
	assert.Equal(t, "license\n", out)

	out, err = run(t, "--config", cfgPath, "settings", "set", "a.example\n b.example ", "<i>c.example</i>")
	require.NoError(t, err)
	assert.Equal(t, "a.example\nb.example\nc.example\n", out)

	out, err = run(t, "--config", cfgPath, "--json", "settings", "get")
	require.NoError(t, err)
	var got map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"a.example", "b.example", "c.example"}, got["urls"])

	out, err = run(t, "--config", cfgPath, "settings", "set")
	require.NoError(t, err)
	assert.Equal(t, "(all URLs)\n", out)

	_, err = run(t, "settings", "set", "x")
	assert.ErrorContains(t, err, "--config")
}

func TestLogsCommands(t *testing.T) {
	t.Setenv("GOZCU_CONFIG", "")
	cfgPath, dbPath := writeConfig(t)
	ids := seed(t, dbPath)

	out, err := run(t, "--config", cfgPath, "logs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, ids[0])
	assert.Contains(t, out, ids[1])
	assert.Less(t, strings.Index(out, ids[1]), strings.Index(out, ids[0]))

	out, err = run(t, "--config", cfgPath, "--json", "logs", "list", "--status", "failure")
	require.NoError(t, err)
	var items []model.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, ids[1], items[0].ID)

	_, err = run(t, "--config", cfgPath, "logs", "list", "--status", "maybe")
	assert.ErrorContains(t, err, "invalid status")

	out, err = run(t, "--config", cfgPath, "logs", "show", ids[0])
	require.NoError(t, err)
	assert.Contains(t, out, "https://license.example.com/ok - Success")
	assert.Contains(t, out, "[requestArgs]")
	assert.Contains(t, out, "[responseCode]\n200")
	assert.Less(t, strings.Index(out, "[requestArgs]"), strings.Index(out, "[responseBody]"))

	out, err = run(t, "--config", cfgPath, "logs", "delete", ids[0])
	require.NoError(t, err)
	assert.Equal(t, "deleted "+ids[0]+"\n", out)

	_, err = run(t, "--config", cfgPath, "logs", "show", ids[0])
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPurgeCommand(t *testing.T) {
	t.Setenv("GOZCU_CONFIG", "")
	cfgPath, dbPath := writeConfig(t)
	seed(t, dbPath)

	out, err := run(t, "--config", cfgPath, "purge")
	require.NoError(t, err)
	assert.Equal(t, "log store purged\n", out)

	out, err = run(t, "--config", cfgPath, "--json", "logs", "list")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	_, err = run(t, "--config", cfgPath, "purge")
	assert.NoError(t, err)
}

func TestFieldOrder(t *testing.T) {
	fields := map[string]string{
		"zeta":                  "",
		model.FieldResponseBody: "",
		model.FieldRequestArgs:  "",
		"alpha":                 "",
	}
	assert.Equal(t, []string{model.FieldRequestArgs, model.FieldResponseBody, "alpha", "zeta"}, fieldOrder(fields))
}
