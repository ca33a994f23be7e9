package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: sqlite_g1a
description: "Aborted reads (G1a)"
anomaly: G1a
backends: [sqlite]
steps:
  - exec: "begin; -- T1"
  - exec: "begin; -- T2"
  - exec: "update test set value = 101 where id = 1; -- T1"
  - query: "select * from test; -- T2, 1 => 10"
  - exec: "rollback; -- T1"
  - query: "select * from test; -- T2, 1 => 10"
  - exec: "commit; -- T2"
`

const failingScenario = `
name: sqlite_wrong_value
description: "Expects a value the table never holds"
steps:
  - query: "select * from test; -- T1, 1 => 99"
`

const postgresOnlyScenario = `
name: pg_only
description: "Never selected on sqlite"
backends: [postgres]
steps:
  - exec: "begin; -- T1"
`

// sqliteArgs returns the flags pointing run at a fresh SQLite database.
func sqliteArgs(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	return []string{
		"--backend", "sqlite",
		"--database", filepath.Join(dir, "target.db"),
		"--settle", "100ms",
	}
}

func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		writeFile(t, filepath.Join(dir, name), content)
	}
	return dir
}

func TestRun_AllPass(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := scenarioDir(t, map[string]string{
		"g1a.yaml":     passingScenario,
		"pg_only.yaml": postgresOnlyScenario,
	})

	args := append([]string{"run"}, sqliteArgs(t)...)
	out, err := execute(t, append(args, dir)...)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ sqlite_g1a (G1a)")
	assert.NotContains(t, out, "pg_only")
	assert.Contains(t, out, "Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestRun_FailureExitsOne(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := scenarioDir(t, map[string]string{
		"g1a.yaml":   passingScenario,
		"wrong.yaml": failingScenario,
	})

	args := append([]string{"run"}, sqliteArgs(t)...)
	out, err := execute(t, append(args, dir)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ sqlite_wrong_value")
	assert.Contains(t, out, "Verification failed on T1")
	assert.Contains(t, out, "Summary: 1 passed, 1 failed, 2 total")
}

func TestRun_Filter(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := scenarioDir(t, map[string]string{
		"g1a.yaml":   passingScenario,
		"wrong.yaml": failingScenario,
	})

	args := append([]string{"run", "--filter", "*g1a"}, sqliteArgs(t)...)
	out, err := execute(t, append(args, dir)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Summary: 1 passed, 0 failed, 1 total")
}

func TestRun_NoScenarios(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := scenarioDir(t, map[string]string{"pg_only.yaml": postgresOnlyScenario})

	args := append([]string{"run"}, sqliteArgs(t)...)
	out, err := execute(t, append(args, dir)...)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestRun_JSONRecordsHistory(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := scenarioDir(t, map[string]string{"g1a.yaml": passingScenario})
	history := filepath.Join(t.TempDir(), "runs.db")

	args := append([]string{"run", "--format", "json", "--history", history}, sqliteArgs(t)...)
	out, err := execute(t, append(args, dir)...)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "sqlite", resp.Data.Backend)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.True(t, resp.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[0].RunID)
}

func TestRun_FormatFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		env      string
		flags    []string
		wantJSON bool
	}{
		{name: "config file", config: "format: json\n", wantJSON: true},
		{name: "environment", env: "json", wantJSON: true},
		{name: "flag wins over config file", config: "format: json\n", flags: []string{"--format", "text"}},
		{name: "default", wantJSON: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			dir := scenarioDir(t, map[string]string{"pg_only.yaml": postgresOnlyScenario})
			if tt.config != "" {
				writeFile(t, "hermitage.yaml", tt.config)
			}
			if tt.env != "" {
				t.Setenv("HERMITAGE_FORMAT", tt.env)
			}

			args := append([]string{"run"}, tt.flags...)
			args = append(args, sqliteArgs(t)...)
			out, err := execute(t, append(args, dir)...)
			require.NoError(t, err)

			if !tt.wantJSON {
				assert.Equal(t, "No scenarios found.\n", out)
				return
			}
			var resp struct {
				Status string     `json:"status"`
				Data   RunSummary `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "ok", resp.Status)
			assert.Equal(t, "sqlite", resp.Data.Backend)
			assert.Empty(t, resp.Data.Scenarios)
		})
	}
}

func TestRun_ExplicitConfigFileFormat(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := scenarioDir(t, map[string]string{"pg_only.yaml": postgresOnlyScenario})
	cfgFile := filepath.Join(t.TempDir(), "ci.yaml")
	writeFile(t, cfgFile, "format: json\nverbose: true\n")

	args := append([]string{"--config", cfgFile, "run"}, sqliteArgs(t)...)
	out, err := execute(t, append(args, dir)...)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestRun_CommandErrors(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		errSubstr string
	}{
		{
			name:      "unknown backend",
			args:      []string{"run", "--backend", "oracle", "."},
			errSubstr: "unknown backend type",
		},
		{
			name:      "missing scenarios dir",
			args:      []string{"run", "--backend", "sqlite", "/nonexistent/scenarios"},
			errSubstr: "scenarios directory not found",
		},
		{
			name:      "bad filter",
			args:      []string{"run", "--backend", "sqlite", "--filter", "[", "."},
			errSubstr: "invalid filter pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}
