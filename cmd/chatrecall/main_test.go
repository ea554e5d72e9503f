package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/chatrecall"
	"github.com/poiesic/chatrecall/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const testArchive = `{"conversations": [
  {"uuid": "c1", "name": "Python tips", "created_at": "2024-03-01T10:00:00Z",
   "chat_messages": [
     {"sender": "human", "text": "I love Python"},
     {"sender": "assistant", "text": "Python is great for scripting"}
   ]},
  {"uuid": "c2", "name": "Dinner", "created_at": "2024-03-02T10:00:00Z",
   "chat_messages": [
     {"sender": "human", "text": "how long should I boil pasta"}
   ]},
  {"uuid": "c3", "name": "Empty", "chat_messages": []}
]}`

func useMockProvider(t *testing.T) {
	t.Helper()
	databaseOptions = []chatrecall.DatabaseOption{chatrecall.WithProvider(mock.NewMockProvider())}
	t.Cleanup(func() { databaseOptions = nil })
}

func writeArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conversations.json")
	require.NoError(t, os.WriteFile(path, []byte(testArchive), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	app := newApp()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"chatrecall"}, args...))
	return out.String(), errOut.String(), err
}

func findCommand(t *testing.T, name string) *cli.Command {
	t.Helper()
	for _, cmd := range newApp().Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func TestSetupLogger(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"INFO", false},
		{"warn", false},
		{"error", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			err := setupLogger(&buf, tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			slog.Error("visible")
			assert.Contains(t, buf.String(), "visible")
		})
	}
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := run(t, "--log-level", "loud", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestImportSearchShowStats(t *testing.T) {
	useMockProvider(t)
	dbDir := filepath.Join(t.TempDir(), "db")
	archivePath := writeArchive(t)
	metricsPath := filepath.Join(t.TempDir(), "chatrecall.prom")

	out, errOut, err := run(t, "import", "--db", dbDir, "--metrics-file", metricsPath, archivePath)
	require.NoError(t, err)
	assert.Contains(t, out, "2 succeeded, 1 skipped, 0 failed")
	assert.Contains(t, errOut, "Importing: 3/3")

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `chatrecall_import_items_total{outcome="succeeded"} 2`)

	out, _, err = run(t, "search", "--db", dbDir, "--top-k", "1", "I", "love", "Python")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Python tips (2024-03-01, 2 messages)")
	assert.Contains(t, out, "id: c1")
	assert.NotContains(t, out, "2. ")

	out, _, err = run(t, "show", "--db", dbDir, "c2")
	require.NoError(t, err)
	assert.Contains(t, out, "Title:    Dinner")
	assert.Contains(t, out, "boil pasta")

	_, _, err = run(t, "show", "--db", dbDir, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	out, _, err = run(t, "stats", "--db", dbDir, "--embedding-model", mock.ModelName)
	require.NoError(t, err)
	assert.Contains(t, out, "Conversations: 2")
	assert.Contains(t, out, "Messages:      3")
	assert.Contains(t, out, "Embedding:     "+mock.ModelName)
	assert.NotContains(t, out, "run reembed")

	_, errOut, err = run(t, "reembed", "--db", dbDir)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Reembedding complete. Processed 2 records")
}

func TestReset(t *testing.T) {
	useMockProvider(t)
	dbDir := filepath.Join(t.TempDir(), "db")
	_, _, err := run(t, "import", "--db", dbDir, writeArchive(t))
	require.NoError(t, err)

	_, _, err = run(t, "reset", "--db", dbDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	out, _, err := run(t, "stats", "--db", dbDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Conversations: 2")

	out, _, err = run(t, "reset", "--db", dbDir, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Index reset.")

	out, _, err = run(t, "stats", "--db", dbDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Conversations: 0")
	assert.Contains(t, out, "none recorded")
}

func TestInspect(t *testing.T) {
	out, _, err := run(t, "inspect", "--top", "1", writeArchive(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Conversations:         3")
	assert.Contains(t, out, "Messages:              3")
	assert.Contains(t, out, "Importable:            2")
	assert.Contains(t, out, "Without messages:      1")
	assert.Contains(t, out, "Python tips")
	assert.NotContains(t, out, "Dinner")
}

func TestArgumentErrors(t *testing.T) {
	useMockProvider(t)
	dbDir := filepath.Join(t.TempDir(), "db")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"import without archive", []string{"import", "--db", dbDir}, "archive path is required"},
		{"search without query", []string{"search", "--db", dbDir}, "query is required"},
		{"show without id", []string{"show", "--db", dbDir}, "conversation id is required"},
		{"inspect without archive", []string{"inspect"}, "archive path is required"},
		{"unknown store", []string{"stats", "--store", "sqlite"}, "unknown store backend"},
		{"reembed bad batch size", []string{"reembed", "--db", dbDir, "--batch-size", "0"}, "batch-size must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigFile(t *testing.T) {
	useMockProvider(t)
	dbDir := filepath.Join(t.TempDir(), "db")
	configPath := filepath.Join(t.TempDir(), "chatrecall.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("store:\n  path: "+dbDir+"\n"), 0o600))

	_, _, err := run(t, "--config", configPath, "import", writeArchive(t))
	require.NoError(t, err)

	out, _, err := run(t, "--config", configPath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Conversations: 2")
}

func TestReembedCommandFlags(t *testing.T) {
	cmd := findCommand(t, "reembed")

	defaults := map[string]int{
		"batch-size":      100,
		"report-interval": 100,
		"max-retries":     3,
	}
	for _, flag := range cmd.Flags {
		if f, ok := flag.(*cli.IntFlag); ok {
			if want, found := defaults[f.Name]; found {
				assert.Equal(t, want, f.Value, f.Name)
				delete(defaults, f.Name)
			}
		}
	}
	assert.Empty(t, defaults)
}

func TestStoreFlagsHaveNoDefaults(t *testing.T) {
	// Defaults come from config.Load; a flag default would always override it.
	for _, flag := range storeFlags() {
		switch f := flag.(type) {
		case *cli.StringFlag:
			assert.Empty(t, f.Value, f.Name)
			assert.Empty(t, f.EnvVars, f.Name)
		case *cli.IntFlag:
			assert.Zero(t, f.Value, f.Name)
		}
	}
}
