package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
seed = 3

[network]
size = 12
placement = "fixed"

[protocol]
epochs = 1
epoch_slots = 20
shards = 3
lambda = 4
vdf_slots = 2

[latency]
model = "fixed"
fixed_ms = 1

[log]
level = "error"

[output]
dir = "%s"

[[output.sinks]]
type = "csv"
path = "csv"

[[output.sinks]]
type = "jsonl"
path = "records.jsonl.lz4"
compress = true
`

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	path := filepath.Join(dir, "shardsim.toml")
	content := fmt.Sprintf(testConfig, filepath.ToSlash(out))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path, out
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configFile, debug, quiet = "", false, false
	})
	require.NoError(t, rootCmd.Execute())
	return buf.String()
}

func TestRunCommand(t *testing.T) {
	path, out := writeConfig(t)

	stdout := execute(t, "run", "--conf", path)
	assert.Contains(t, stdout, "Simulation completed")
	assert.Contains(t, stdout, "Seed:         3")
	assert.Contains(t, stdout, "Blocks:")

	for _, f := range []string{"csv/slots.csv", "csv/stakes.csv", "csv/leaders.csv", "records.jsonl.lz4"} {
		info, err := os.Stat(filepath.Join(out, f))
		require.NoError(t, err, f)
		assert.Positive(t, info.Size(), f)
	}
}

func TestSweepCommand(t *testing.T) {
	path, out := writeConfig(t)

	stdout := execute(t, "sweep", "--conf", path, "--seeds", "1,2", "-j", "2")
	assert.Contains(t, stdout, "SEED")

	for _, seed := range []string{"seed-1", "seed-2"} {
		_, err := os.Stat(filepath.Join(out, seed, "csv", "slots.csv"))
		assert.NoError(t, err, seed)
	}
}

func TestVersionCommand(t *testing.T) {
	stdout := execute(t, "version")
	assert.Contains(t, stdout, "shardsim version")
}
