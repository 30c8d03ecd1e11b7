package cmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"prophecywatch/cmd"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := cmd.RootApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"prophecywatch"}, args...))
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	out, err := run(t, "classify", "Earthquake", "strikes", "near", "Jerusalem")
	require.NoError(t, err)
	assert.Equal(t, "israel\nwars\ndisasters\n", out)

	out, err = run(t, "classify", "Local bakery opens")
	require.NoError(t, err)
	assert.Equal(t, "(no topics)\n", out)

	_, err = run(t, "classify")
	assert.Error(t, err)
}

func TestTopicsCommand(t *testing.T) {
	out, err := run(t, "topics", "--verses")
	require.NoError(t, err)
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "tech_control")
	assert.Contains(t, out, "Zechariah 12:2-3")
}

func TestCommandWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[feeds]]
name = "Example"
url = "https://example.com/rss"

[topics.weather]
label = "Weather"
keywords = ["storm"]
`), 0o644))

	out, err := run(t, "classify", "--config", path, "Storm warning issued")
	require.NoError(t, err)
	assert.Equal(t, "weather\n", out)
}

func TestInvalidLogFormat(t *testing.T) {
	_, err := run(t, "--log-format", "xml", "topics")
	assert.Error(t, err)
}
