package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"prophecywatch/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 15*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 120, cfg.Server.MaxItems)
	assert.Len(t, cfg.Feeds, 5)
	assert.Equal(t, "Reuters World", cfg.Feeds[0].Name)
	assert.Equal(t,
		[]string{"israel", "wars", "disasters", "persecution", "deception", "tech_control", "globalism"},
		cfg.TopicOrder(),
	)

	rs, err := cfg.Ruleset()
	require.NoError(t, err)
	assert.Equal(t, 7, rs.Len())

	topics := rs.Classify("Earthquake strikes near Jerusalem")
	assert.Contains(t, topics, "disasters")
	assert.Contains(t, topics, "israel")

	verses := rs.Verses()
	require.Len(t, verses["israel"].Verses, 2)
	assert.Equal(t, "Zechariah 12:2-3", verses["israel"].Verses[0].Ref)
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`
[[feeds]]
name = "Example"
url = "https://example.com/rss"

[topics.b]
label = "B"
keywords = ["bee"]

[topics.a]
label = "A"
keywords = ["ay"]
`))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultCacheTTL, cfg.Cache.TTL)
	assert.Equal(t, config.DefaultFetchTimeout, cfg.Fetch.Timeout)
	assert.Equal(t, config.DefaultMaxItems, cfg.Server.MaxItems)
	assert.Equal(t, int64(config.DefaultMaxBodyBytes), cfg.Fetch.MaxBodyBytes)
	assert.Equal(t, config.DefaultUserAgent, cfg.Fetch.UserAgent)
	assert.Equal(t, []string{"b", "a"}, cfg.TopicOrder())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "malformed toml",
			data: `[[feeds]`,
		},
		{
			name: "no feeds",
			data: `[cache]
ttl = "1m"`,
		},
		{
			name: "relative url",
			data: `[[feeds]]
name = "x"
url = "/rss"`,
		},
		{
			name: "bad scheme",
			data: `[[feeds]]
name = "x"
url = "ftp://example.com/rss"`,
		},
		{
			name: "duplicate feed name",
			data: `[[feeds]]
name = "x"
url = "https://a.example.com/rss"

[[feeds]]
name = "x"
url = "https://b.example.com/rss"`,
		},
		{
			name: "negative ttl",
			data: `[cache]
ttl = "-1m"

[[feeds]]
name = "x"
url = "https://example.com/rss"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestRulesetRejectsTopicWithoutLabel(t *testing.T) {
	cfg, err := config.Parse([]byte(`
[[feeds]]
name = "Example"
url = "https://example.com/rss"

[topics.nolabel]
keywords = ["x"]
`))
	require.NoError(t, err)

	_, err = cfg.Ruleset()
	assert.Error(t, err)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[cache]
ttl = "30s"

[[feeds]]
name = "Example"
url = "https://example.com/rss"
`), 0o600))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)

	_, err = config.LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
