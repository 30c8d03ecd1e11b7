package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"prophecywatch/feeds"
	"prophecywatch/models"
	"prophecywatch/topics"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
)

//go:embed default.toml
var defaultConfig []byte

const (
	DefaultCacheTTL     = 600 * time.Second
	DefaultFetchTimeout = feeds.DefaultTimeout
	DefaultMaxItems     = 120
	DefaultMaxBodyBytes = feeds.DefaultMaxBodyBytes
	DefaultUserAgent    = feeds.DefaultUserAgent
)

// TomlCache holds cache settings
type TomlCache struct {
	TTL time.Duration `toml:"ttl"`
}

// TomlFetch holds per-source fetch settings
type TomlFetch struct {
	Timeout      time.Duration `toml:"timeout"`
	UserAgent    string        `toml:"user_agent"`
	MaxBodyBytes int64         `toml:"max_body_bytes"`
}

// TomlServer holds API presentation settings
type TomlServer struct {
	MaxItems int `toml:"max_items"`
}

// TomlTopic represents one topic of the ruleset
type TomlTopic struct {
	Label    string             `toml:"label"`
	Keywords []string           `toml:"keywords"`
	Verses   []models.Reference `toml:"verses"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Cache  TomlCache            `toml:"cache"`
	Fetch  TomlFetch            `toml:"fetch"`
	Server TomlServer           `toml:"server"`
	Feeds  []models.FeedSource  `toml:"feeds"`
	Topics map[string]TomlTopic `toml:"topics"`

	// Topic keys in the order they appear in the file
	topicOrder []string
}

// LoadConfig reads the TOML file at path, or the embedded defaults when path is empty
func LoadConfig(path string) (*TomlConfig, error) {
	if path == "" {
		return Parse(defaultConfig)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes configuration data, fills in defaults and validates the result
func Parse(data []byte) (*TomlConfig, error) {
	var config TomlConfig
	md, err := toml.Decode(string(data), &config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	seen := make(map[string]bool)
	for _, key := range md.Keys() {
		if len(key) < 2 || key[0] != "topics" || seen[key[1]] {
			continue
		}
		seen[key[1]] = true
		config.topicOrder = append(config.topicOrder, key[1])
	}
	// Anything metadata did not surface still gets a stable position
	missing := lo.Filter(lo.Keys(config.Topics), func(k string, _ int) bool { return !seen[k] })
	sort.Strings(missing)
	config.topicOrder = append(config.topicOrder, missing...)

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *TomlConfig) applyDefaults() {
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = DefaultFetchTimeout
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = DefaultUserAgent
	}
	if c.Fetch.MaxBodyBytes == 0 {
		c.Fetch.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Server.MaxItems == 0 {
		c.Server.MaxItems = DefaultMaxItems
	}
}

// Validate checks settings and feed sources. Topic checks happen in Ruleset.
func (c *TomlConfig) Validate() error {
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must be positive, got %s", c.Fetch.Timeout)
	}
	if c.Fetch.MaxBodyBytes < 0 {
		return fmt.Errorf("fetch.max_body_bytes must be positive, got %d", c.Fetch.MaxBodyBytes)
	}
	if c.Server.MaxItems < 0 {
		return fmt.Errorf("server.max_items must be positive, got %d", c.Server.MaxItems)
	}
	if len(c.Feeds) == 0 {
		return errors.New("no feeds configured")
	}

	names := make(map[string]bool, len(c.Feeds))
	for i, feed := range c.Feeds {
		if strings.TrimSpace(feed.Name) == "" {
			return fmt.Errorf("feeds[%d]: empty name", i)
		}
		if names[feed.Name] {
			return fmt.Errorf("feeds[%d]: duplicate name %q", i, feed.Name)
		}
		names[feed.Name] = true

		u, err := url.Parse(feed.URL)
		if err != nil {
			return fmt.Errorf("feeds[%d] %q: invalid url: %w", i, feed.Name, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("feeds[%d] %q: url must be absolute http(s), got %q", i, feed.Name, feed.URL)
		}
	}

	return nil
}

// TopicOrder returns topic keys in file order
func (c *TomlConfig) TopicOrder() []string {
	return append([]string(nil), c.topicOrder...)
}

// Ruleset builds the immutable topic ruleset in file order
func (c *TomlConfig) Ruleset() (*topics.Ruleset, error) {
	list := make([]models.Topic, 0, len(c.Topics))
	for _, key := range c.topicOrder {
		t, ok := c.Topics[key]
		if !ok {
			continue
		}
		list = append(list, models.Topic{
			Key:        key,
			Label:      t.Label,
			Keywords:   t.Keywords,
			References: t.Verses,
		})
	}

	rs, err := topics.NewRuleset(list)
	if err != nil {
		return nil, fmt.Errorf("invalid topics: %w", err)
	}
	return rs, nil
}
