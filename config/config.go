package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	vkapi "github.com/groupbot/groupbot/vk/api"
	"github.com/groupbot/groupbot/vk/longpoll"
)

type GroupConfig struct {
	ID           int64  `yaml:"id"`
	APIVersion   string `yaml:"api_version"`
	APIBaseURL   string `yaml:"api_base_url"`
	TokenAccount string `yaml:"token_account"` // keychain account holding the access token
}

type LongPollConfig struct {
	Wait int `yaml:"wait"` // hold timeout in seconds
}

type MetricsConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"` // e.g. 127.0.0.1:9182
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

type PolicyConfig struct {
	AllowedPeers []int64 `yaml:"allowed_peers"` // empty allows all peers
}

type CommandsConfig struct {
	Path           string        `yaml:"path"`            // YAML file of reply commands
	ReloadInterval time.Duration `yaml:"reload_interval"` // watch poll interval
}

type Config struct {
	Group    GroupConfig    `yaml:"group"`
	LongPoll LongPollConfig `yaml:"longpoll"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
	Policy   PolicyConfig   `yaml:"policy"`
	Commands CommandsConfig `yaml:"commands"`
}

// Load reads and validates a YAML config file, applying defaults for absent
// fields.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Group.APIVersion == "" {
		c.Group.APIVersion = vkapi.DefaultVersion
	}
	if c.Group.TokenAccount == "" {
		c.Group.TokenAccount = "group-token"
	}
	if c.LongPoll.Wait == 0 {
		c.LongPoll.Wait = longpoll.DefaultWait
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9182"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Commands.ReloadInterval == 0 {
		c.Commands.ReloadInterval = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Group.ID == 0 {
		return fmt.Errorf("group.id is required")
	}
	if c.LongPoll.Wait < 1 {
		return fmt.Errorf("longpoll.wait must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	return nil
}
