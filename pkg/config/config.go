package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sipeed/shimharness/pkg/logger"
)

const (
	DefaultShimHost = "opdrshim.uk"
	DefaultShimPort = 23416
)

type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	Shim    ShimConfig    `yaml:"shim"`
	Harness HarnessConfig `yaml:"harness"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

type DiscordConfig struct {
	Token                string `yaml:"token"`
	ChannelID            string `yaml:"channel_id"`
	HealthCheckChannelID string `yaml:"health_check_channel_id"`
}

type ShimConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type HarnessConfig struct {
	ReadyTimeout   time.Duration `yaml:"ready_timeout"`
	MessageTimeout time.Duration `yaml:"message_timeout"`
}

// StorageConfig selects where scenario runs are journaled. An empty Type
// disables journaling.
type StorageConfig struct {
	Type        string `yaml:"type"`
	FilePath    string `yaml:"file_path"`
	DatabaseURL string `yaml:"database_url"`
	SSLEnabled  bool   `yaml:"ssl_enabled"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		Shim: ShimConfig{
			Host:        DefaultShimHost,
			Port:        DefaultShimPort,
			DialTimeout: 10 * time.Second,
		},
		Harness: HarnessConfig{
			ReadyTimeout:   60 * time.Second,
			MessageTimeout: 300 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, environment overrides and finally the OS keyring for a missing token.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if strings.TrimSpace(cfg.Discord.Token) == "" {
		token, err := LoadToken()
		switch {
		case err == nil:
			cfg.Discord.Token = token
		case !errors.Is(err, ErrTokenNotFound):
			logger.DebugCF("config", "Keyring lookup failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return cfg, nil
}

// Validate checks what every shim connection needs.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Shim.Host) == "" {
		errs = append(errs, errors.New("shim host is empty"))
	}
	if c.Shim.Port <= 0 || c.Shim.Port > 65535 {
		errs = append(errs, fmt.Errorf("shim port %d out of range", c.Shim.Port))
	}
	if _, err := c.ChannelIDUint(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateScraper additionally requires the Discord credential.
func (c *Config) ValidateScraper() error {
	err := c.Validate()
	if strings.TrimSpace(c.Discord.Token) == "" {
		err = errors.Join(err, errors.New("discord bot token is not set (BOT_TOKEN or keyring)"))
	}
	return err
}

func (c *Config) ChannelIDUint() (uint64, error) {
	return parseSnowflake("channel id", c.Discord.ChannelID)
}

func (c *Config) HealthCheckChannelIDUint() (uint64, error) {
	return parseSnowflake("health check channel id", c.Discord.HealthCheckChannelID)
}

func parseSnowflake(name, value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%s is not set", name)
	}
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return id, nil
}
