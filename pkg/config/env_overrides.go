package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies runtime environment variables into config.
// It returns true when any value changed.
func applyEnvOverrides(cfg *Config) bool {
	if cfg == nil {
		return false
	}

	changed := false

	setString := func(dst *string, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		if *dst != value {
			*dst = value
			changed = true
		}
	}
	setInt := func(dst *int, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return
		}
		if *dst != parsed {
			*dst = parsed
			changed = true
		}
	}
	setBool := func(dst *bool, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return
		}
		if *dst != parsed {
			*dst = parsed
			changed = true
		}
	}
	setDuration := func(dst *time.Duration, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			// Bare numbers are seconds.
			secs, convErr := strconv.Atoi(value)
			if convErr != nil {
				return
			}
			parsed = time.Duration(secs) * time.Second
		}
		if *dst != parsed {
			*dst = parsed
			changed = true
		}
	}

	env := func(keys ...string) string {
		for _, key := range keys {
			if value := strings.TrimSpace(os.Getenv(key)); value != "" {
				return value
			}
		}
		return ""
	}

	setString(&cfg.Discord.Token, env("SHIMHARNESS_BOT_TOKEN", "BOT_TOKEN"))
	setString(&cfg.Discord.ChannelID, env("SHIMHARNESS_CHANNEL_ID", "CHANNEL_ID"))
	setString(&cfg.Discord.HealthCheckChannelID, env("SHIMHARNESS_HEALTH_CHECK_CHANNEL_ID", "HEALTH_CHECK_CHANNEL_ID"))

	setString(&cfg.Shim.Host, env("SHIMHARNESS_SHIM_ADDR", "DISCORDSHIM_ADDR"))
	setInt(&cfg.Shim.Port, env("SHIMHARNESS_SHIM_PORT", "DISCORDSHIM_PORT"))
	setDuration(&cfg.Shim.DialTimeout, env("SHIMHARNESS_DIAL_TIMEOUT"))

	setDuration(&cfg.Harness.ReadyTimeout, env("SHIMHARNESS_READY_TIMEOUT"))
	setDuration(&cfg.Harness.MessageTimeout, env("SHIMHARNESS_MESSAGE_TIMEOUT"))

	setString(&cfg.Storage.Type, env("SHIMHARNESS_STORAGE_TYPE"))
	setString(&cfg.Storage.DatabaseURL, env("SHIMHARNESS_STORAGE_DATABASE_URL"))
	setString(&cfg.Storage.FilePath, env("SHIMHARNESS_STORAGE_FILE_PATH"))
	setBool(&cfg.Storage.SSLEnabled, env("SHIMHARNESS_STORAGE_SSL_ENABLED"))

	setString(&cfg.Log.Level, env("SHIMHARNESS_LOG_LEVEL"))

	return changed
}
