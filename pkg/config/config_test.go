package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

var envKeys = []string{
	"BOT_TOKEN", "SHIMHARNESS_BOT_TOKEN",
	"CHANNEL_ID", "SHIMHARNESS_CHANNEL_ID",
	"HEALTH_CHECK_CHANNEL_ID", "SHIMHARNESS_HEALTH_CHECK_CHANNEL_ID",
	"DISCORDSHIM_ADDR", "SHIMHARNESS_SHIM_ADDR",
	"DISCORDSHIM_PORT", "SHIMHARNESS_SHIM_PORT",
	"SHIMHARNESS_DIAL_TIMEOUT", "SHIMHARNESS_READY_TIMEOUT", "SHIMHARNESS_MESSAGE_TIMEOUT",
	"SHIMHARNESS_STORAGE_TYPE", "SHIMHARNESS_STORAGE_DATABASE_URL",
	"SHIMHARNESS_STORAGE_FILE_PATH", "SHIMHARNESS_STORAGE_SSL_ENABLED",
	"SHIMHARNESS_LOG_LEVEL",
}

func cleanEnv(t *testing.T) {
	t.Helper()
	keyring.MockInit()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultShimHost, cfg.Shim.Host)
	assert.Equal(t, DefaultShimPort, cfg.Shim.Port)
	assert.Equal(t, 10*time.Second, cfg.Shim.DialTimeout)
	assert.Equal(t, 300*time.Second, cfg.Harness.MessageTimeout)
	assert.Empty(t, cfg.Discord.Token)
	assert.Empty(t, cfg.Storage.Type)
}

func TestEnvOverridesUseUnprefixedNames(t *testing.T) {
	cleanEnv(t)
	t.Setenv("BOT_TOKEN", "token-abcdef")
	t.Setenv("CHANNEL_ID", "467700763775205396")
	t.Setenv("DISCORDSHIM_ADDR", "localhost")
	t.Setenv("DISCORDSHIM_PORT", "12345")
	t.Setenv("SHIMHARNESS_MESSAGE_TIMEOUT", "30")
	t.Setenv("SHIMHARNESS_READY_TIMEOUT", "1m")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "token-abcdef", cfg.Discord.Token)
	assert.Equal(t, "localhost", cfg.Shim.Host)
	assert.Equal(t, 12345, cfg.Shim.Port)
	assert.Equal(t, 30*time.Second, cfg.Harness.MessageTimeout)
	assert.Equal(t, time.Minute, cfg.Harness.ReadyTimeout)

	id, err := cfg.ChannelIDUint()
	require.NoError(t, err)
	assert.Equal(t, uint64(467700763775205396), id)
	assert.NoError(t, cfg.ValidateScraper())
}

func TestPrefixedEnvWins(t *testing.T) {
	cleanEnv(t)
	t.Setenv("CHANNEL_ID", "1")
	t.Setenv("SHIMHARNESS_CHANNEL_ID", "2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "2", cfg.Discord.ChannelID)
}

func TestYAMLFileThenEnv(t *testing.T) {
	cleanEnv(t)
	path := filepath.Join(t.TempDir(), "harness.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
discord:
  channel_id: "42"
shim:
  host: shim.internal
  port: 4000
harness:
  message_timeout: 45s
storage:
  type: sqlite
  database_url: /tmp/runs.db
`), 0o644))
	t.Setenv("DISCORDSHIM_PORT", "4001")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "42", cfg.Discord.ChannelID)
	assert.Equal(t, "shim.internal", cfg.Shim.Host)
	assert.Equal(t, 4001, cfg.Shim.Port)
	assert.Equal(t, 45*time.Second, cfg.Harness.MessageTimeout)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 10*time.Second, cfg.Shim.DialTimeout)
}

func TestMissingFileFails(t *testing.T) {
	cleanEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestKeyringFallback(t *testing.T) {
	cleanEnv(t)
	require.NoError(t, SaveToken("from-keyring"))
	t.Cleanup(func() { _ = DeleteToken() })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", cfg.Discord.Token)

	t.Setenv("BOT_TOKEN", "from-env")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Discord.Token)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Shim.Host = ""
	cfg.Shim.Port = 70000
	cfg.Discord.ChannelID = "general"

	err := cfg.ValidateScraper()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "shim host is empty")
	assert.Contains(t, msg, "out of range")
	assert.Contains(t, msg, `invalid channel id "general"`)
	assert.Contains(t, msg, "bot token")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "*****abc", MaskSecret("abc"))
	assert.Equal(t, "*****vwxyz", MaskSecret("abcdefghijklmnopqrstuvwxyz"))
}
