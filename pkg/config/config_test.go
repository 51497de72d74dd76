package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "OPENAI_API_BASE", "OPENAI_MODEL", "BOT_TOKEN"} {
		t.Setenv(k, "")
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, "smart", cfg.Compiler.DependencyMode)
	assert.Equal(t, "auto", cfg.Compiler.ChainStrategy)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.RigidBuffer)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.TickInterval)
	assert.False(t, cfg.OpenAI.Enabled())
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "mise.yaml")
	content := `
compiler:
  dependency_mode: sequential
  chain_strategy: narrative
scheduler:
  rigid_buffer: 3m
telegram:
  chat_id: 42
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("MISE_SCHEDULER_RIGID_BUFFER", "7m")
	t.Setenv("MISE_OPENAI_API_KEY", "sk-from-env-123456")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sequential", cfg.Compiler.DependencyMode)
	assert.Equal(t, "narrative", cfg.Compiler.ChainStrategy)
	assert.Equal(t, 7*time.Minute, cfg.Scheduler.RigidBuffer)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
	assert.Equal(t, "sk-from-env-123456", cfg.OpenAI.APIKey)
	assert.True(t, cfg.OpenAI.Enabled())
}

func TestLegacyEnvFallback(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("OPENAI_MODEL", "legacy-model")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "legacy-model", cfg.OpenAI.Model)
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Compiler.DependencyMode = "psychic"
	assert.Error(t, cfg.Validate())
}

func TestEnvKeyMapping(t *testing.T) {
	assert.Equal(t, "scheduler.tick_interval", envKey("MISE_SCHEDULER_TICK_INTERVAL"))
	assert.Equal(t, "openai.api_key", envKey("MISE_OPENAI_API_KEY"))
	assert.Equal(t, "debug", envKey("MISE_DEBUG"))
}

func TestRedacted(t *testing.T) {
	cfg := Config{OpenAI: OpenAIConfig{APIKey: "sk-1234567890"}, Telegram: TelegramConfig{Token: "short"}}
	r := cfg.Redacted()
	assert.Equal(t, "sk-12345...REDACTED...", r.OpenAI.APIKey)
	assert.Equal(t, "REDACTED", r.Telegram.Token)
	assert.Equal(t, "sk-1234567890", cfg.OpenAI.APIKey)
}
