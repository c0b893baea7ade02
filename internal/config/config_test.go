package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
telegram:
  token: "123:abc"
  groups: ["-1001234567890", "@eventsgroup"]
  allowed_usernames: ["@Alice", "bob"]
oracle:
  api_key: "key"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Logger.Level)
	assert.Equal(t, "gemini", cfg.Oracle.Provider)
	assert.Equal(t, DefaultOracleTimeout, cfg.Oracle.Timeout)
	assert.Equal(t, 100, cfg.Scan.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Scan.MessageDelay)
	assert.Equal(t, 2, cfg.Reminder.LeadDays)
	assert.Equal(t, time.Hour, cfg.Reminder.Interval)
	assert.Equal(t, DefaultReminderTemplate, cfg.Reminder.Template)
	assert.InDelta(t, 0.5, cfg.Acceptance.MinConfidence, 1e-9)
	assert.Equal(t, "data/events.json", cfg.Storage.EventsPath())
	assert.True(t, cfg.TaskEnabled(TaskInboxScan))
	assert.True(t, cfg.TaskEnabled(TaskSQLMaintenance))
	assert.Equal(t, []string{"alice", "bob"}, cfg.Telegram.AllowedUsernames)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("CALENDARBOT_REMINDER_LEAD_DAYS", "5")
	t.Setenv("CALENDARBOT_TELEGRAM_GROUPS", "-100111,-100222")
	t.Setenv("CALENDARBOT_ORACLE_PROVIDER", "openai")
	t.Setenv("CALENDARBOT_ORACLE_MODEL", "gpt-4o-mini")
	t.Setenv("CALENDARBOT_OCR_ENABLED", "false")

	cfg, err := LoadConfig(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Reminder.LeadDays)
	assert.Equal(t, []string{"-100111", "-100222"}, cfg.Telegram.Groups)
	assert.Equal(t, "openai", cfg.Oracle.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Oracle.Model)
}

func TestLoadConfigAnthropicProvider(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalYAML+"  provider: anthropic\n  model: claude-sonnet-4-5\nocr:\n  enabled: false\n"))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Oracle.Provider)
	assert.Empty(t, cfg.OCRKey())
}

func TestLoadConfigValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing token",
			yaml: "telegram:\n  groups: [\"-100\"]\noracle:\n  api_key: k\n",
		},
		{
			name: "missing groups",
			yaml: "telegram:\n  token: t\noracle:\n  api_key: k\n",
		},
		{
			name: "missing oracle key",
			yaml: "telegram:\n  token: t\n  groups: [\"-100\"]\n",
		},
		{
			name: "confidence threshold changed",
			yaml: minimalYAML + "acceptance:\n  min_confidence: 0.7\n",
		},
		{
			name: "mirror without calendar",
			yaml: minimalYAML + "mirror:\n  enabled: true\n  credentials_file: creds.json\n",
		},
		{
			name: "openai ocr without key",
			yaml: minimalYAML + "  provider: openai\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestWatchesChat(t *testing.T) {
	t.Parallel()

	cfg := &Config{Telegram: TelegramConfig{Groups: []string{"-1001234567890", "@EventsGroup"}}}

	assert.True(t, cfg.WatchesChat(-1001234567890, ""))
	assert.True(t, cfg.WatchesChat(-1009999, "eventsgroup"))
	assert.False(t, cfg.WatchesChat(-1009999, "other"))
	assert.False(t, cfg.WatchesChat(42, ""))
}

func TestIsAllowedUsername(t *testing.T) {
	t.Parallel()

	cfg := &Config{Telegram: TelegramConfig{AllowedUsernames: []string{"alice"}}}

	assert.True(t, cfg.IsAllowedUsername("alice"))
	assert.True(t, cfg.IsAllowedUsername("@Alice"))
	assert.False(t, cfg.IsAllowedUsername("mallory"))
	assert.False(t, cfg.IsAllowedUsername(""))
}

func TestOCRKey(t *testing.T) {
	t.Parallel()

	cfg := &Config{Oracle: OracleConfig{Provider: "gemini", APIKey: "oracle"}}
	assert.Equal(t, "oracle", cfg.OCRKey())

	cfg.OCR.APIKey = "ocr"
	assert.Equal(t, "ocr", cfg.OCRKey())

	cfg = &Config{Oracle: OracleConfig{Provider: "openai", APIKey: "oracle"}}
	assert.Empty(t, cfg.OCRKey())
}
