package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// CALENDARBOT_TELEGRAM_TOKEN or CALENDARBOT_REMINDER_LEAD_DAYS.
const EnvPrefix = "CALENDARBOT"

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// LoadConfig loads and validates configuration from:
//  1. Default values
//  2. the YAML file at path (optional)
//  3. CALENDARBOT_* environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to read config file %s: %w", ErrConfiguration, path, err)
		}
		slog.Info("Configuration file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrConfiguration, err)
	}

	cfg.Telegram.Groups = splitList(cfg.Telegram.Groups)
	cfg.Telegram.AllowedUsernames = normalizeUsernames(splitList(cfg.Telegram.AllowedUsernames))
	cfg.HTTP.CORSOrigins = splitList(cfg.HTTP.CORSOrigins)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate runs struct validation plus the cross-field rules.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if cfg.OCR.Enabled && cfg.OCR.APIKey == "" && cfg.Oracle.Provider != "gemini" {
		return fmt.Errorf("%w: ocr.api_key is required when the oracle provider is %q", ErrConfiguration, cfg.Oracle.Provider)
	}
	return nil
}

// setDefaults registers a default for every optional key. Keys need a
// default (even an empty one) for AutomaticEnv to reach them on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.groups", []string{})
	v.SetDefault("telegram.allowed_usernames", []string{})

	v.SetDefault("oracle.provider", DefaultOracleProvider)
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.model", DefaultGeminiModel)
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.temperature", DefaultOracleTemperature)
	v.SetDefault("oracle.timeout", DefaultOracleTimeout)
	v.SetDefault("oracle.max_retries", DefaultOracleMaxRetries)
	v.SetDefault("oracle.retry_delay", DefaultOracleRetryDelay)

	v.SetDefault("ocr.enabled", true)
	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.model", DefaultGeminiModel)

	v.SetDefault("storage.dir", DefaultStorageDir)
	v.SetDefault("storage.inbox_path", DefaultStorageDir+"/inbox.db")

	v.SetDefault("scan.batch_size", DefaultScanBatchSize)
	v.SetDefault("scan.interval", DefaultScanInterval)
	v.SetDefault("scan.message_delay", DefaultScanMessageDelay)
	v.SetDefault("scan.retention", DefaultScanRetention)

	v.SetDefault("reminder.lead_days", DefaultReminderLeadDays)
	v.SetDefault("reminder.interval", DefaultReminderInterval)
	v.SetDefault("reminder.template", DefaultReminderTemplate)

	v.SetDefault("acceptance.min_confidence", DefaultMinConfidence)

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.credentials_file", "")
	v.SetDefault("mirror.calendar_id", "")
	v.SetDefault("mirror.attempts", DefaultMirrorAttempts)

	v.SetDefault("http.listen", DefaultHTTPListen)
	v.SetDefault("http.require_login", false)
	v.SetDefault("http.max_upload_mb", DefaultMaxUploadMB)
	v.SetDefault("http.cors_origins", []string{})

	v.SetDefault("scheduler.tasks", DefaultTasks())

	v.SetDefault("messages.welcome", DefaultMessages.Welcome)
	v.SetDefault("messages.help", DefaultMessages.Help)
	v.SetDefault("messages.subscribed", DefaultMessages.Subscribed)
	v.SetDefault("messages.unsubscribed", DefaultMessages.Unsubscribed)
	v.SetDefault("messages.no_events", DefaultMessages.NoEvents)
	v.SetDefault("messages.events_header", DefaultMessages.EventsHeader)
	v.SetDefault("messages.general_error", DefaultMessages.GeneralError)
	v.SetDefault("messages.login_code", DefaultMessages.LoginCode)
}

// splitList accepts both YAML lists and a single comma separated value
// coming from the environment.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func normalizeUsernames(in []string) []string {
	for i, u := range in {
		in[i] = normalizeUsername(u)
	}
	return in
}
