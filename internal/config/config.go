// Package config provides configuration loading, validation, and management
// for calendarbot. It reads a YAML file, applies defaults for every optional
// key, lets CALENDARBOT_* environment variables override them and validates
// the result before any component is built.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config is the root configuration structure. It is constructed once at
// startup and passed by pointer to every component.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Scan       ScanConfig       `mapstructure:"scan"`
	Reminder   ReminderConfig   `mapstructure:"reminder"`
	Acceptance AcceptanceConfig `mapstructure:"acceptance"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Messages   MessagesConfig   `mapstructure:"messages"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot credentials and the chats to watch.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// Groups lists watched chats, either numeric chat IDs or @usernames.
	Groups []string `mapstructure:"groups" validate:"required,min=1,dive,required"`
	// AllowedUsernames may log into the HTTP surface.
	AllowedUsernames []string `mapstructure:"allowed_usernames" validate:"dive,required"`

	// BotInfo is filled at runtime from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// OracleConfig selects and configures the event extraction model.
type OracleConfig struct {
	Provider    string        `mapstructure:"provider"    validate:"oneof=gemini openai anthropic"`
	APIKey      string        `mapstructure:"api_key"     validate:"required"`
	Model       string        `mapstructure:"model"       validate:"required"`
	BaseURL     string        `mapstructure:"base_url"    validate:"omitempty,url"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"min=0"`
}

// OCRConfig configures image transcription. Transcription uses the Gemini
// API; an empty APIKey falls back to the oracle key when the oracle is Gemini.
type OCRConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// StorageConfig locates the file-backed state.
type StorageConfig struct {
	Dir       string `mapstructure:"dir"        validate:"required"`
	InboxPath string `mapstructure:"inbox_path" validate:"required"`
}

// EventsPath returns the events file path.
func (s StorageConfig) EventsPath() string { return s.Dir + "/events.json" }

// ProcessedPath returns the processed message ledger path.
func (s StorageConfig) ProcessedPath() string { return s.Dir + "/processed_messages.json" }

// SentRemindersPath returns the sent reminder ledger path.
func (s StorageConfig) SentRemindersPath() string { return s.Dir + "/sent_reminders.json" }

// SubscribersPath returns the subscribed chat ledger path.
func (s StorageConfig) SubscribersPath() string { return s.Dir + "/subscribed_chat_ids.json" }

// DismissedPath returns the dismissed event ledger path.
func (s StorageConfig) DismissedPath() string { return s.Dir + "/dismissed_events.json" }

// ScanConfig controls how the inbox is drained.
type ScanConfig struct {
	BatchSize    int           `mapstructure:"batch_size"    validate:"min=1,max=1000"`
	Interval     time.Duration `mapstructure:"interval"      validate:"min=1s"`
	MessageDelay time.Duration `mapstructure:"message_delay" validate:"min=0"`
	Retention    time.Duration `mapstructure:"retention"     validate:"min=1h"`
}

// ReminderConfig controls the reminder cycle.
type ReminderConfig struct {
	LeadDays int           `mapstructure:"lead_days" validate:"min=0,max=365"`
	Interval time.Duration `mapstructure:"interval"  validate:"min=1s"`
	Template string        `mapstructure:"template"  validate:"required"`
}

// AcceptanceConfig holds the admission gate parameters.
type AcceptanceConfig struct {
	MinConfidence float64 `mapstructure:"min_confidence" validate:"eq=0.5"`
}

// MirrorConfig enables the Google Calendar mirror.
type MirrorConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	CredentialsFile string `mapstructure:"credentials_file" validate:"required_if=Enabled true"`
	CalendarID      string `mapstructure:"calendar_id"      validate:"required_if=Enabled true"`
	Attempts        uint   `mapstructure:"attempts"         validate:"min=1,max=10"`
}

// HTTPConfig configures the web surface.
type HTTPConfig struct {
	Listen       string `mapstructure:"listen"        validate:"required"`
	RequireLogin bool   `mapstructure:"require_login"`
	MaxUploadMB  int64  `mapstructure:"max_upload_mb" validate:"min=1,max=100"`

	// CORSOrigins lists browser origins allowed to call the API with
	// credentials. Empty disables CORS.
	CORSOrigins []string `mapstructure:"cors_origins" validate:"dive,url"`
}

// SchedulerConfig maps task names to their settings.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig configures one scheduled task. Schedule is a six-field cron
// expression; when empty the task's interval from its own section is used.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MessagesConfig holds user-facing bot texts.
type MessagesConfig struct {
	Welcome      string `mapstructure:"welcome"       validate:"required"`
	Help         string `mapstructure:"help"          validate:"required"`
	Subscribed   string `mapstructure:"subscribed"    validate:"required"`
	Unsubscribed string `mapstructure:"unsubscribed"  validate:"required"`
	NoEvents     string `mapstructure:"no_events"     validate:"required"`
	EventsHeader string `mapstructure:"events_header" validate:"required"`
	GeneralError string `mapstructure:"general_error" validate:"required"`
	LoginCode    string `mapstructure:"login_code"    validate:"required"`
}
