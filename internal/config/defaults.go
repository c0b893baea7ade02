package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultOracleProvider    = "gemini"
	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultOracleTemperature = 0.1
	DefaultOracleTimeout     = 2 * time.Minute
	DefaultOracleMaxRetries  = 3
	DefaultOracleRetryDelay  = 2 * time.Second

	DefaultStorageDir = "data"

	DefaultScanBatchSize    = 100
	DefaultScanInterval     = time.Minute
	DefaultScanMessageDelay = 500 * time.Millisecond
	DefaultScanRetention    = 7 * 24 * time.Hour

	DefaultReminderLeadDays = 2
	DefaultReminderInterval = time.Hour

	// DefaultMinConfidence is fixed; records below it are never admitted.
	DefaultMinConfidence = 0.5

	DefaultMirrorAttempts = 3

	DefaultHTTPListen  = ":8080"
	DefaultMaxUploadMB = 20
)

// Task names known to the scheduler.
const (
	TaskInboxScan      = "inbox_scan"
	TaskReminders      = "reminders"
	TaskSQLMaintenance = "sql_maintenance"
)

// DefaultReminderTemplate renders one reminder. Placeholders:
// {days}, {title}, {date}, {location}, {description}, {link}.
const DefaultReminderTemplate = "⏰ Reminder: Upcoming event in {days} days!\n\n" +
	"Title: {title}\n" +
	"Date: {date}\n" +
	"{location}{description}{link}"

// DefaultTasks returns the default scheduler table. Interval tasks leave
// Schedule empty and run at scan.interval / reminder.interval.
func DefaultTasks() map[string]TaskConfig {
	return map[string]TaskConfig{
		TaskInboxScan:      {Enabled: true},
		TaskReminders:      {Enabled: true},
		TaskSQLMaintenance: {Enabled: true, Schedule: "0 0 3 * * *"},
	}
}

// DefaultMessages holds the stock bot texts.
var DefaultMessages = MessagesConfig{
	Welcome:      "👋 Hi! I collect events posted in the watched groups. Use /subscribe to get reminders and /events to see what's coming up.",
	Help:         "/subscribe - receive reminders in this chat\n/unsubscribe - stop reminders\n/events - list upcoming events\n/help - show this message",
	Subscribed:   "✅ This chat will receive event reminders.",
	Unsubscribed: "🔕 This chat will no longer receive reminders.",
	NoEvents:     "📭 No upcoming events.",
	EventsHeader: "📅 Upcoming events:",
	GeneralError: "❌ An error occurred. Please try again later.",
	LoginCode:    "🔐 Your calendarbot login code is %s. It expires in 10 minutes.",
}
