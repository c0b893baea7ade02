package config

import (
	"strconv"
	"strings"
	"time"
)

// IsAllowedUsername reports whether username may use the HTTP surface.
// Matching ignores case and a leading "@".
func (c *Config) IsAllowedUsername(username string) bool {
	username = normalizeUsername(username)
	if username == "" {
		return false
	}
	for _, u := range c.Telegram.AllowedUsernames {
		if u == username {
			return true
		}
	}
	return false
}

// WatchesChat reports whether messages from the chat should be captured.
// A group entry matches either the numeric chat ID or the chat username.
func (c *Config) WatchesChat(chatID int64, username string) bool {
	id := strconv.FormatInt(chatID, 10)
	username = normalizeUsername(username)
	for _, g := range c.Telegram.Groups {
		if g == id {
			return true
		}
		if username != "" && normalizeUsername(g) == username {
			return true
		}
	}
	return false
}

// TaskEnabled reports whether the named task should be scheduled.
func (c *Config) TaskEnabled(name string) bool {
	t, ok := c.Scheduler.Tasks[name]
	return ok && t.Enabled
}

// OCRKey returns the key used for image transcription.
func (c *Config) OCRKey() string {
	if c.OCR.APIKey != "" {
		return c.OCR.APIKey
	}
	if c.Oracle.Provider == "gemini" {
		return c.Oracle.APIKey
	}
	return ""
}

func normalizeUsername(u string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(u), "@"))
}

// TaskInterval returns the run interval of an interval-driven task, or
// zero for tasks that only run on a cron schedule.
func (c *Config) TaskInterval(name string) time.Duration {
	switch name {
	case TaskInboxScan:
		return c.Scan.Interval
	case TaskReminders:
		return c.Reminder.Interval
	default:
		return 0
	}
}
