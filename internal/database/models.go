package database

import (
	"database/sql"
	"time"
)

// InboxMessage is a chat message captured from Telegram and waiting for
// event extraction. FileID is the Telegram file of an attached document or
// photo, if any.
type InboxMessage struct {
	ID           int64  `db:"id"`
	ChatID       int64  `db:"chat_id"`
	ChatTitle    string `db:"chat_title"`
	ChatUsername string `db:"chat_username"`
	MessageID    int64  `db:"message_id"`
	Text         string `db:"text"`
	FileID       string `db:"file_id"`
	FileName     string `db:"file_name"`

	MessageDate time.Time    `db:"message_date"`
	CreatedAt   time.Time    `db:"created_at"`
	ProcessedAt sql.NullTime `db:"processed_at"`
}

// LoginCode is a pending one-time code for the HTTP login.
type LoginCode struct {
	Username  string    `db:"username"`
	Code      string    `db:"code"`
	CreatedAt time.Time `db:"created_at"`
}
