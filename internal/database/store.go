package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store is the inbox data access layer.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// EnqueueMessage stores a captured message. A message already in the
	// inbox (same chat and message ID) is ignored; the result reports
	// whether a row was inserted.
	EnqueueMessage(ctx context.Context, msg *InboxMessage) (bool, error)

	// GetPendingMessages returns up to limit unprocessed messages, oldest first.
	GetPendingMessages(ctx context.Context, limit int) ([]*InboxMessage, error)

	// MarkInboxProcessed stamps processed_at on the given rows.
	MarkInboxProcessed(ctx context.Context, ids []int64) error

	// PurgeProcessedBefore deletes rows processed before t.
	PurgeProcessedBefore(ctx context.Context, t time.Time) (int64, error)

	// SaveLoginCode stores code for username, replacing any pending one.
	SaveLoginCode(ctx context.Context, username, code string) error

	// ConsumeLoginCode reports whether code is the pending code for
	// username and younger than maxAge. A matching code is deleted so it
	// can be used once; an expired one is deleted as well.
	ConsumeLoginCode(ctx context.Context, username, code string, maxAge time.Duration) (bool, error)

	// RunSQLMaintenance performs VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a Store backed by a migrated database.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "inbox"),
		now:    time.Now,
	}
}

// dbTime normalizes timestamps so their text encoding sorts chronologically.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("inbox database ping failed: %w", err)
	}
	return nil
}

func (s *sqlxStore) EnqueueMessage(ctx context.Context, msg *InboxMessage) (bool, error) {
	if msg == nil {
		return false, errors.New("cannot enqueue nil message")
	}
	if msg.MessageDate.IsZero() {
		msg.MessageDate = s.now()
	}
	msg.MessageDate = dbTime(msg.MessageDate)
	msg.CreatedAt = dbTime(s.now())

	query := `INSERT OR IGNORE INTO inbox_messages
		(chat_id, chat_title, chat_username, message_id, text, file_id, file_name, message_date, created_at)
		VALUES (:chat_id, :chat_title, :chat_username, :message_id, :text, :file_id, :file_name, :message_date, :created_at)`

	res, err := s.db.NamedExecContext(ctx, query, msg)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to enqueue message", "error", err, "chat_id", msg.ChatID, "message_id", msg.MessageID)
		return false, fmt.Errorf("failed to enqueue message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		s.logger.DebugContext(ctx, "Message already in inbox", "chat_id", msg.ChatID, "message_id", msg.MessageID)
		return false, nil
	}
	if id, err := res.LastInsertId(); err == nil {
		msg.ID = id
	}
	return true, nil
}

func (s *sqlxStore) GetPendingMessages(ctx context.Context, limit int) ([]*InboxMessage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit %d", limit)
	}

	var msgs []*InboxMessage
	query := `SELECT id, chat_id, chat_title, chat_username, message_id, text, file_id, file_name,
			message_date, created_at, processed_at
		FROM inbox_messages
		WHERE processed_at IS NULL
		ORDER BY id ASC
		LIMIT ?`
	if err := s.db.SelectContext(ctx, &msgs, query, limit); err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch pending messages", "error", err)
		return nil, fmt.Errorf("failed to fetch pending messages: %w", err)
	}
	return msgs, nil
}

func (s *sqlxStore) MarkInboxProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rbErr)
		}
	}()

	query, args, err := sqlx.In(`UPDATE inbox_messages SET processed_at = ? WHERE id IN (?)`, dbTime(s.now()), ids)
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to mark inbox messages", "error", err)
		return fmt.Errorf("failed to mark inbox messages processed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && int(n) != len(ids) {
		s.logger.WarnContext(ctx, "Not every inbox message was marked", "requested", len(ids), "affected", n)
	}
	return nil
}

func (s *sqlxStore) PurgeProcessedBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM inbox_messages WHERE processed_at IS NOT NULL AND processed_at < ?`, dbTime(t))
	if err != nil {
		return 0, fmt.Errorf("failed to purge inbox: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	s.logger.InfoContext(ctx, "Purged processed inbox messages", "deleted", n, "before", t.UTC())
	return n, nil
}

func (s *sqlxStore) SaveLoginCode(ctx context.Context, username, code string) error {
	if username == "" || code == "" {
		return errors.New("username and code are required")
	}
	row := LoginCode{Username: username, Code: code, CreatedAt: dbTime(s.now())}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO login_codes (username, code, created_at) VALUES (:username, :code, :created_at)
		ON CONFLICT(username) DO UPDATE SET code = excluded.code, created_at = excluded.created_at`, row)
	if err != nil {
		return fmt.Errorf("failed to save login code: %w", err)
	}
	return nil
}

func (s *sqlxStore) ConsumeLoginCode(ctx context.Context, username, code string, maxAge time.Duration) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rbErr)
		}
	}()

	var pending LoginCode
	err = tx.GetContext(ctx, &pending,
		`SELECT username, code, created_at FROM login_codes WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read login code: %w", err)
	}

	expired := s.now().Sub(pending.CreatedAt) > maxAge
	if !expired && pending.Code != code {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM login_codes WHERE username = ?`, username); err != nil {
		return false, fmt.Errorf("failed to delete login code: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return !expired, nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Starting inbox maintenance (VACUUM)")
	// VACUUM cannot run inside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM timed out or was cancelled", "error", err)
		return fmt.Errorf("inbox maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "VACUUM failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}
	s.logger.InfoContext(ctx, "Inbox maintenance completed")
	return nil
}
