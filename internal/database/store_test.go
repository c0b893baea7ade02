package database

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, now *time.Time) *sqlxStore {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "inbox.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { CloseDB(db, log) })

	s := NewStore(db, log).(*sqlxStore)
	s.now = func() time.Time { return *now }
	return s
}

func TestEnqueueIgnoresDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, &now)

	msg := &InboxMessage{ChatID: -100123, ChatTitle: "Events", MessageID: 7, Text: "Meetup friday", MessageDate: now}
	inserted, err := s.EnqueueMessage(ctx, msg)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, msg.ID)

	inserted, err = s.EnqueueMessage(ctx, &InboxMessage{ChatID: -100123, MessageID: 7, Text: "edited"})
	require.NoError(t, err)
	assert.False(t, inserted)

	pending, err := s.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Meetup friday", pending[0].Text)
	assert.Equal(t, "Events", pending[0].ChatTitle)
	assert.True(t, pending[0].MessageDate.Equal(now))
	assert.False(t, pending[0].ProcessedAt.Valid)
}

func TestPendingOrderAndMarking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, &now)

	for i := int64(1); i <= 5; i++ {
		_, err := s.EnqueueMessage(ctx, &InboxMessage{ChatID: 1, MessageID: i, Text: "m"})
		require.NoError(t, err)
	}

	first, err := s.GetPendingMessages(ctx, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, int64(1), first[0].MessageID)
	assert.Equal(t, int64(2), first[1].MessageID)

	require.NoError(t, s.MarkInboxProcessed(ctx, []int64{first[0].ID, first[1].ID}))
	require.NoError(t, s.MarkInboxProcessed(ctx, nil))

	rest, err := s.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.Equal(t, int64(3), rest[0].MessageID)

	_, err = s.GetPendingMessages(ctx, 0)
	assert.Error(t, err)
}

func TestPurgeProcessedBefore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, &now)

	for i := int64(1); i <= 3; i++ {
		_, err := s.EnqueueMessage(ctx, &InboxMessage{ChatID: 1, MessageID: i})
		require.NoError(t, err)
	}
	pending, err := s.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, s.MarkInboxProcessed(ctx, []int64{pending[0].ID}))

	now = now.Add(10 * 24 * time.Hour)
	require.NoError(t, s.MarkInboxProcessed(ctx, []int64{pending[1].ID}))

	n, err := s.PurgeProcessedBefore(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var left int
	require.NoError(t, s.db.GetContext(ctx, &left, `SELECT COUNT(*) FROM inbox_messages`))
	assert.Equal(t, 2, left)
}

func TestConsumeLoginCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, &now)

	require.NoError(t, s.SaveLoginCode(ctx, "alice", "123456"))

	ok, err := s.ConsumeLoginCode(ctx, "alice", "000000", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "wrong code")

	ok, err = s.ConsumeLoginCode(ctx, "bob", "123456", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "unknown user")

	ok, err = s.ConsumeLoginCode(ctx, "alice", "123456", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ConsumeLoginCode(ctx, "alice", "123456", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "single use")
}

func TestConsumeLoginCodeExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, &now)

	require.NoError(t, s.SaveLoginCode(ctx, "alice", "111111"))
	now = now.Add(11 * time.Minute)

	ok, err := s.ConsumeLoginCode(ctx, "alice", "111111", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// A new request replaces the stale code.
	require.NoError(t, s.SaveLoginCode(ctx, "alice", "222222"))
	ok, err = s.ConsumeLoginCode(ctx, "alice", "222222", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMaintenanceAndPing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()
	s := newTestStore(t, &now)

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.RunSQLMaintenance(ctx))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.RunSQLMaintenance(cancelled), context.Canceled)
}

func TestFileFromDSN(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"data/inbox.db", "data/inbox.db"},
		{"file:data/inbox.db?_pragma=busy_timeout(5000)", "data/inbox.db"},
		{"file:my%20dir/inbox.db", "my dir/inbox.db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, fileFromDSN(tt.in))
		})
	}
}
