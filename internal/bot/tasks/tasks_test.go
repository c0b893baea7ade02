package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/calendarbot/internal/config"
	"github.com/edgard/calendarbot/internal/database"
	"github.com/edgard/calendarbot/internal/event"
	"github.com/edgard/calendarbot/internal/pipeline"
	"github.com/edgard/calendarbot/internal/reminder"
)

type fakePipeline struct {
	msgs   []pipeline.Message
	failOn int64
}

func (f *fakePipeline) ProcessMessage(_ context.Context, msg pipeline.Message) ([]event.CalendarEvent, error) {
	if msg.MessageID == f.failOn {
		return nil, errors.New("disk full")
	}
	f.msgs = append(f.msgs, msg)
	return []event.CalendarEvent{{Title: "x"}}, nil
}

type fakeFetcher struct {
	cleaned int
	err     error
}

func (f *fakeFetcher) Fetch(_ context.Context, fileID, _ string) (string, func(), error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return "/tmp/" + fileID, func() { f.cleaned++ }, nil
}

type fakeReminders struct {
	calls int
	err   error
}

func (f *fakeReminders) RunCycle(context.Context, time.Time) (reminder.Result, error) {
	f.calls++
	return reminder.Result{Due: 1, Sent: 1}, f.err
}

func newDeps(t *testing.T) (TaskDeps, *fakePipeline, *fakeFetcher) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := database.NewDB(filepath.Join(t.TempDir(), "inbox.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db, log) })

	cfg := &config.Config{Scan: config.ScanConfig{BatchSize: 100, MessageDelay: time.Millisecond, Retention: 7 * 24 * time.Hour}}
	p := &fakePipeline{}
	f := &fakeFetcher{}
	return TaskDeps{
		Logger:    log,
		Config:    cfg,
		Inbox:     database.NewStore(db, log),
		Pipeline:  p,
		Fetcher:   f,
		Reminders: &fakeReminders{},
	}, p, f
}

func enqueue(t *testing.T, inbox database.Store, msgs ...*database.InboxMessage) {
	t.Helper()
	for _, m := range msgs {
		_, err := inbox.EnqueueMessage(context.Background(), m)
		require.NoError(t, err)
	}
}

func TestInboxScanDrainsQueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, p, f := newDeps(t)
	var rows []*database.InboxMessage
	for i := int64(1); i <= 25; i++ {
		rows = append(rows, &database.InboxMessage{ChatID: -1001234567890, ChatTitle: "Events", MessageID: i, Text: "m"})
	}
	rows[2].FileID = "file-3"
	rows[2].FileName = "flyer.pdf"
	enqueue(t, deps.Inbox, rows...)

	require.NoError(t, newInboxScanTask(deps)(ctx))

	require.Len(t, p.msgs, 25)
	assert.Equal(t, "https://t.me/c/1234567890/1", p.msgs[0].Link)
	assert.Equal(t, "/tmp/file-3", p.msgs[2].AttachmentPath)
	assert.Empty(t, p.msgs[3].AttachmentPath)
	assert.Equal(t, 1, f.cleaned)

	pending, err := deps.Inbox.GetPendingMessages(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Nothing left to do on the next run.
	require.NoError(t, newInboxScanTask(deps)(ctx))
	assert.Len(t, p.msgs, 25)
}

func TestInboxScanRespectsBatchSize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, p, _ := newDeps(t)
	deps.Config.Scan.BatchSize = 2
	enqueue(t, deps.Inbox,
		&database.InboxMessage{ChatID: 1, MessageID: 1, Text: "a"},
		&database.InboxMessage{ChatID: 1, MessageID: 2, Text: "b"},
		&database.InboxMessage{ChatID: 1, MessageID: 3, Text: "c"},
	)

	require.NoError(t, newInboxScanTask(deps)(ctx))
	assert.Len(t, p.msgs, 2)

	pending, err := deps.Inbox.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(3), pending[0].MessageID)
}

func TestInboxScanFailureKeepsMessageQueued(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, p, _ := newDeps(t)
	p.failOn = 2
	enqueue(t, deps.Inbox,
		&database.InboxMessage{ChatID: 1, MessageID: 1, Text: "a"},
		&database.InboxMessage{ChatID: 1, MessageID: 2, Text: "b"},
		&database.InboxMessage{ChatID: 1, MessageID: 3, Text: "c"},
	)

	require.Error(t, newInboxScanTask(deps)(ctx))

	pending, err := deps.Inbox.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(2), pending[0].MessageID)
}

func TestInboxScanDownloadFailureStillProcessesText(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, p, f := newDeps(t)
	f.err = errors.New("telegram unavailable")
	enqueue(t, deps.Inbox, &database.InboxMessage{ChatID: 1, MessageID: 1, Text: "a", FileID: "f"})

	require.NoError(t, newInboxScanTask(deps)(ctx))
	require.Len(t, p.msgs, 1)
	assert.Empty(t, p.msgs[0].AttachmentPath)
}

func TestRemindersTask(t *testing.T) {
	t.Parallel()

	deps, _, _ := newDeps(t)
	r := &fakeReminders{}
	deps.Reminders = r
	require.NoError(t, newRemindersTask(deps)(context.Background()))
	assert.Equal(t, 1, r.calls)

	r.err = errors.New("boom")
	assert.Error(t, newRemindersTask(deps)(context.Background()))
}

func TestSQLMaintenanceTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, _, _ := newDeps(t)
	enqueue(t, deps.Inbox, &database.InboxMessage{ChatID: 1, MessageID: 1, Text: "a"})
	require.NoError(t, newInboxScanTask(deps)(ctx))

	// Freshly processed rows survive the purge.
	require.NoError(t, newSQLMaintenanceTask(deps)(ctx))
	deps.Config.Scan.Retention = -time.Hour
	require.NoError(t, newSQLMaintenanceTask(deps)(ctx))

	inserted, err := deps.Inbox.EnqueueMessage(ctx, &database.InboxMessage{ChatID: 1, MessageID: 1, Text: "a"})
	require.NoError(t, err)
	assert.True(t, inserted, "purged row no longer blocks the unique key")
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()

	deps, _, _ := newDeps(t)
	got := RegisterAllTasks(deps)
	assert.Len(t, got, 3)
	for _, name := range []string{config.TaskInboxScan, config.TaskReminders, config.TaskSQLMaintenance} {
		assert.Contains(t, got, name)
	}
}
