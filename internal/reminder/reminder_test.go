package reminder

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
	"github.com/edgard/calendarbot/internal/event"
	"github.com/edgard/calendarbot/internal/store"
)

type staticEvents []event.CalendarEvent

func (s staticEvents) Load(context.Context) ([]event.CalendarEvent, error) { return s, nil }

type recordingNotifier struct {
	texts []string
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	if n.err != nil {
		return n.err
	}
	n.texts = append(n.texts, text)
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return now.Add(d) }

func TestDue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		start time.Time
		want  bool
	}{
		{"exactly lead", at(48 * time.Hour), true},
		{"eleven hours early", at(37 * time.Hour), true},
		{"eleven hours late", at(59 * time.Hour), true},
		{"twelve hours early", at(36 * time.Hour), false},
		{"too far", at(72 * time.Hour), false},
		{"tomorrow", at(24 * time.Hour), false},
		{"past", at(-time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Due([]event.CalendarEvent{{Title: "E", Start: tt.start}}, now, 2)
			assert.Equal(t, tt.want, len(got) == 1)
		})
	}
}

func TestDueZeroLeadSkipsPast(t *testing.T) {
	t.Parallel()

	events := []event.CalendarEvent{
		{Title: "soon", Start: at(time.Hour)},
		{Title: "just passed", Start: at(-time.Hour)},
	}
	got := Due(events, now, 0)
	require.Len(t, got, 1)
	assert.Equal(t, "soon", got[0].Title)
}

func TestRunCycleAtMostOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	events := staticEvents{
		{Title: "Conference", Start: at(48 * time.Hour), Location: "Hall 1"},
		{Title: "Far away", Start: at(10 * 24 * time.Hour)},
	}
	ledger := store.NewLedger(filepath.Join(t.TempDir(), "sent_reminders.json"), discard())
	notifier := &recordingNotifier{}
	r := New(events, ledger, notifier, 2, config.DefaultReminderTemplate, discard(), nil)

	for i := 0; i < 5; i++ {
		_, err := r.RunCycle(ctx, now.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
	require.Len(t, notifier.texts, 1)
	assert.Contains(t, notifier.texts[0], "Title: Conference")

	// A fresh Reminder over the same ledger behaves like a restart.
	restarted := New(events, ledger, notifier, 2, config.DefaultReminderTemplate, discard(), nil)
	res, err := restarted.RunCycle(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Due)
	assert.Equal(t, 0, res.Sent)
	assert.Len(t, notifier.texts, 1)

	members, err := ledger.Members()
	require.NoError(t, err)
	assert.Equal(t, []string{"Conference:2025-06-12T12:00:00+00:00"}, members)
}

func TestRunCycleRetriesFailedNotifications(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	events := staticEvents{{Title: "Conference", Start: at(48 * time.Hour)}}
	ledger := store.NewLedger(filepath.Join(t.TempDir(), "sent_reminders.json"), discard())
	notifier := &recordingNotifier{err: ErrNoSubscribers}
	r := New(events, ledger, notifier, 2, config.DefaultReminderTemplate, discard(), nil)

	res, err := r.RunCycle(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	members, err := ledger.Members()
	require.NoError(t, err)
	assert.Empty(t, members)

	notifier.err = nil
	res, err = r.RunCycle(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Len(t, notifier.texts, 1)
}

func TestRunCycleDuplicateKeysNotifiedOnce(t *testing.T) {
	t.Parallel()

	start := at(48 * time.Hour)
	events := staticEvents{
		{Title: "Party", Start: start, SourceGroup: "a", SourceMessageID: 1},
		{Title: "Party", Start: start, SourceGroup: "b", SourceMessageID: 2},
	}
	ledger := store.NewLedger(filepath.Join(t.TempDir(), "sent.json"), discard())
	notifier := &recordingNotifier{}

	res, err := New(events, ledger, notifier, 2, "{title}", discard(), nil).RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Due)
	assert.Equal(t, 1, res.Sent)
	assert.Len(t, notifier.texts, 1)
}

type failingEvents struct{}

func (failingEvents) Load(context.Context) ([]event.CalendarEvent, error) {
	return nil, errors.New("disk error")
}

func TestRunCycleLoadError(t *testing.T) {
	t.Parallel()

	ledger := store.NewLedger(filepath.Join(t.TempDir(), "sent.json"), discard())
	_, err := New(failingEvents{}, ledger, &recordingNotifier{}, 2, "{title}", discard(), nil).RunCycle(context.Background(), now)
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	t.Parallel()

	long := make([]rune, 300)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name string
		ev   event.CalendarEvent
		want string
	}{
		{
			name: "all fields",
			ev: event.CalendarEvent{
				Title:        "Demo day",
				Start:        time.Date(2025, 6, 12, 15, 30, 0, 0, time.UTC),
				Location:     "Room 4",
				Description:  "Show your work",
				ExternalLink: "https://t.me/c/123/45",
			},
			want: "⏰ Reminder: Upcoming event in 2 days!\n\nTitle: Demo day\nDate: 2025-06-12 15:30\n" +
				"Location: Room 4\nDescription: Show your work\nLink: https://t.me/c/123/45\n",
		},
		{
			name: "optional fields empty",
			ev:   event.CalendarEvent{Title: "Deadline", Start: time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)},
			want: "⏰ Reminder: Upcoming event in 2 days!\n\nTitle: Deadline\nDate: 2025-06-12 00:00\n",
		},
		{
			name: "description truncated",
			ev:   event.CalendarEvent{Title: "T", Start: time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC), Description: string(long)},
			want: "⏰ Reminder: Upcoming event in 2 days!\n\nTitle: T\nDate: 2025-06-12 00:00\nDescription: " + string(long[:200]) + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Render(config.DefaultReminderTemplate, tt.ev, 2))
		})
	}
}
