package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/calendarbot/internal/bot/handlers"
	"github.com/edgard/calendarbot/internal/reminder"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeSender struct {
	mu   sync.Mutex
	sent map[any]string
	fail map[int64]bool
}

func (f *fakeSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := p.ChatID.(int64); ok && f.fail[id] {
		return nil, errors.New("forbidden: bot was kicked")
	}
	if f.sent == nil {
		f.sent = map[any]string{}
	}
	f.sent[p.ChatID] = p.Text
	return &models.Message{ID: 1}, nil
}

type staticSubscribers []string

func (s staticSubscribers) Members() ([]string, error) { return s, nil }

func TestMessageLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		chatID   int64
		username string
		want     string
	}{
		{"public group", -1001234567890, "goevents", "https://t.me/goevents/42"},
		{"at prefixed username", -1001234567890, "@goevents", "https://t.me/goevents/42"},
		{"private supergroup", -1001234567890, "", "https://t.me/c/1234567890/42"},
		{"basic group", -4567, "", ""},
		{"private chat", 4567, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MessageLink(tt.chatID, tt.username, 42))
		})
	}
}

func TestNotifierDeliversToSubscribers(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{fail: map[int64]bool{200: true}}
	n := NewNotifier(sender, staticSubscribers{"100", "200", "junk"}, discard())

	require.NoError(t, n.Notify(context.Background(), "hello"))
	assert.Equal(t, map[any]string{int64(100): "hello"}, sender.sent)
}

func TestNotifierFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	err := NewNotifier(&fakeSender{}, staticSubscribers{}, discard()).Notify(ctx, "x")
	assert.ErrorIs(t, err, reminder.ErrNoSubscribers)

	sender := &fakeSender{fail: map[int64]bool{1: true, 2: true}}
	err = NewNotifier(sender, staticSubscribers{"1", "2"}, discard()).Notify(ctx, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 1")
	assert.Contains(t, err.Error(), "chat 2")
}

type fakeFiles struct{ path string }

func (f fakeFiles) GetFile(_ context.Context, p *bot.GetFileParams) (*models.File, error) {
	if p.FileID == "missing" {
		return nil, errors.New("file not found")
	}
	return &models.File{FileID: p.FileID, FilePath: f.path}, nil
}

func TestFileFetcher(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file/botTOKEN/documents/file_1.pdf" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "%PDF-1.4 flyer")
	}))
	t.Cleanup(srv.Close)

	f := NewFileFetcher(fakeFiles{path: "documents/file_1.pdf"}, "TOKEN")
	f.baseURL = srv.URL

	path, cleanup, err := f.Fetch(context.Background(), "abc", "")
	require.NoError(t, err)
	assert.Equal(t, ".pdf", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, _, err = f.Fetch(context.Background(), "missing", "x.pdf")
	assert.Error(t, err)

	f2 := NewFileFetcher(fakeFiles{path: "documents/other.pdf"}, "TOKEN")
	f2.baseURL = srv.URL
	_, _, err = f2.Fetch(context.Background(), "abc", "x.pdf")
	assert.ErrorContains(t, err, "404")
}

func TestCodeSender(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	resolve := func(_ context.Context, username string) (int64, error) {
		if username == "alice" {
			return 77, nil
		}
		return 0, errors.New("chat not found")
	}
	c := NewCodeSender(sender, resolve, "code: %s")

	require.NoError(t, c.SendCode(context.Background(), "alice", "123456"))
	assert.Equal(t, "code: 123456", sender.sent[int64(77)])
	assert.Error(t, c.SendCode(context.Background(), "mallory", "1"))
}

type fakeRegistrar struct{ patterns []string }

func (f *fakeRegistrar) RegisterHandler(_ bot.HandlerType, pattern string, _ bot.MatchType, _ bot.HandlerFunc, _ ...bot.Middleware) string {
	f.patterns = append(f.patterns, pattern)
	return pattern
}

func TestRegisterHandlersAppliesMiddlewareInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, u *models.Update) {
				order = append(order, name)
				next(ctx, b, u)
			}
		}
	}
	h := applyMiddleware(func(context.Context, *bot.Bot, *models.Update) { order = append(order, "handler") },
		[]bot.Middleware{mw("outer"), mw("inner")})
	h(context.Background(), nil, &models.Update{})
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)

	reg := &fakeRegistrar{}
	require.NoError(t, RegisterHandlers(reg, discard(), map[string]handlers.RegisteredHandler{
		"/events": {Pattern: "events", Handler: h},
		"/nil":    {Pattern: "nil"},
	}))
	assert.Equal(t, []string{"events"}, reg.patterns)
}
