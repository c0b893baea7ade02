package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/calendarbot/internal/event"
)

type fakeTranscriber struct {
	text     string
	err      error
	gotMIME  string
	gotBytes int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, data []byte, mimeType string) (string, error) {
	f.gotMIME = mimeType
	f.gotBytes = len(data)
	return f.text, f.err
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func newTestExtractor(tr Transcriber) *Extractor {
	return NewExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)), tr)
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "note.txt", []byte("Team dinner on 2025-07-04 at 19:00"))
	got, err := newTestExtractor(nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, event.SourceText, got.Kind)
	assert.Equal(t, "Team dinner on 2025-07-04 at 19:00", got.Content)
	assert.False(t, got.Empty())
}

func TestExtractImage(t *testing.T) {
	t.Parallel()

	tr := &fakeTranscriber{text: "Workshop 2025-08-01 10:00"}
	path := writeFile(t, "flyer.png", pngHeader)

	got, err := newTestExtractor(tr).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, event.SourceImage, got.Kind)
	assert.Equal(t, "Workshop 2025-08-01 10:00", got.Content)
	assert.Equal(t, "image/png", tr.gotMIME)
	assert.Equal(t, len(pngHeader), tr.gotBytes)
}

func TestExtractImageErrors(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "flyer.png", pngHeader)

	_, err := newTestExtractor(nil).Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupported)

	boom := errors.New("quota exceeded")
	_, err = newTestExtractor(&fakeTranscriber{err: boom}).Extract(context.Background(), path)
	assert.ErrorIs(t, err, boom)
}

func TestExtractUnsupported(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "archive.zip", []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00"))
	_, err := newTestExtractor(nil).Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestExtractBrokenPDF(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "broken.pdf", []byte("%PDF-1.4\nnot really a pdf"))
	_, err := newTestExtractor(nil).Extract(context.Background(), path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupported)
}

func TestTextEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, Text{Content: " \n\t"}.Empty())
	assert.False(t, Text{Content: "x"}.Empty())
}
