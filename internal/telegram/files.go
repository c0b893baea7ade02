package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	fileDownloadTimeout = 60 * time.Second
	// Bot API downloads are capped at 20 MB.
	maxDownloadBytes = 20 << 20
)

// FileGetter resolves a Telegram file ID to a downloadable path.
type FileGetter interface {
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
}

// FileFetcher downloads message attachments into a temporary directory.
type FileFetcher struct {
	files   FileGetter
	token   string
	baseURL string
	client  *http.Client
}

// NewFileFetcher creates a FileFetcher for the bot identified by token.
func NewFileFetcher(files FileGetter, token string) *FileFetcher {
	return &FileFetcher{
		files:   files,
		token:   token,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: fileDownloadTimeout},
	}
}

// Fetch downloads fileID and returns its local path together with a
// cleanup function removing it. name only provides the file extension.
func (f *FileFetcher) Fetch(ctx context.Context, fileID, name string) (path string, cleanup func(), err error) {
	if fileID == "" {
		return "", nil, errors.New("empty file ID")
	}
	ctx, cancel := context.WithTimeout(ctx, fileDownloadTimeout)
	defer cancel()

	file, err := f.files.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", nil, fmt.Errorf("failed to get file: %w", err)
	}
	if file.FilePath == "" {
		return "", nil, errors.New("empty file path returned from Telegram")
	}

	url := fmt.Sprintf("%s/file/bot%s/%s", f.baseURL, f.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	ext := filepath.Ext(name)
	if ext == "" {
		ext = filepath.Ext(file.FilePath)
	}
	tmp, err := os.CreateTemp("", "calendarbot-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	remove := func() { _ = os.Remove(tmp.Name()) }

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxDownloadBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	switch {
	case err != nil:
		remove()
		return "", nil, fmt.Errorf("failed to save file: %w", err)
	case n > maxDownloadBytes:
		remove()
		return "", nil, fmt.Errorf("file exceeds %d bytes", maxDownloadBytes)
	case n == 0:
		remove()
		return "", nil, errors.New("received empty file")
	}
	return tmp.Name(), remove, nil
}
