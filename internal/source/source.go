// Package source turns downloaded attachments and uploaded files into
// plain text for the extraction oracle.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/edgard/calendarbot/internal/event"
)

// ErrUnsupported is returned for files that are neither text, PDF nor a
// supported image.
var ErrUnsupported = errors.New("unsupported file type")

// Text is the result of an extraction.
type Text struct {
	Content string
	Kind    event.SourceType
}

// Empty reports whether no usable text was found.
func (t Text) Empty() bool { return strings.TrimSpace(t.Content) == "" }

// Transcriber reads the text visible in an image.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}

// TextExtractor is the interface consumed by the pipeline.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (Text, error)
}

// Extractor detects a file's type from its content and extracts its text.
type Extractor struct {
	log         *slog.Logger
	transcriber Transcriber
}

// NewExtractor creates an Extractor. A nil transcriber disables images.
func NewExtractor(logger *slog.Logger, transcriber Transcriber) *Extractor {
	return &Extractor{
		log:         logger.With("component", "text_source"),
		transcriber: transcriber,
	}
}

var imageTypes = []string{"image/png", "image/jpeg", "image/bmp", "image/tiff", "image/webp", "image/gif"}

// Extract returns the text held by the file at path.
func (e *Extractor) Extract(ctx context.Context, path string) (Text, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return Text{}, fmt.Errorf("failed to detect file type: %w", err)
	}

	switch {
	case mt.Is("application/pdf"):
		content, err := readPDF(path)
		if err != nil {
			return Text{}, fmt.Errorf("pdf extraction failed: %w", err)
		}
		e.log.InfoContext(ctx, "Extracted text from PDF", "chars", len(content))
		return Text{Content: content, Kind: event.SourcePDF}, nil

	case isImage(mt):
		if e.transcriber == nil {
			return Text{}, fmt.Errorf("%w: %s (image transcription disabled)", ErrUnsupported, mt.String())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return Text{}, fmt.Errorf("failed to read image: %w", err)
		}
		content, err := e.transcriber.Transcribe(ctx, data, baseType(mt))
		if err != nil {
			return Text{}, fmt.Errorf("image transcription failed: %w", err)
		}
		e.log.InfoContext(ctx, "Extracted text from image", "chars", len(content))
		return Text{Content: content, Kind: event.SourceImage}, nil

	case isText(mt):
		data, err := os.ReadFile(path)
		if err != nil {
			return Text{}, fmt.Errorf("failed to read text file: %w", err)
		}
		if !utf8.Valid(data) {
			return Text{}, fmt.Errorf("%w: text is not valid UTF-8", ErrUnsupported)
		}
		return Text{Content: string(data), Kind: event.SourceText}, nil
	}

	return Text{}, fmt.Errorf("%w: %s", ErrUnsupported, mt.String())
}

func isImage(mt *mimetype.MIME) bool {
	for _, t := range imageTypes {
		if mt.Is(t) {
			return true
		}
	}
	return false
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// baseType drops MIME parameters such as charset.
func baseType(mt *mimetype.MIME) string {
	s, _, _ := strings.Cut(mt.String(), ";")
	return strings.TrimSpace(s)
}
