package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const transcribeInstruction = "Transcribe all text visible in this image exactly as written, preserving line breaks. " +
	"Do not summarize or translate. If there is no text, reply with an empty message."

// GeminiTranscriber reads image text with a multimodal Gemini model.
type GeminiTranscriber struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

// NewGeminiTranscriber creates a transcriber using apiKey and model.
func NewGeminiTranscriber(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiTranscriber, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required for image transcription")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiTranscriber{
		client: gi,
		model:  model,
		log:    logger.With("component", "ocr"),
	}, nil
}

// Transcribe implements Transcriber.
func (g *GeminiTranscriber) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 || mimeType == "" {
		return "", fmt.Errorf("image data and MIME type are required")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(transcribeInstruction),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini transcription failed: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		return "", fmt.Errorf("transcription blocked: %s", resp.PromptFeedback.BlockReason)
	}

	text := strings.TrimSpace(resp.Text())
	g.log.DebugContext(ctx, "Transcribed image", "mime_type", mimeType, "bytes", len(data), "chars", len(text))
	return text, nil
}
