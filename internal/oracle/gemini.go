package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"google.golang.org/genai"

	"github.com/edgard/calendarbot/internal/config"
	"github.com/edgard/calendarbot/internal/event"
)

// Gemini extracts events through the Gemini API in JSON schema mode.
type Gemini struct {
	client     *genai.Client
	log        *slog.Logger
	model      string
	genConfig  *genai.GenerateContentConfig
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

var nullable = true

var rawEventSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":            {Type: genai.TypeString, Description: "Event name or short description."},
		"start_date":       {Type: genai.TypeString, Description: "Start date as YYYY-MM-DD."},
		"start_time":       {Type: genai.TypeString, Nullable: &nullable, Description: "Start time as 24-hour HH:MM, null if not mentioned."},
		"end_date":         {Type: genai.TypeString, Nullable: &nullable, Description: "End date as YYYY-MM-DD, null if the same as start_date."},
		"end_time":         {Type: genai.TypeString, Nullable: &nullable, Description: "End time as 24-hour HH:MM, null if not mentioned."},
		"description":      {Type: genai.TypeString, Description: "Additional details about the event."},
		"location":         {Type: genai.TypeString, Description: "Location if mentioned, otherwise empty."},
		"confidence_score": {Type: genai.TypeNumber, Description: "Confidence between 0 and 1 that this is a real event."},
	},
	Required: []string{"title", "start_date", "confidence_score"},
}

var eventListSchema = &genai.Schema{
	Type:        genai.TypeArray,
	Description: "Calendar events found in the text. Empty when there are none.",
	Items:       rawEventSchema,
}

// NewGemini creates a Gemini oracle.
func NewGemini(ctx context.Context, cfg config.OracleConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	genCfg := &genai.GenerateContentConfig{
		Temperature:       &temperature,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: SystemInstruction}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    eventListSchema,
	}

	log := logger.With("component", "oracle", "provider", "gemini")
	log.Info("Gemini oracle initialized", "model", cfg.Model)

	return &Gemini{
		client:     gi,
		log:        log,
		model:      cfg.Model,
		genConfig:  genCfg,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Extract implements Oracle.
func (g *Gemini) Extract(ctx context.Context, text string, referenceDate time.Time) ([]event.RawEvent, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	contents := []*genai.Content{genai.NewContentFromText(BuildPrompt(text, referenceDate), genai.RoleUser)}

	resp, err := g.generate(ctx, contents)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Provider: "gemini", Err: err}
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := string(resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		return nil, &Error{Kind: KindBlocked, Provider: "gemini", Err: errors.New(reason)}
	}

	reply := resp.Text()
	events, skipped, err := parseEvents(reply)
	if err != nil {
		g.log.ErrorContext(ctx, "Failed to parse Gemini reply", "error", err, "reply", reply)
		return nil, &Error{Kind: KindParse, Provider: "gemini", Err: err}
	}

	for _, serr := range skipped {
		g.log.WarnContext(ctx, "Skipping malformed event record", "error", serr)
	}
	g.log.DebugContext(ctx, "Extracted event candidates", "count", len(events), "skipped", len(skipped))
	return events, nil
}

func (g *Gemini) generate(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	err := retry.Do(
		func() error {
			var err error
			resp, err = g.client.Models.GenerateContent(ctx, g.model, contents, g.genConfig)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(g.maxRetries)+1),
		retry.Delay(g.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retriableGenai),
		retry.OnRetry(func(n uint, err error) {
			g.log.WarnContext(ctx, "Retrying Gemini API call", "attempt", n+1, "max_retries", g.maxRetries, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return resp, nil
}

// retriableGenai retries server side failures and rate limiting.
func retriableGenai(err error) bool {
	var code int
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		return false
	}
	return code == http.StatusTooManyRequests || code == http.StatusInternalServerError || code == http.StatusServiceUnavailable
}
