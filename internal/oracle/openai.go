package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sashabaranov/go-openai"

	"github.com/edgard/calendarbot/internal/config"
	"github.com/edgard/calendarbot/internal/event"
)

var errNoChoices = errors.New("no choices in response")

// AnthropicBaseURL is Anthropic's OpenAI-compatible endpoint.
const AnthropicBaseURL = "https://api.anthropic.com/v1"

// OpenAI extracts events through any OpenAI-compatible chat completion
// endpoint (OpenAI, Groq, Anthropic, local gateways) selected by base_url.
type OpenAI struct {
	client      *openai.Client
	log         *slog.Logger
	provider    string
	baseURL     string
	model       string
	temperature float32
	timeout     time.Duration
	maxRetries  int
	retryDelay  time.Duration
}

// NewOpenAI creates an OpenAI-compatible oracle.
func NewOpenAI(cfg config.OracleConfig, logger *slog.Logger) (*OpenAI, error) {
	return newChatCompletion("openai", "", cfg, logger)
}

// NewAnthropic creates an oracle for Claude models through Anthropic's
// OpenAI-compatible endpoint. base_url overrides AnthropicBaseURL.
func NewAnthropic(cfg config.OracleConfig, logger *slog.Logger) (*OpenAI, error) {
	return newChatCompletion("anthropic", AnthropicBaseURL, cfg, logger)
}

func newChatCompletion(provider, defaultBaseURL string, cfg config.OracleConfig, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", provider)
	}

	aiCfg := openai.DefaultConfig(cfg.APIKey)
	switch {
	case cfg.BaseURL != "":
		aiCfg.BaseURL = cfg.BaseURL
	case defaultBaseURL != "":
		aiCfg.BaseURL = defaultBaseURL
	}

	log := logger.With("component", "oracle", "provider", provider)
	log.Info("Chat completion oracle initialized", "model", cfg.Model, "base_url", aiCfg.BaseURL)

	return &OpenAI{
		client:      openai.NewClientWithConfig(aiCfg),
		log:         log,
		provider:    provider,
		baseURL:     aiCfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}, nil
}

// Extract implements Oracle.
func (o *OpenAI) Extract(ctx context.Context, text string, referenceDate time.Time) ([]event.RawEvent, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: SystemInstruction},
		{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(text, referenceDate)},
	}

	var reply string
	err := retry.Do(
		func() error {
			resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       o.model,
				Messages:    messages,
				Temperature: o.temperature,
			})
			if err != nil {
				return fmt.Errorf("chat completion API call failed: %w", err)
			}
			if len(resp.Choices) == 0 {
				return errNoChoices
			}
			reply = resp.Choices[0].Message.Content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(o.maxRetries)+1),
		retry.Delay(o.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retriableOpenAI),
		retry.OnRetry(func(n uint, err error) {
			o.log.WarnContext(ctx, "Retrying chat completion", "attempt", n+1, "max_retries", o.maxRetries, "error", err)
		}),
	)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Provider: o.provider, Err: err}
	}

	events, skipped, err := parseEvents(reply)
	if err != nil {
		o.log.ErrorContext(ctx, "Failed to parse chat completion reply", "error", err, "reply", reply)
		return nil, &Error{Kind: KindParse, Provider: o.provider, Err: err}
	}

	for _, serr := range skipped {
		o.log.WarnContext(ctx, "Skipping malformed event record", "error", serr)
	}
	o.log.DebugContext(ctx, "Extracted event candidates", "count", len(events), "skipped", len(skipped))
	return events, nil
}

func retriableOpenAI(err error) bool {
	if errors.Is(err, errNoChoices) {
		return true
	}

	var code int
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		code = reqErr.HTTPStatusCode
	default:
		return false
	}
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
