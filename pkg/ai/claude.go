package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const anthropicBaseURL = "https://api.anthropic.com/v1"

// ClaudeConfig defines configuration options for the Claude gateway.
type ClaudeConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxTokens       int
	PeerReportLimit int
	Logger          zerolog.Logger
}

// ClaudeGateway implements Gateway against Anthropic's OpenAI-compatible
// chat-completions surface. It is text-only: raw recordings must be routed
// through a transcript first, otherwise the call fails with
// ErrUnsupportedMedia.
type ClaudeGateway struct {
	client *openai.Client
	cfg    ClaudeConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewClaudeGateway builds a gateway using the provided configuration.
func NewClaudeGateway(cfg ClaudeConfig) (*ClaudeGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude: %w", ErrMissingCredential)
	}

	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicBaseURL
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	client := openai.NewClientWithConfig(config)

	return &ClaudeGateway{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/vivalab/viva-go-api/pkg/ai/claude"),
		logger: cfg.Logger.With().Str("component", "claude_gateway").Logger(),
	}, nil
}

// Provider reports the backend name used in error tagging and metrics.
func (g *ClaudeGateway) Provider() string {
	return "claude"
}

// Evaluate grades the exam from its transcript. Raw audio or video without a
// transcript is rejected.
func (g *ClaudeGateway) Evaluate(parent context.Context, input EvaluationInput) (Report, error) {
	ctx, span := g.tracer.Start(parent, "claude.evaluate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	if input.Transcript == "" {
		err := fmt.Errorf("claude accepts transcripts only: %w", ErrUnsupportedMedia)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Report{}, err
	}

	prompt := fmt.Sprintf("Transcript of the oral exam:\n\n%s\n\n%s", input.Transcript, evaluatePromptText)

	text, err := g.complete(ctx, "evaluate", input.Instructions, prompt, input.Temperature)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Report{}, err
	}

	return Report{Provider: g.Provider(), Text: text}, nil
}

// ReviewPeer sends the peer's first-pass report verbatim alongside the
// original transcript.
func (g *ClaudeGateway) ReviewPeer(parent context.Context, input ReviewInput) (Report, error) {
	ctx, span := g.tracer.Start(parent, "claude.review_peer", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("peer", input.PeerReport.Provider),
	))
	defer span.End()

	if len(input.Audio.Data) > 0 && input.Transcript == "" {
		err := fmt.Errorf("claude accepts transcripts only: %w", ErrUnsupportedMedia)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Report{}, err
	}

	if g.cfg.PeerReportLimit > 0 && len(input.PeerReport.Text) > g.cfg.PeerReportLimit {
		err := fmt.Errorf("peer report is %d bytes, limit %d: %w",
			len(input.PeerReport.Text), g.cfg.PeerReportLimit, ErrPayloadTooLarge)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Report{}, err
	}

	builder := strings.Builder{}
	if input.Transcript != "" {
		builder.WriteString("Transcript of the oral exam:\n\n")
		builder.WriteString(input.Transcript)
		builder.WriteString("\n\n")
	}
	builder.WriteString(reviewPromptText(input.PeerReport))

	text, err := g.complete(ctx, "review_peer", input.Instructions, builder.String(), input.Temperature)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Report{}, err
	}

	return Report{Provider: g.Provider(), Text: text}, nil
}

func (g *ClaudeGateway) complete(ctx context.Context, operation, instructions, prompt string, temperature float32) (string, error) {
	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, request)
	backendDuration.WithLabelValues(g.Provider(), operation).Observe(time.Since(start).Seconds())
	if err != nil {
		backendFailures.WithLabelValues(g.Provider(), operation).Inc()
		return "", &BackendError{Provider: g.Provider(), Err: err}
	}

	if len(resp.Choices) == 0 {
		backendFailures.WithLabelValues(g.Provider(), operation).Inc()
		return "", &BackendError{Provider: g.Provider(), Err: fmt.Errorf("no choices returned from model %s", g.cfg.Model)}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		backendFailures.WithLabelValues(g.Provider(), operation).Inc()
		return "", &BackendError{Provider: g.Provider(), Err: fmt.Errorf("empty response from model %s", g.cfg.Model)}
	}

	g.logger.Debug().Str("operation", operation).Int("response_bytes", len(text)).Msg("claude call completed")

	return text, nil
}
