package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

var (
	backendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "viva",
		Subsystem: "ai",
		Name:      "backend_call_duration_seconds",
		Help:      "Duration of model backend calls",
	}, []string{"provider", "operation"})

	backendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viva",
		Subsystem: "ai",
		Name:      "backend_call_failures_total",
		Help:      "Number of failed model backend calls",
	}, []string{"provider", "operation"})
)

const evaluatePromptText = "Please analyze this audio recording from an oral exam."

func reviewPromptText(peer Report) string {
	return fmt.Sprintf(
		"Here is the other AI's analysis of the oral exam:\n\n%s\n\nPlease provide your final assessment considering this input.",
		peer.Text,
	)
}

// GeminiConfig defines configuration options for the Gemini gateway. When
// Client is set it is reused; otherwise a client is created from APIKey.
type GeminiConfig struct {
	APIKey          string
	Client          *genai.Client
	Model           string
	PeerReportLimit int
	Logger          zerolog.Logger
}

// GeminiGateway implements Gateway against the Gemini API. It accepts audio
// and video inline, so recordings go to the model without a transcription
// step.
type GeminiGateway struct {
	client *genai.Client
	cfg    GeminiConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiGateway builds a gateway using the provided configuration.
func NewGeminiGateway(ctx context.Context, cfg GeminiConfig) (*GeminiGateway, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-3-pro-preview"
	}

	client := cfg.Client
	if client == nil {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini: %w", ErrMissingCredential)
		}
		var err error
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
	}

	return &GeminiGateway{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/vivalab/viva-go-api/pkg/ai/gemini"),
		logger: cfg.Logger.With().Str("component", "gemini_gateway").Logger(),
	}, nil
}

// Provider reports the backend name used in error tagging and metrics.
func (g *GeminiGateway) Provider() string {
	return "gemini"
}

// Evaluate sends the recording with the first-stage instructions and returns
// the model's free-form report.
func (g *GeminiGateway) Evaluate(parent context.Context, input EvaluationInput) (Report, error) {
	ctx, span := g.tracer.Start(parent, "gemini.evaluate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	parts := make([]*genai.Part, 0, 3)
	if len(input.Audio.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(input.Audio.Data, input.Audio.MIMEType))
	}
	if len(input.Video.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(input.Video.Data, input.Video.MIMEType))
	}

	prompt := evaluatePromptText
	if input.Transcript != "" {
		prompt = fmt.Sprintf("Transcript of the oral exam:\n\n%s\n\n%s", input.Transcript, evaluatePromptText)
	}
	parts = append(parts, genai.NewPartFromText(prompt))

	text, err := g.generate(ctx, "evaluate", parts, input.Instructions, input.Temperature)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Report{}, err
	}

	return Report{Provider: g.Provider(), Text: text}, nil
}

// ReviewPeer sends the peer's first-pass report, verbatim, together with the
// gateway's own original input and the second-stage instructions.
func (g *GeminiGateway) ReviewPeer(parent context.Context, input ReviewInput) (Report, error) {
	ctx, span := g.tracer.Start(parent, "gemini.review_peer", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("peer", input.PeerReport.Provider),
	))
	defer span.End()

	if g.cfg.PeerReportLimit > 0 && len(input.PeerReport.Text) > g.cfg.PeerReportLimit {
		err := fmt.Errorf("peer report is %d bytes, limit %d: %w",
			len(input.PeerReport.Text), g.cfg.PeerReportLimit, ErrPayloadTooLarge)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Report{}, err
	}

	parts := make([]*genai.Part, 0, 3)
	if len(input.Audio.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(input.Audio.Data, input.Audio.MIMEType))
	}
	if input.Transcript != "" {
		parts = append(parts, genai.NewPartFromText(fmt.Sprintf("Transcript of the oral exam:\n\n%s", input.Transcript)))
	}
	parts = append(parts, genai.NewPartFromText(reviewPromptText(input.PeerReport)))

	text, err := g.generate(ctx, "review_peer", parts, input.Instructions, input.Temperature)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Report{}, err
	}

	return Report{Provider: g.Provider(), Text: text}, nil
}

func (g *GeminiGateway) generate(ctx context.Context, operation string, parts []*genai.Part, instructions string, temperature float32) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instructions, genai.RoleUser),
		Temperature:       genai.Ptr(temperature),
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, config)
	backendDuration.WithLabelValues(g.Provider(), operation).Observe(time.Since(start).Seconds())
	if err != nil {
		backendFailures.WithLabelValues(g.Provider(), operation).Inc()
		return "", &BackendError{Provider: g.Provider(), Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		backendFailures.WithLabelValues(g.Provider(), operation).Inc()
		return "", &BackendError{Provider: g.Provider(), Err: fmt.Errorf("empty response from model %s", g.cfg.Model)}
	}

	g.logger.Debug().Str("operation", operation).Int("response_bytes", len(text)).Msg("gemini call completed")

	return text, nil
}
