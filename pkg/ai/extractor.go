package ai

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

// ExtractorConfig defines configuration options for the grade extractor.
// When Client is set it is reused; otherwise a client is created from APIKey.
type ExtractorConfig struct {
	APIKey       string
	Client       *genai.Client
	Model        string
	Instructions string
	Logger       zerolog.Logger
}

// GeminiExtractor pulls the final integer grade out of a free-text review
// report with one narrow-purpose model call. The model is instructed to
// answer with the bare integer; anything else is a GradeParseError. The
// strict parse is deliberate: a response like "Grade: 85" fails rather than
// being fished out with a regex.
type GeminiExtractor struct {
	client *genai.Client
	cfg    ExtractorConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiExtractor builds an extractor using the provided configuration.
func NewGeminiExtractor(ctx context.Context, cfg ExtractorConfig) (*GeminiExtractor, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	client := cfg.Client
	if client == nil {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("grade extractor: %w", ErrMissingCredential)
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

	return &GeminiExtractor{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/vivalab/viva-go-api/pkg/ai/extractor"),
		logger: cfg.Logger.With().Str("component", "grade_extractor").Logger(),
	}, nil
}

// Extract returns the integer grade contained in the report.
func (e *GeminiExtractor) Extract(parent context.Context, report Report) (int, error) {
	ctx, span := e.tracer.Start(parent, "extractor.extract", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
		attribute.String("report_provider", report.Provider),
	))
	defer span.End()

	prompt := fmt.Sprintf("Extract the final grade/score from this review and return only the integer:\n\n%s", report.Text)

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0)),
	}
	if e.cfg.Instructions != "" {
		config.SystemInstruction = genai.NewContentFromText(e.cfg.Instructions, genai.RoleUser)
	}

	start := time.Now()
	resp, err := e.client.Models.GenerateContent(ctx, e.cfg.Model, genai.Text(prompt), config)
	backendDuration.WithLabelValues("gemini", "extract_grade").Observe(time.Since(start).Seconds())
	if err != nil {
		backendFailures.WithLabelValues("gemini", "extract_grade").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, &BackendError{Provider: "gemini", Err: err}
	}

	grade, err := ParseGrade(resp.Text())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn().Str("raw", strings.TrimSpace(resp.Text())).Msg("grade extraction returned non-integer text")
		return 0, err
	}

	span.SetAttributes(attribute.Int("grade", grade))

	return grade, nil
}

// ParseGrade converts the extraction model's answer into an integer. The
// parse is a strict Atoi after whitespace trimming: prose around the number
// ("Grade: 85") fails rather than being recovered with a looser scan.
func ParseGrade(text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	grade, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, &GradeParseError{Raw: trimmed}
	}
	return grade, nil
}
