package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"

	"github.com/vivalab/viva-go-api/internal/dto"
	"github.com/vivalab/viva-go-api/pkg/ai"
)

const promptCheatingDetection = "cheating_detection"

const anticheatPromptText = "Please analyze this audio and video recording from an oral exam for any signs of cheating or academic dishonesty. Provide your analysis in the specified JSON format."

// anticheat analysis wants consistency over creativity.
const anticheatTemperature = 0.5

// AnticheatInput bundles the recordings to analyse. Screen is optional.
type AnticheatInput struct {
	Audio  ai.Media
	Video  ai.Media
	Screen ai.Media
}

// AnticheatService runs a one-shot multimodal analysis over the exam
// recordings and returns a structured cheating assessment.
type AnticheatService interface {
	DetectCheating(ctx context.Context, input AnticheatInput) (dto.CheatingAssessment, error)
}

// AnticheatServiceConfig wires the detector's collaborators.
type AnticheatServiceConfig struct {
	Client      *genai.Client
	Model       string
	Prompts     PromptLoader
	CallTimeout time.Duration
	Logger      zerolog.Logger
}

type anticheatService struct {
	cfg    AnticheatServiceConfig
	logger zerolog.Logger
}

// NewAnticheatService constructs the detector.
func NewAnticheatService(cfg AnticheatServiceConfig) (AnticheatService, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("anticheat service requires a genai client")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("anticheat service requires a prompt loader")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-3-pro-preview"
	}

	return &anticheatService{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "anticheat_service").Logger(),
	}, nil
}

// DetectCheating sends audio, video, and the optional screen recording to
// the model in a single call and parses the JSON-shaped verdict. A response
// that is not valid JSON after fence stripping fails with
// MalformedResponseError; missing fields take their documented defaults.
func (s *anticheatService) DetectCheating(parent context.Context, input AnticheatInput) (dto.CheatingAssessment, error) {
	tracer := otel.Tracer("github.com/vivalab/viva-go-api/internal/service/anticheat")
	ctx, span := tracer.Start(parent, "anticheat.detect")
	span.SetAttributes(
		attribute.Int("anticheat.audio_bytes", len(input.Audio.Data)),
		attribute.Int("anticheat.video_bytes", len(input.Video.Data)),
		attribute.Bool("anticheat.has_screen", len(input.Screen.Data) > 0),
	)
	defer span.End()

	systemPrompt, err := s.cfg.Prompts.Load(promptCheatingDetection)
	if err != nil {
		loadErr := &PromptLoadError{Name: promptCheatingDetection, Err: err}
		span.RecordError(loadErr)
		span.SetStatus(codes.Error, "prompt_load_failed")
		return dto.CheatingAssessment{}, loadErr
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(input.Audio.Data, input.Audio.MIMEType),
		genai.NewPartFromBytes(input.Video.Data, input.Video.MIMEType),
	}
	if len(input.Screen.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(input.Screen.Data, input.Screen.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(anticheatPromptText))

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(anticheatTemperature)),
	}

	callCtx := ctx
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}

	s.logger.Info().Msg("starting cheating analysis")
	resp, err := s.cfg.Client.Models.GenerateContent(callCtx, s.cfg.Model, contents, config)
	if err != nil {
		backendErr := &ai.BackendError{Provider: "gemini", Err: err}
		span.RecordError(backendErr)
		span.SetStatus(codes.Error, "backend_call_failed")
		return dto.CheatingAssessment{}, backendErr
	}

	assessment, err := parseAssessment(resp.Text())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "response_parse_failed")
		return dto.CheatingAssessment{}, err
	}

	span.SetAttributes(
		attribute.Bool("anticheat.is_cheating", assessment.IsCheating),
		attribute.String("anticheat.confidence", assessment.Confidence),
		attribute.String("anticheat.recommendation", assessment.Recommendation),
	)
	s.logger.Info().
		Bool("is_cheating", assessment.IsCheating).
		Str("confidence", assessment.Confidence).
		Str("recommendation", assessment.Recommendation).
		Msg("cheating analysis completed")

	return assessment, nil
}

func parseAssessment(text string) (dto.CheatingAssessment, error) {
	cleaned := ai.StripCodeFence(text)

	var raw struct {
		IsCheating      *bool    `json:"is_cheating"`
		Confidence      *string  `json:"confidence"`
		Summary         *string  `json:"summary"`
		IndicatorsFound []string `json:"indicators_found"`
		Recommendation  *string  `json:"recommendation"`
		Notes           *string  `json:"notes"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return dto.CheatingAssessment{}, &ai.MalformedResponseError{Raw: cleaned, Err: err}
	}

	assessment := dto.CheatingAssessment{
		Confidence:      "low",
		Recommendation:  "clear",
		IndicatorsFound: []string{},
	}
	if raw.IsCheating != nil {
		assessment.IsCheating = *raw.IsCheating
	}
	if raw.Confidence != nil {
		assessment.Confidence = *raw.Confidence
	}
	if raw.Summary != nil {
		assessment.Summary = *raw.Summary
	}
	if raw.IndicatorsFound != nil {
		assessment.IndicatorsFound = raw.IndicatorsFound
	}
	if raw.Recommendation != nil {
		assessment.Recommendation = *raw.Recommendation
	}
	if raw.Notes != nil {
		assessment.Notes = *raw.Notes
	}

	return assessment, nil
}
