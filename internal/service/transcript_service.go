package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vivalab/viva-go-api/pkg/ai"
)

// SpeechToText is the raw capability exposed by the speech client.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error)
}

// TranscriptService converts exam recordings into text. It also satisfies
// the orchestrator's Transcriber dependency for the transcript-mediated
// strategy.
type TranscriptService struct {
	stt      SpeechToText
	language string
	logger   zerolog.Logger
}

// NewTranscriptService constructs the service with a default language used
// when the caller does not specify one.
func NewTranscriptService(stt SpeechToText, language string, logger zerolog.Logger) (*TranscriptService, error) {
	if stt == nil {
		return nil, fmt.Errorf("transcript service requires a speech-to-text client")
	}
	if language == "" {
		language = "en-US"
	}

	return &TranscriptService{
		stt:      stt,
		language: language,
		logger:   logger.With().Str("component", "transcript_service").Logger(),
	}, nil
}

// Transcribe returns the transcript of the given recording.
func (s *TranscriptService) Transcribe(parent context.Context, audio ai.Media, language string) (string, error) {
	tracer := otel.Tracer("github.com/vivalab/viva-go-api/internal/service/transcript")
	ctx, span := tracer.Start(parent, "transcript.transcribe")
	span.SetAttributes(
		attribute.String("transcript.mime_type", audio.MIMEType),
		attribute.Int("transcript.audio_bytes", len(audio.Data)),
	)
	defer span.End()

	if language == "" {
		language = s.language
	}

	transcript, err := s.stt.Transcribe(ctx, audio.Data, audio.MIMEType, language)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription_failed")
		return "", err
	}

	span.SetAttributes(attribute.Int("transcript.chars", len(transcript)))

	return transcript, nil
}
