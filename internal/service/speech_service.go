package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// ElevenLabs free-tier accounts allow two concurrent synthesis requests.
const maxSynthesisConcurrency = 2

// Synthesizer converts a single piece of text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SpeechService turns a list of exam questions into named audio clips.
type SpeechService interface {
	GenerateBatch(ctx context.Context, questions []string) (map[string][]byte, error)
}

type speechService struct {
	synth  Synthesizer
	logger zerolog.Logger
}

// NewSpeechService constructs the batch generator.
func NewSpeechService(synth Synthesizer, logger zerolog.Logger) (SpeechService, error) {
	if synth == nil {
		return nil, fmt.Errorf("speech service requires a synthesizer")
	}

	return &speechService{
		synth:  synth,
		logger: logger.With().Str("component", "speech_service").Logger(),
	}, nil
}

// GenerateBatch synthesises every question and returns the clips keyed by a
// deterministic filename derived from the question's position. Any single
// failure fails the batch.
func (s *speechService) GenerateBatch(parent context.Context, questions []string) (map[string][]byte, error) {
	tracer := otel.Tracer("github.com/vivalab/viva-go-api/internal/service/speech")
	ctx, span := tracer.Start(parent, "speech.generate_batch")
	span.SetAttributes(attribute.Int("speech.question_count", len(questions)))
	defer span.End()

	if len(questions) == 0 {
		return map[string][]byte{}, nil
	}

	clips := make([][]byte, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSynthesisConcurrency)
	for i, question := range questions {
		g.Go(func() error {
			audio, err := s.synth.Synthesize(gctx, question)
			if err != nil {
				return fmt.Errorf("synthesize question %d: %w", i+1, err)
			}
			clips[i] = audio
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis_failed")
		return nil, err
	}

	batch := make(map[string][]byte, len(questions))
	for i, audio := range clips {
		batch[BatchFilename(i)] = audio
	}

	s.logger.Info().Int("clips", len(batch)).Msg("speech batch generated")

	return batch, nil
}

// BatchFilename names the clip for the question at the given zero-based
// index: question_01.mp3, question_02.mp3, and so on.
func BatchFilename(index int) string {
	return fmt.Sprintf("question_%02d.mp3", index+1)
}
