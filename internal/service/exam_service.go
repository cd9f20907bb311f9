package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/vivalab/viva-go-api/internal/config"
	"github.com/vivalab/viva-go-api/internal/prompt"
	"github.com/vivalab/viva-go-api/pkg/ai"
)

// Prompt template names the pipeline depends on.
const (
	promptFirstStage  = "first_stage"
	promptSecondStage = "second_stage"
)

// PromptLoadError indicates a required prompt template could not be loaded.
// This is fatal for the evaluation; there is no fallback text.
type PromptLoadError struct {
	Name string
	Err  error
}

func (e *PromptLoadError) Error() string {
	return fmt.Sprintf("load prompt %q: %v", e.Name, e.Err)
}

func (e *PromptLoadError) Unwrap() error {
	return e.Err
}

// PromptLoader resolves named prompt templates.
type PromptLoader interface {
	Load(name string) (string, error)
}

// Transcriber converts a recording into text, used by the
// transcript-mediated strategy to feed text-only backends.
type Transcriber interface {
	Transcribe(ctx context.Context, audio ai.Media, language string) (string, error)
}

// ExamInput is the caller-facing request for one exam evaluation.
type ExamInput struct {
	Audio     ai.Media
	ClassName string
}

// ExamService grades a recorded oral exam through the two-model peer-review
// pipeline and returns a single integer grade.
type ExamService interface {
	EvaluateExam(ctx context.Context, input ExamInput) (int, error)
}

// ExamServiceConfig wires the orchestrator's collaborators and knobs.
type ExamServiceConfig struct {
	Primary     ai.Gateway
	Secondary   ai.Gateway
	Extractor   ai.GradeExtractor
	Prompts     PromptLoader
	Transcriber Transcriber
	Strategy    string
	PrimaryTemp float32
	DiverseTemp float32
	CallTimeout time.Duration
	Language    string
	Logger      zerolog.Logger
}

type examService struct {
	cfg    ExamServiceConfig
	logger zerolog.Logger
}

// NewExamService constructs the orchestrator. The strategy is fixed at
// construction time; every evaluation runs the same topology.
func NewExamService(cfg ExamServiceConfig) (ExamService, error) {
	if cfg.Primary == nil {
		return nil, fmt.Errorf("exam service requires a primary gateway")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("exam service requires a grade extractor")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("exam service requires a prompt loader")
	}

	switch cfg.Strategy {
	case config.StrategyDualTemperature:
	case config.StrategyDualBackend:
		if cfg.Secondary == nil {
			return nil, fmt.Errorf("strategy %s requires a secondary gateway", cfg.Strategy)
		}
	case config.StrategyTranscriptMediated:
		if cfg.Secondary == nil {
			return nil, fmt.Errorf("strategy %s requires a secondary gateway", cfg.Strategy)
		}
		if cfg.Transcriber == nil {
			return nil, fmt.Errorf("strategy %s requires a transcriber", cfg.Strategy)
		}
	default:
		return nil, fmt.Errorf("unknown orchestration strategy %q", cfg.Strategy)
	}

	if cfg.PrimaryTemp == 0 {
		cfg.PrimaryTemp = 1.0
	}
	if cfg.DiverseTemp == 0 {
		cfg.DiverseTemp = 1.5
	}

	return &examService{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "exam_service").Logger(),
	}, nil
}

// lane is one of the two evaluation paths: a gateway, its temperature, and
// the modality it works from.
type lane struct {
	gateway     ai.Gateway
	temperature float32
	audio       ai.Media
	transcript  string
}

// EvaluateExam runs the full pipeline: prompt loading, the concurrent first
// pass, the crossed peer-review round, grade extraction, and averaging. Any
// stage failure aborts the whole evaluation; a grade backed by only one
// model's opinion is never returned.
func (s *examService) EvaluateExam(parent context.Context, input ExamInput) (int, error) {
	tracer := otel.Tracer("github.com/vivalab/viva-go-api/internal/service/exam")
	ctx, span := tracer.Start(parent, "exam.evaluate")
	span.SetAttributes(
		attribute.String("exam.strategy", s.cfg.Strategy),
		attribute.String("exam.class_name", input.ClassName),
		attribute.Int("exam.audio_bytes", len(input.Audio.Data)),
	)
	defer span.End()

	firstStage, secondStage, err := s.loadPrompts(input.ClassName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prompt_load_failed")
		return 0, err
	}

	lanes, err := s.buildLanes(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lane_setup_failed")
		return 0, err
	}

	s.logger.Info().
		Str("strategy", s.cfg.Strategy).
		Str("class_name", input.ClassName).
		Msg("starting exam evaluation")

	firstPass, err := s.firstPass(ctx, lanes, firstStage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "first_pass_failed")
		return 0, err
	}

	finals, err := s.peerReview(ctx, lanes, firstPass, secondStage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "peer_review_failed")
		return 0, err
	}

	grades, err := s.extractGrades(ctx, finals)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_extraction_failed")
		return 0, err
	}

	// Tie-break pinned: halves round away from zero, so (80+81)/2 -> 81.
	grade := int(math.Round(float64(grades[0]+grades[1]) / 2))

	span.SetAttributes(
		attribute.Int("exam.grade_a", grades[0]),
		attribute.Int("exam.grade_b", grades[1]),
		attribute.Int("exam.grade", grade),
	)
	s.logger.Info().
		Int("grade_a", grades[0]).
		Int("grade_b", grades[1]).
		Int("grade", grade).
		Msg("exam evaluation completed")

	return grade, nil
}

func (s *examService) loadPrompts(className string) (string, string, error) {
	vars := map[string]string{"class_name": className}

	firstStage, err := s.cfg.Prompts.Load(promptFirstStage)
	if err != nil {
		return "", "", &PromptLoadError{Name: promptFirstStage, Err: err}
	}

	secondStage, err := s.cfg.Prompts.Load(promptSecondStage)
	if err != nil {
		return "", "", &PromptLoadError{Name: promptSecondStage, Err: err}
	}

	return prompt.Substitute(firstStage, vars), prompt.Substitute(secondStage, vars), nil
}

// buildLanes fixes the two evaluation paths for this request. For the
// transcript-mediated strategy the recording is transcribed up front so the
// text-only backend has something to work from.
func (s *examService) buildLanes(ctx context.Context, input ExamInput) ([2]lane, error) {
	switch s.cfg.Strategy {
	case config.StrategyDualTemperature:
		return [2]lane{
			{gateway: s.cfg.Primary, temperature: s.cfg.PrimaryTemp, audio: input.Audio},
			{gateway: s.cfg.Primary, temperature: s.cfg.DiverseTemp, audio: input.Audio},
		}, nil

	case config.StrategyDualBackend:
		return [2]lane{
			{gateway: s.cfg.Primary, temperature: s.cfg.PrimaryTemp, audio: input.Audio},
			{gateway: s.cfg.Secondary, temperature: s.cfg.PrimaryTemp, audio: input.Audio},
		}, nil

	case config.StrategyTranscriptMediated:
		transcript, err := s.cfg.Transcriber.Transcribe(ctx, input.Audio, s.cfg.Language)
		if err != nil {
			return [2]lane{}, fmt.Errorf("transcribe for text backend: %w", err)
		}
		return [2]lane{
			{gateway: s.cfg.Primary, temperature: s.cfg.PrimaryTemp, audio: input.Audio},
			{gateway: s.cfg.Secondary, temperature: s.cfg.PrimaryTemp, transcript: transcript},
		}, nil
	}

	return [2]lane{}, fmt.Errorf("unknown orchestration strategy %q", s.cfg.Strategy)
}

// firstPass issues both initial evaluations concurrently. This is a join
// point, not a race: if either call fails the group context cancels the
// sibling and its result, if any, is discarded.
func (s *examService) firstPass(ctx context.Context, lanes [2]lane, instructions string) ([2]ai.Report, error) {
	var reports [2]ai.Report

	g, gctx := errgroup.WithContext(ctx)
	for i := range lanes {
		g.Go(func() error {
			callCtx, cancel := s.callContext(gctx)
			defer cancel()

			report, err := lanes[i].gateway.Evaluate(callCtx, ai.EvaluationInput{
				Audio:        lanes[i].audio,
				Transcript:   lanes[i].transcript,
				Instructions: instructions,
				Temperature:  lanes[i].temperature,
			})
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return [2]ai.Report{}, err
	}

	return reports, nil
}

// peerReview crosses the first-pass reports: lane 0 reviews lane 1's report
// and vice versa, each alongside its own original input. Symmetric
// cross-feeding, never a chain.
func (s *examService) peerReview(ctx context.Context, lanes [2]lane, firstPass [2]ai.Report, instructions string) ([2]ai.Report, error) {
	var finals [2]ai.Report

	g, gctx := errgroup.WithContext(ctx)
	for i := range lanes {
		peer := firstPass[1-i]
		g.Go(func() error {
			callCtx, cancel := s.callContext(gctx)
			defer cancel()

			report, err := lanes[i].gateway.ReviewPeer(callCtx, ai.ReviewInput{
				Audio:        lanes[i].audio,
				Transcript:   lanes[i].transcript,
				PeerReport:   peer,
				Instructions: instructions,
				Temperature:  lanes[i].temperature,
			})
			if err != nil {
				return err
			}
			finals[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return [2]ai.Report{}, err
	}

	return finals, nil
}

func (s *examService) extractGrades(ctx context.Context, finals [2]ai.Report) ([2]int, error) {
	var grades [2]int

	g, gctx := errgroup.WithContext(ctx)
	for i := range finals {
		g.Go(func() error {
			callCtx, cancel := s.callContext(gctx)
			defer cancel()

			grade, err := s.cfg.Extractor.Extract(callCtx, finals[i])
			if err != nil {
				return err
			}
			grades[i] = grade
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return [2]int{}, err
	}

	return grades, nil
}

func (s *examService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.CallTimeout)
}
