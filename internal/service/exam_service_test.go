package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vivalab/viva-go-api/internal/config"
	"github.com/vivalab/viva-go-api/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// fakePrompts serves canned templates.
type fakePrompts struct {
	templates map[string]string
}

func (f *fakePrompts) Load(name string) (string, error) {
	tmpl, ok := f.templates[name]
	if !ok {
		return "", fmt.Errorf("template %q: not found", name)
	}
	return tmpl, nil
}

func defaultPrompts() *fakePrompts {
	return &fakePrompts{templates: map[string]string{
		"first_stage":  "Grade the exam for {class_name}.",
		"second_stage": "Review your peer's report for {class_name}.",
	}}
}

// fakeGateway scripts first-pass and review responses keyed by temperature,
// and records the inputs it was called with.
type fakeGateway struct {
	mu       sync.Mutex
	name     string
	evals    map[float32]string
	reviews  map[float32]string
	evalErr  error
	evalIn   []ai.EvaluationInput
	reviewIn []ai.ReviewInput
}

func (f *fakeGateway) Provider() string { return f.name }

func (f *fakeGateway) Evaluate(ctx context.Context, input ai.EvaluationInput) (ai.Report, error) {
	f.mu.Lock()
	f.evalIn = append(f.evalIn, input)
	f.mu.Unlock()

	if f.evalErr != nil {
		return ai.Report{}, f.evalErr
	}
	return ai.Report{Provider: f.name, Text: f.evals[input.Temperature]}, nil
}

func (f *fakeGateway) ReviewPeer(ctx context.Context, input ai.ReviewInput) (ai.Report, error) {
	f.mu.Lock()
	f.reviewIn = append(f.reviewIn, input)
	f.mu.Unlock()

	return ai.Report{Provider: f.name, Text: f.reviews[input.Temperature]}, nil
}

// fakeExtractor maps final report text to a fixed grade.
type fakeExtractor struct {
	grades map[string]int
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, report ai.Report) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	grade, ok := f.grades[report.Text]
	if !ok {
		return 0, &ai.GradeParseError{Raw: report.Text}
	}
	return grade, nil
}

func newDualTempService(t *testing.T, gateway *fakeGateway, extractor *fakeExtractor) ExamService {
	t.Helper()

	svc, err := NewExamService(ExamServiceConfig{
		Primary:     gateway,
		Extractor:   extractor,
		Prompts:     defaultPrompts(),
		Strategy:    config.StrategyDualTemperature,
		PrimaryTemp: 1.0,
		DiverseTemp: 1.5,
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	return svc
}

func TestEvaluateExamAveragesPeerReviewedGrades(t *testing.T) {
	gateway := &fakeGateway{
		name:    "gemini",
		evals:   map[float32]string{1.0: "first A", 1.5: "first B"},
		reviews: map[float32]string{1.0: "final A", 1.5: "final B"},
	}
	extractor := &fakeExtractor{grades: map[string]int{"final A": 80, "final B": 90}}
	svc := newDualTempService(t, gateway, extractor)

	grade, err := svc.EvaluateExam(context.Background(), ExamInput{
		Audio:     ai.Media{Data: []byte("audio"), MIMEType: "audio/webm"},
		ClassName: "Algorithms",
	})
	require.NoError(t, err)
	require.Equal(t, 85, grade)
}

func TestEvaluateExamRoundsHalvesUp(t *testing.T) {
	gateway := &fakeGateway{
		name:    "gemini",
		evals:   map[float32]string{1.0: "first A", 1.5: "first B"},
		reviews: map[float32]string{1.0: "final A", 1.5: "final B"},
	}
	extractor := &fakeExtractor{grades: map[string]int{"final A": 80, "final B": 81}}
	svc := newDualTempService(t, gateway, extractor)

	grade, err := svc.EvaluateExam(context.Background(), ExamInput{
		Audio:     ai.Media{Data: []byte("audio"), MIMEType: "audio/webm"},
		ClassName: "Algorithms",
	})
	require.NoError(t, err)
	// 80.5 rounds away from zero, never to even.
	require.Equal(t, 81, grade)
}

func TestEvaluateExamCrossesPeerReports(t *testing.T) {
	gateway := &fakeGateway{
		name:    "gemini",
		evals:   map[float32]string{1.0: "first A", 1.5: "first B"},
		reviews: map[float32]string{1.0: "final A", 1.5: "final B"},
	}
	extractor := &fakeExtractor{grades: map[string]int{"final A": 70, "final B": 70}}
	svc := newDualTempService(t, gateway, extractor)

	_, err := svc.EvaluateExam(context.Background(), ExamInput{
		Audio:     ai.Media{Data: []byte("audio"), MIMEType: "audio/webm"},
		ClassName: "Algorithms",
	})
	require.NoError(t, err)

	require.Len(t, gateway.reviewIn, 2)
	seen := map[float32]string{}
	for _, review := range gateway.reviewIn {
		seen[review.Temperature] = review.PeerReport.Text
	}
	// Each lane reviews the other lane's first-pass report, not its own and
	// not the other lane's review output.
	require.Equal(t, "first B", seen[1.0])
	require.Equal(t, "first A", seen[1.5])
}

func TestEvaluateExamSubstitutesClassName(t *testing.T) {
	gateway := &fakeGateway{
		name:    "gemini",
		evals:   map[float32]string{1.0: "first A", 1.5: "first B"},
		reviews: map[float32]string{1.0: "final A", 1.5: "final B"},
	}
	extractor := &fakeExtractor{grades: map[string]int{"final A": 70, "final B": 70}}
	svc := newDualTempService(t, gateway, extractor)

	_, err := svc.EvaluateExam(context.Background(), ExamInput{
		Audio:     ai.Media{Data: []byte("audio"), MIMEType: "audio/webm"},
		ClassName: "Algorithms",
	})
	require.NoError(t, err)

	require.Len(t, gateway.evalIn, 2)
	for _, eval := range gateway.evalIn {
		require.Equal(t, "Grade the exam for Algorithms.", eval.Instructions)
	}
	for _, review := range gateway.reviewIn {
		require.Equal(t, "Review your peer's report for Algorithms.", review.Instructions)
	}
}

func TestEvaluateExamFailsWhenFirstPassFails(t *testing.T) {
	backendErr := &ai.BackendError{Provider: "gemini", Err: errors.New("boom")}
	gateway := &fakeGateway{
		name:    "gemini",
		evals:   map[float32]string{1.0: "first A", 1.5: "first B"},
		reviews: map[float32]string{1.0: "final A", 1.5: "final B"},
		evalErr: backendErr,
	}
	extractor := &fakeExtractor{grades: map[string]int{"final A": 80, "final B": 90}}
	svc := newDualTempService(t, gateway, extractor)

	_, err := svc.EvaluateExam(context.Background(), ExamInput{
		Audio:     ai.Media{Data: []byte("audio"), MIMEType: "audio/webm"},
		ClassName: "Algorithms",
	})
	require.Error(t, err)

	var be *ai.BackendError
	require.True(t, errors.As(err, &be))
	// The pipeline never reached peer review; no degraded single-model grade.
	require.Empty(t, gateway.reviewIn)
}

func TestEvaluateExamFailsWhenPromptMissing(t *testing.T) {
	gateway := &fakeGateway{name: "gemini"}
	extractor := &fakeExtractor{}
	svc, err := NewExamService(ExamServiceConfig{
		Primary:   gateway,
		Extractor: extractor,
		Prompts:   &fakePrompts{templates: map[string]string{"first_stage": "only one"}},
		Strategy:  config.StrategyDualTemperature,
		Logger:    testLogger(),
	})
	require.NoError(t, err)

	_, err = svc.EvaluateExam(context.Background(), ExamInput{
		Audio:     ai.Media{Data: []byte("audio"), MIMEType: "audio/webm"},
		ClassName: "Algorithms",
	})
	require.Error(t, err)

	var pe *PromptLoadError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "second_stage", pe.Name)
	require.Empty(t, gateway.evalIn)
}

func TestEvaluateExamPropagatesGradeParseError(t *testing.T) {
	gateway := &fakeGateway{
		name:    "gemini",
		evals:   map[float32]string{1.0: "first A", 1.5: "first B"},
		reviews: map[float32]string{1.0: "The grade is 42", 1.5: "final B"},
	}
	extractor := &fakeExtractor{grades: map[string]int{"final B": 90}}
	svc := newDualTempService(t, gateway, extractor)

	_, err := svc.EvaluateExam(context.Background(), ExamInput{
		Audio:     ai.Media{Data: []byte("audio"), MIMEType: "audio/webm"},
		ClassName: "Algorithms",
	})
	require.Error(t, err)

	var pe *ai.GradeParseError
	require.True(t, errors.As(err, &pe))
}

func TestEvaluateExamIsDeterministicForFixedResponses(t *testing.T) {
	gateway := &fakeGateway{
		name:    "gemini",
		evals:   map[float32]string{1.0: "first A", 1.5: "first B"},
		reviews: map[float32]string{1.0: "final A", 1.5: "final B"},
	}
	extractor := &fakeExtractor{grades: map[string]int{"final A": 77, "final B": 84}}
	svc := newDualTempService(t, gateway, extractor)

	input := ExamInput{
		Audio:     ai.Media{Data: []byte("audio"), MIMEType: "audio/webm"},
		ClassName: "Algorithms",
	}

	for i := 0; i < 3; i++ {
		grade, err := svc.EvaluateExam(context.Background(), input)
		require.NoError(t, err)
		require.Equal(t, 81, grade)
	}
}

// fakeTranscriber returns a fixed transcript.
type fakeTranscriber struct {
	transcript string
	calls      int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio ai.Media, language string) (string, error) {
	f.calls++
	return f.transcript, nil
}

func TestEvaluateExamTranscriptMediatedFeedsTextBackend(t *testing.T) {
	primary := &fakeGateway{
		name:    "gemini",
		evals:   map[float32]string{1.0: "first A"},
		reviews: map[float32]string{1.0: "final A"},
	}
	secondary := &fakeGateway{
		name:    "claude",
		evals:   map[float32]string{1.0: "first B"},
		reviews: map[float32]string{1.0: "final B"},
	}
	transcriber := &fakeTranscriber{transcript: "the student explains quicksort"}
	extractor := &fakeExtractor{grades: map[string]int{"final A": 88, "final B": 92}}

	svc, err := NewExamService(ExamServiceConfig{
		Primary:     primary,
		Secondary:   secondary,
		Extractor:   extractor,
		Prompts:     defaultPrompts(),
		Transcriber: transcriber,
		Strategy:    config.StrategyTranscriptMediated,
		PrimaryTemp: 1.0,
		Logger:      testLogger(),
	})
	require.NoError(t, err)

	grade, err := svc.EvaluateExam(context.Background(), ExamInput{
		Audio:     ai.Media{Data: []byte("audio"), MIMEType: "audio/webm"},
		ClassName: "Algorithms",
	})
	require.NoError(t, err)
	require.Equal(t, 90, grade)

	require.Equal(t, 1, transcriber.calls)
	require.Len(t, secondary.evalIn, 1)
	require.Equal(t, "the student explains quicksort", secondary.evalIn[0].Transcript)
	require.Empty(t, secondary.evalIn[0].Audio.Data)
	require.Len(t, primary.evalIn, 1)
	require.Equal(t, []byte("audio"), primary.evalIn[0].Audio.Data)
}

// blockingGateway parks until its context is canceled, standing in for a
// slow sibling call that is still in flight when the other lane fails.
type blockingGateway struct {
	name     string
	canceled chan struct{}
}

func (b *blockingGateway) Provider() string { return b.name }

func (b *blockingGateway) Evaluate(ctx context.Context, input ai.EvaluationInput) (ai.Report, error) {
	<-ctx.Done()
	close(b.canceled)
	return ai.Report{}, ctx.Err()
}

func (b *blockingGateway) ReviewPeer(ctx context.Context, input ai.ReviewInput) (ai.Report, error) {
	return ai.Report{}, ctx.Err()
}

func TestEvaluateExamCancelsSiblingAndDiscardsItsResult(t *testing.T) {
	backendErr := &ai.BackendError{Provider: "gemini", Err: errors.New("boom")}
	failing := &fakeGateway{name: "gemini", evalErr: backendErr}
	blocking := &blockingGateway{name: "claude", canceled: make(chan struct{})}

	svc, err := NewExamService(ExamServiceConfig{
		Primary:     failing,
		Secondary:   blocking,
		Extractor:   &fakeExtractor{},
		Prompts:     defaultPrompts(),
		Strategy:    config.StrategyDualBackend,
		PrimaryTemp: 1.0,
		Logger:      testLogger(),
	})
	require.NoError(t, err)

	_, err = svc.EvaluateExam(context.Background(), ExamInput{
		Audio:     ai.Media{Data: []byte("audio"), MIMEType: "audio/webm"},
		ClassName: "Algorithms",
	})
	require.Error(t, err)

	// The backend failure surfaces, not the canceled sibling's context error.
	var be *ai.BackendError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "gemini", be.Provider)

	// The sibling call was canceled rather than left running.
	<-blocking.canceled
}

func TestNewExamServiceRejectsIncompleteStrategies(t *testing.T) {
	gateway := &fakeGateway{name: "gemini"}
	extractor := &fakeExtractor{}

	_, err := NewExamService(ExamServiceConfig{
		Primary:   gateway,
		Extractor: extractor,
		Prompts:   defaultPrompts(),
		Strategy:  config.StrategyDualBackend,
		Logger:    testLogger(),
	})
	require.Error(t, err)

	_, err = NewExamService(ExamServiceConfig{
		Primary:   gateway,
		Secondary: &fakeGateway{name: "claude"},
		Extractor: extractor,
		Prompts:   defaultPrompts(),
		Strategy:  config.StrategyTranscriptMediated,
		Logger:    testLogger(),
	})
	require.Error(t, err)

	_, err = NewExamService(ExamServiceConfig{
		Primary:   gateway,
		Extractor: extractor,
		Prompts:   defaultPrompts(),
		Strategy:  "three-way",
		Logger:    testLogger(),
	})
	require.Error(t, err)
}
