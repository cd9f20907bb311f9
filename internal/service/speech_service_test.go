package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSynth echoes the text back as audio, or fails on a chosen question.
type fakeSynth struct {
	failOn string
	calls  int
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.calls++
	if text == f.failOn {
		return nil, errors.New("synthesis refused")
	}
	return []byte("mp3:" + text), nil
}

func TestGenerateBatchNamesClipsByPosition(t *testing.T) {
	synth := &fakeSynth{}
	svc, err := NewSpeechService(synth, testLogger())
	require.NoError(t, err)

	questions := []string{"What is a goroutine?", "Explain channels.", "What does select do?"}
	batch, err := svc.GenerateBatch(context.Background(), questions)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	require.Equal(t, []byte("mp3:What is a goroutine?"), batch["question_01.mp3"])
	require.Equal(t, []byte("mp3:Explain channels."), batch["question_02.mp3"])
	require.Equal(t, []byte("mp3:What does select do?"), batch["question_03.mp3"])
}

func TestGenerateBatchFailsWhole(t *testing.T) {
	synth := &fakeSynth{failOn: "Explain channels."}
	svc, err := NewSpeechService(synth, testLogger())
	require.NoError(t, err)

	_, err = svc.GenerateBatch(context.Background(), []string{"What is a goroutine?", "Explain channels."})
	require.Error(t, err)
}

func TestGenerateBatchEmptyInput(t *testing.T) {
	synth := &fakeSynth{}
	svc, err := NewSpeechService(synth, testLogger())
	require.NoError(t, err)

	batch, err := svc.GenerateBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, batch)
	require.Zero(t, synth.calls)
}

func TestBatchFilenamePadsIndex(t *testing.T) {
	require.Equal(t, "question_01.mp3", BatchFilename(0))
	require.Equal(t, "question_10.mp3", BatchFilename(9))
	require.Equal(t, fmt.Sprintf("question_%d.mp3", 100), BatchFilename(99))
}
