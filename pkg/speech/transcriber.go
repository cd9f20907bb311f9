package speech

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const pollInterval = 2 * time.Second

// TimeoutError indicates the long-running recognition did not finish before
// the configured deadline.
type TimeoutError struct {
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("speech-to-text timed out after %s", e.Deadline)
}

// Config defines configuration options for the transcriber.
type Config struct {
	APIKey   string
	Deadline time.Duration
	Logger   zerolog.Logger
}

// Transcriber wraps Google Cloud Speech-to-Text long-running recognition.
// Recognition is started asynchronously and polled every two seconds until
// it completes or the deadline elapses.
type Transcriber struct {
	client *speech.Client
	cfg    Config
	logger zerolog.Logger
}

// New builds a transcriber authenticated with the given API key.
func New(ctx context.Context, cfg Config) (*Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("speech-to-text api key is required")
	}

	if cfg.Deadline <= 0 {
		cfg.Deadline = 10 * time.Minute
	}

	client, err := speech.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	return &Transcriber{
		client: client,
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "transcriber").Logger(),
	}, nil
}

// Close releases the underlying gRPC connection.
func (t *Transcriber) Close() error {
	return t.client.Close()
}

// Transcribe runs long-running recognition over the audio and returns the
// joined transcript.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	req := &speechpb.LongRunningRecognizeRequest{
		Config: RecognitionConfig(mimeType, language),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	t.logger.Info().Str("mime_type", mimeType).Int("audio_bytes", len(audio)).Msg("starting transcription")

	op, err := t.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("start recognition: %w", err)
	}

	deadline := time.Now().Add(t.cfg.Deadline)
	for time.Now().Before(deadline) {
		resp, err := op.Poll(ctx)
		if err != nil {
			return "", fmt.Errorf("poll recognition: %w", err)
		}
		if op.Done() {
			transcript := JoinTranscript(resp)
			t.logger.Info().Int("transcript_chars", len(transcript)).Msg("transcription completed")
			return transcript, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	return "", &TimeoutError{Deadline: t.cfg.Deadline}
}

// RecognitionConfig maps a MIME type to the encoding and sample rate Google
// Speech expects. Unknown types fall back to WEBM_OPUS, the format browsers
// record in.
func RecognitionConfig(mimeType, language string) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_WEBM_OPUS,
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
		Model:                      "latest_long",
	}

	switch strings.ToLower(mimeType) {
	case "audio/webm":
		cfg.Encoding = speechpb.RecognitionConfig_WEBM_OPUS
		cfg.SampleRateHertz = 48000
	case "audio/ogg":
		cfg.Encoding = speechpb.RecognitionConfig_OGG_OPUS
		cfg.SampleRateHertz = 48000
	case "audio/flac":
		cfg.Encoding = speechpb.RecognitionConfig_FLAC
		cfg.SampleRateHertz = 16000
	case "audio/wav", "audio/x-wav":
		cfg.Encoding = speechpb.RecognitionConfig_LINEAR16
		cfg.SampleRateHertz = 16000
	case "audio/mp3", "audio/mpeg":
		cfg.Encoding = speechpb.RecognitionConfig_MP3
	}

	return cfg
}

// JoinTranscript concatenates the best alternative of every result into one
// transcript string.
func JoinTranscript(resp *speechpb.LongRunningRecognizeResponse) string {
	if resp == nil {
		return ""
	}

	parts := make([]string, 0, len(resp.GetResults()))
	for _, result := range resp.GetResults() {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		transcript := strings.TrimSpace(alternatives[0].GetTranscript())
		if transcript != "" {
			parts = append(parts, transcript)
		}
	}

	return strings.Join(parts, " ")
}
