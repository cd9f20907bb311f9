package speech

import (
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/require"
)

func TestRecognitionConfigMapsMIMETypes(t *testing.T) {
	tests := []struct {
		mimeType   string
		encoding   speechpb.RecognitionConfig_AudioEncoding
		sampleRate int32
	}{
		{"audio/webm", speechpb.RecognitionConfig_WEBM_OPUS, 48000},
		{"audio/ogg", speechpb.RecognitionConfig_OGG_OPUS, 48000},
		{"audio/flac", speechpb.RecognitionConfig_FLAC, 16000},
		{"audio/wav", speechpb.RecognitionConfig_LINEAR16, 16000},
		{"audio/x-wav", speechpb.RecognitionConfig_LINEAR16, 16000},
		{"audio/mp3", speechpb.RecognitionConfig_MP3, 0},
		{"audio/mpeg", speechpb.RecognitionConfig_MP3, 0},
		{"audio/unknown", speechpb.RecognitionConfig_WEBM_OPUS, 0},
	}

	for _, tc := range tests {
		cfg := RecognitionConfig(tc.mimeType, "en-US")
		require.Equal(t, tc.encoding, cfg.Encoding, tc.mimeType)
		require.Equal(t, tc.sampleRate, cfg.SampleRateHertz, tc.mimeType)
		require.Equal(t, "en-US", cfg.LanguageCode, tc.mimeType)
		require.True(t, cfg.EnableAutomaticPunctuation, tc.mimeType)
		require.Equal(t, "latest_long", cfg.Model, tc.mimeType)
	}
}

func TestJoinTranscriptUsesBestAlternatives(t *testing.T) {
	resp := &speechpb.LongRunningRecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{
				{Transcript: " the student begins "},
				{Transcript: "ignored second alternative"},
			}},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{}},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{
				{Transcript: "with a definition"},
			}},
		},
	}

	require.Equal(t, "the student begins with a definition", JoinTranscript(resp))
}

func TestJoinTranscriptEmptyResponse(t *testing.T) {
	require.Equal(t, "", JoinTranscript(nil))
	require.Equal(t, "", JoinTranscript(&speechpb.LongRunningRecognizeResponse{}))
}
