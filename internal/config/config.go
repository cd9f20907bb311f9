package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Orchestration strategies supported by the exam pipeline.
const (
	StrategyDualTemperature    = "dual-temperature"
	StrategyDualBackend        = "dual-backend"
	StrategyTranscriptMediated = "transcript-mediated"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	PromptsDir string
	Strategy   string

	GeminiAPIKey     string
	ClaudeAPIKey     string
	ElevenLabsAPIKey string

	GeminiModel    string
	ClaudeModel    string
	ClaudeBaseURL  string
	ExtractorModel string

	PrimaryTemperature float32
	DiverseTemperature float32

	CallTimeout       time.Duration
	TranscribeTimeout time.Duration
	PeerReportLimit   int

	TTSVoiceID   string
	TTSModelID   string
	LanguageCode string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional
// .env file. Provider credentials keep their documented unprefixed names;
// everything else lives under VIVA_*.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("VIVA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Credentials are looked up by their exact documented names.
	_ = v.BindEnv("claude.api_key", "CLAUDE_API_KEY")
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")

	v.SetDefault("app.name", "VIVA API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("prompts.dir", "prompts")
	v.SetDefault("strategy", StrategyDualTemperature)
	v.SetDefault("gemini.model", "gemini-3-pro-preview")
	v.SetDefault("claude.model", "claude-sonnet-4-20250514")
	v.SetDefault("claude.base_url", "")
	v.SetDefault("extractor.model", "gemini-2.0-flash")
	v.SetDefault("temperature.primary", 1.0)
	v.SetDefault("temperature.diverse", 1.5)
	v.SetDefault("call_timeout", "120s")
	v.SetDefault("transcribe_timeout", "600s")
	v.SetDefault("peer_report_limit", 262144)
	v.SetDefault("tts.voice_id", "TX3LPaxmHKxFdv7VOQHJ")
	v.SetDefault("tts.model_id", "eleven_multilingual_v2")
	v.SetDefault("language_code", "en-US")

	callTimeout, err := time.ParseDuration(v.GetString("call_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid call timeout: %w", err)
	}

	transcribeTimeout, err := time.ParseDuration(v.GetString("transcribe_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid transcribe timeout: %w", err)
	}

	strategy := strings.ToLower(v.GetString("strategy"))
	switch strategy {
	case StrategyDualTemperature, StrategyDualBackend, StrategyTranscriptMediated:
	default:
		return Config{}, fmt.Errorf("unknown orchestration strategy %q", strategy)
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		PromptsDir:         v.GetString("prompts.dir"),
		Strategy:           strategy,
		GeminiAPIKey:       v.GetString("gemini.api_key"),
		ClaudeAPIKey:       v.GetString("claude.api_key"),
		ElevenLabsAPIKey:   v.GetString("elevenlabs.api_key"),
		GeminiModel:        v.GetString("gemini.model"),
		ClaudeModel:        v.GetString("claude.model"),
		ClaudeBaseURL:      v.GetString("claude.base_url"),
		ExtractorModel:     v.GetString("extractor.model"),
		PrimaryTemperature: float32(v.GetFloat64("temperature.primary")),
		DiverseTemperature: float32(v.GetFloat64("temperature.diverse")),
		CallTimeout:        callTimeout,
		TranscribeTimeout:  transcribeTimeout,
		PeerReportLimit:    v.GetInt("peer_report_limit"),
		TTSVoiceID:         v.GetString("tts.voice_id"),
		TTSModelID:         v.GetString("tts.model_id"),
		LanguageCode:       v.GetString("language_code"),
	}

	if cfg.PeerReportLimit < 0 {
		cfg.PeerReportLimit = 0
	}

	return cfg, nil
}
