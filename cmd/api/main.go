package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/vivalab/viva-go-api/internal/config"
	"github.com/vivalab/viva-go-api/internal/handler"
	"github.com/vivalab/viva-go-api/internal/middleware"
	"github.com/vivalab/viva-go-api/internal/prompt"
	"github.com/vivalab/viva-go-api/internal/router"
	"github.com/vivalab/viva-go-api/internal/service"
	"github.com/vivalab/viva-go-api/pkg/ai"
	"github.com/vivalab/viva-go-api/pkg/elevenlabs"
	speechclient "github.com/vivalab/viva-go-api/pkg/speech"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := context.Background()

	if cfg.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY is required")
	}

	geminiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Fatalf("failed to create gemini client: %v", err)
	}

	primary, err := ai.NewGeminiGateway(ctx, ai.GeminiConfig{
		Client:          geminiClient,
		Model:           cfg.GeminiModel,
		PeerReportLimit: cfg.PeerReportLimit,
		Logger:          logger,
	})
	if err != nil {
		log.Fatalf("failed to create gemini gateway: %v", err)
	}

	prompts := prompt.NewStore(cfg.PromptsDir)

	extractorInstructions, err := prompts.Load("find_final_score")
	if err != nil {
		log.Fatalf("failed to load grade extraction prompt: %v", err)
	}

	extractor, err := ai.NewGeminiExtractor(ctx, ai.ExtractorConfig{
		Client:       geminiClient,
		Model:        cfg.ExtractorModel,
		Instructions: extractorInstructions,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("failed to create grade extractor: %v", err)
	}

	// The secondary backend and the transcriber are only built for the
	// strategies that use them, so a missing CLAUDE_API_KEY does not stop a
	// dual-temperature deployment.
	var secondary ai.Gateway
	if cfg.Strategy == config.StrategyDualBackend || cfg.Strategy == config.StrategyTranscriptMediated {
		claude, err := ai.NewClaudeGateway(ai.ClaudeConfig{
			APIKey:          cfg.ClaudeAPIKey,
			BaseURL:         cfg.ClaudeBaseURL,
			Model:           cfg.ClaudeModel,
			PeerReportLimit: cfg.PeerReportLimit,
			Logger:          logger,
		})
		if err != nil {
			log.Fatalf("failed to create claude gateway: %v", err)
		}
		secondary = claude
	}

	var transcripts *service.TranscriptService
	transcriber, err := speechclient.New(ctx, speechclient.Config{
		APIKey:   cfg.GeminiAPIKey,
		Deadline: cfg.TranscribeTimeout,
		Logger:   logger,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("speech-to-text unavailable, transcript endpoint disabled")
	} else {
		defer transcriber.Close()
		transcripts, err = service.NewTranscriptService(transcriber, cfg.LanguageCode, logger)
		if err != nil {
			log.Fatalf("failed to create transcript service: %v", err)
		}
	}

	if cfg.Strategy == config.StrategyTranscriptMediated && transcripts == nil {
		log.Fatal("transcript-mediated strategy requires speech-to-text")
	}

	examService, err := service.NewExamService(service.ExamServiceConfig{
		Primary:     primary,
		Secondary:   secondary,
		Extractor:   extractor,
		Prompts:     prompts,
		Transcriber: transcriptsOrNil(transcripts),
		Strategy:    cfg.Strategy,
		PrimaryTemp: cfg.PrimaryTemperature,
		DiverseTemp: cfg.DiverseTemperature,
		CallTimeout: cfg.CallTimeout,
		Language:    cfg.LanguageCode,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to create exam service: %v", err)
	}

	anticheatService, err := service.NewAnticheatService(service.AnticheatServiceConfig{
		Client:      geminiClient,
		Model:       cfg.GeminiModel,
		Prompts:     prompts,
		CallTimeout: cfg.CallTimeout,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to create anticheat service: %v", err)
	}

	var speechService service.SpeechService
	if cfg.ElevenLabsAPIKey != "" {
		tts, err := elevenlabs.New(elevenlabs.Config{
			APIKey:  cfg.ElevenLabsAPIKey,
			VoiceID: cfg.TTSVoiceID,
			ModelID: cfg.TTSModelID,
			Logger:  logger,
		})
		if err != nil {
			log.Fatalf("failed to create elevenlabs client: %v", err)
		}
		speechService, err = service.NewSpeechService(tts, logger)
		if err != nil {
			log.Fatalf("failed to create speech service: %v", err)
		}
	} else {
		logger.Warn().Msg("ELEVENLABS_API_KEY not set, speech batch endpoint disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	examHandler := handler.NewExamHandler(examService, anticheatService, transcripts, logger)
	speechHandler := handler.NewSpeechHandler(speechService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    256 * 1024 * 1024, // recordings arrive inline
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ExamHandler:   examHandler,
		SpeechHandler: speechHandler,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

// transcriptsOrNil keeps a typed-nil *TranscriptService from sneaking into
// the non-nil Transcriber interface check.
func transcriptsOrNil(transcripts *service.TranscriptService) service.Transcriber {
	if transcripts == nil {
		return nil
	}
	return transcripts
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
