package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/vivalab/viva-go-api/internal/dto"
	"github.com/vivalab/viva-go-api/internal/service"
	"github.com/vivalab/viva-go-api/internal/utils"
)

// ExamHandler manages the exam evaluation endpoints.
type ExamHandler struct {
	exams       service.ExamService
	anticheat   service.AnticheatService
	transcripts *service.TranscriptService
	logger      zerolog.Logger
}

// NewExamHandler builds an exam handler instance. The anticheat and
// transcript services are optional; their endpoints answer 503 when the
// corresponding backend is not configured.
func NewExamHandler(exams service.ExamService, anticheat service.AnticheatService, transcripts *service.TranscriptService, logger zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		exams:       exams,
		anticheat:   anticheat,
		transcripts: transcripts,
		logger:      logger.With().Str("component", "exam_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ExamHandler) Register(router fiber.Router) {
	router.Post("/analyze", h.analyze)
	router.Post("/anticheat", h.detectCheating)
	router.Post("/transcript", h.transcribe)
}

func (h *ExamHandler) analyze(c *fiber.Ctx) error {
	audioHeader, err := c.FormFile("audio")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "audio file is required")
	}

	className := strings.TrimSpace(c.FormValue("class_name"))
	if className == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "class_name is required")
	}

	audio, err := readFormMedia(audioHeader)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "could not read audio upload")
	}

	grade, err := h.exams.EvaluateExam(c.UserContext(), service.ExamInput{
		Audio:     audio,
		ClassName: className,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("class_name", className).Msg("exam evaluation failed")
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "exam evaluated", dto.ExamAnalysisResponse{Grade: grade})
}

func (h *ExamHandler) detectCheating(c *fiber.Ctx) error {
	if h.anticheat == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "anticheat analysis is not configured")
	}

	audioHeader, err := c.FormFile("audio")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "audio file is required")
	}
	videoHeader, err := c.FormFile("video")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "video file is required")
	}

	audio, err := readFormMedia(audioHeader)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "could not read audio upload")
	}
	video, err := readFormMedia(videoHeader)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "could not read video upload")
	}

	input := service.AnticheatInput{Audio: audio, Video: video}
	if screenHeader, err := c.FormFile("screen"); err == nil {
		screen, err := readFormMedia(screenHeader)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "could not read screen upload")
		}
		input.Screen = screen
	}

	assessment, err := h.anticheat.DetectCheating(c.UserContext(), input)
	if err != nil {
		h.logger.Error().Err(err).Msg("cheating analysis failed")
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "analysis completed", assessment)
}

func (h *ExamHandler) transcribe(c *fiber.Ctx) error {
	if h.transcripts == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "transcription is not configured")
	}

	audioHeader, err := c.FormFile("audio")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "audio file is required")
	}

	audio, err := readFormMedia(audioHeader)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "could not read audio upload")
	}

	transcript, err := h.transcripts.Transcribe(c.UserContext(), audio, strings.TrimSpace(c.FormValue("language")))
	if err != nil {
		h.logger.Error().Err(err).Msg("transcription failed")
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "audio transcribed", dto.TranscriptResponse{Transcript: transcript})
}
