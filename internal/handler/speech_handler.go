package handler

import (
	"archive/zip"
	"bytes"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/vivalab/viva-go-api/internal/dto"
	"github.com/vivalab/viva-go-api/internal/service"
	"github.com/vivalab/viva-go-api/internal/utils"
)

// SpeechHandler manages the text-to-speech batch endpoint.
type SpeechHandler struct {
	speech    service.SpeechService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSpeechHandler builds a speech handler instance.
func NewSpeechHandler(speech service.SpeechService, validator *validator.Validate, logger zerolog.Logger) *SpeechHandler {
	return &SpeechHandler{
		speech:    speech,
		validator: validator,
		logger:    logger.With().Str("component", "speech_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SpeechHandler) Register(router fiber.Router) {
	router.Post("/batch", h.batch)
}

func (h *SpeechHandler) batch(c *fiber.Ctx) error {
	if h.speech == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "speech synthesis is not configured")
	}

	var payload dto.SpeechBatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "questions must be a non-empty list of non-empty strings")
	}

	batch, err := h.speech.GenerateBatch(c.UserContext(), payload.Questions)
	if err != nil {
		h.logger.Error().Err(err).Int("questions", len(payload.Questions)).Msg("speech batch failed")
		return utils.SendError(c, statusForError(err), err.Error())
	}

	archive, err := zipBatch(batch)
	if err != nil {
		h.logger.Error().Err(err).Msg("zip packaging failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "could not package audio batch")
	}

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="questions.zip"`)
	return c.Send(archive)
}

// zipBatch packages the generated clips into a zip archive with entries in
// filename order.
func zipBatch(batch map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(batch))
	for name := range batch {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		entry, err := w.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := entry.Write(batch[name]); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
