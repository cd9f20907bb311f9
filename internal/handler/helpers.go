package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"

	"github.com/vivalab/viva-go-api/internal/service"
	"github.com/vivalab/viva-go-api/pkg/ai"
	"github.com/vivalab/viva-go-api/pkg/speech"
)

// readFormMedia pulls a multipart file into memory together with its MIME
// type. When the upload does not declare a content type it is sniffed from
// the bytes.
func readFormMedia(header *multipart.FileHeader) (ai.Media, error) {
	file, err := header.Open()
	if err != nil {
		return ai.Media{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ai.Media{}, err
	}

	mimeType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(data).String()
	}

	return ai.Media{Data: data, MIMEType: mimeType}, nil
}

// statusForError maps the pipeline error taxonomy onto HTTP status codes.
// The cause chain stays in the response message so callers see the original
// backend failure.
func statusForError(err error) int {
	var backendErr *ai.BackendError
	var parseErr *ai.GradeParseError
	var malformedErr *ai.MalformedResponseError
	var promptErr *service.PromptLoadError
	var timeoutErr *speech.TimeoutError

	switch {
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, ai.ErrUnsupportedMedia):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, ai.ErrPayloadTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.As(err, &parseErr), errors.As(err, &malformedErr):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &backendErr):
		return fiber.StatusBadGateway
	case errors.As(err, &promptErr), errors.Is(err, ai.ErrMissingCredential):
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}
