// FILE: internal/pkg/serverutils/error_handler.go
package serverutils

import (
	"errors"

	"ai-knowledgebase-be/internal/entity"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps the pipeline error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	var validationErr *ValidationError

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validationErr),
		errors.Is(err, entity.ErrInvalidIdentifier),
		errors.Is(err, entity.ErrNoFiles),
		errors.Is(err, entity.ErrCollectionRequired),
		errors.Is(err, entity.ErrEmptyQuery),
		errors.Is(err, entity.ErrFilenameRequired):
		return fiber.StatusBadRequest
	case errors.Is(err, entity.ErrCollectionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, entity.ErrMergeFailure):
		return fiber.StatusConflict
	case errors.Is(err, entity.ErrFileTooLarge), errors.Is(err, entity.ErrTooManyFiles):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, entity.ErrUnsupportedFormat):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, entity.ErrParseFailure):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrIndexWriteFailure):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware renders any error returned down the chain as an ErrorResponse.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := StatusFor(err)
		message := err.Error()
		if code == fiber.StatusInternalServerError {
			message = "internal server error"
		}
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
