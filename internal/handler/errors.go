package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/reelcut/api/internal/render"
	"github.com/reelcut/api/internal/service"
	"github.com/reelcut/api/internal/timeline"
	"github.com/reelcut/api/pkg/response"
)

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}

// serviceError maps domain errors onto the response envelope
func serviceError(c *fiber.Ctx, err error) error {
	var ve *timeline.ValidationError
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		return response.NotFound(c, "Project not found")
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrJobCompleted):
		return response.Conflict(c, "Job already completed")
	case errors.Is(err, service.ErrJobFailed):
		return response.RenderFailed(c, err.Error())
	case errors.Is(err, service.ErrJobNotCompleted):
		return response.ValidationError(c, "Job not completed yet", nil)
	case errors.Is(err, render.ErrRenderInProgress):
		return response.Conflict(c, "A render is already in progress for this project")
	case errors.Is(err, service.ErrStorageNotConfigured):
		return response.Unavailable(c, "Object storage is not configured")
	case errors.As(err, &ve):
		return response.Rejected(c, ve.Code, ve.Message)
	case render.KindOf(err) == render.KindValidation:
		return response.ValidationError(c, err.Error(), nil)
	}
	return response.ServiceError(c, err.Error())
}
