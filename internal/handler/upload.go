package handler

import (
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/reelcut/api/internal/service"
	"github.com/reelcut/api/pkg/response"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

type UploadHandler struct {
	service   *service.UploadService
	validator *validator.Validate
}

func NewUploadHandler(svc *service.UploadService, v *validator.Validate) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		validator: v,
	}
}

// Media handles POST /api/upload/media
// @Summary      Upload source media
// @Description  Upload a video, audio or image file to use as an element source
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        projectId formData string true "Project ID"
// @Param        file      formData file   true "Media file (max 50MB)"
// @Success      201 {object} model.UploadMediaResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/media [post]
func (h *UploadHandler) Media(c *fiber.Ctx) error {
	projectID := c.FormValue("projectId")
	if projectID == "" {
		return response.ValidationError(c, "projectId is required", nil)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	// Strip parameters such as "; codecs=..."
	contentType, _, _ := strings.Cut(file.Header.Get("Content-Type"), ";")
	contentType = strings.TrimSpace(strings.ToLower(contentType))
	if _, ok := service.MediaTypes[contentType]; !ok {
		return response.ValidationError(c, "Unsupported media type", map[string]interface{}{
			"contentType": contentType,
			"supported":   supportedTypes(),
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.UploadMedia(c.Context(), projectID, contentType, f, file.Size)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Created(c, result)
}

// DeleteMedia handles DELETE /api/upload/media/:projectId/:fileName
// @Summary      Delete uploaded media
// @Tags         Upload
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        fileName  path string true "Stored file name"
// @Success      204 "No Content"
// @Failure      401 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/media/{projectId}/{fileName} [delete]
func (h *UploadHandler) DeleteMedia(c *fiber.Ctx) error {
	fileName := c.Params("fileName")
	if strings.Contains(fileName, "/") || strings.Contains(fileName, "..") {
		return response.ValidationError(c, "Invalid file name", nil)
	}

	if err := h.service.DeleteMedia(c.Context(), c.Params("projectId"), fileName); err != nil {
		return serviceError(c, err)
	}

	return response.NoContent(c)
}

func supportedTypes() []string {
	types := make([]string, 0, len(service.MediaTypes))
	for t := range service.MediaTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
