package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/reelcut/api/internal/model"
	"github.com/reelcut/api/internal/service"
	"github.com/reelcut/api/pkg/response"
)

type ExportHandler struct {
	service   *service.ExportService
	validator *validator.Validate
}

func NewExportHandler(svc *service.ExportService, v *validator.Validate) *ExportHandler {
	return &ExportHandler{
		service:   svc,
		validator: v,
	}
}

// EDL handles GET /api/projects/:projectId/export/edl
// @Summary      Export EDL
// @Description  Export the project's video and audio clips as a CMX3600 edit decision list
// @Tags         Export
// @Produce      plain
// @Param        projectId path  string true  "Project ID"
// @Param        frameRate query number false "Timecode rate, defaults to the project fps"
// @Success      200 {string} string
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId}/export/edl [get]
func (h *ExportHandler) EDL(c *fiber.Ctx) error {
	var q model.ExportEDLQuery
	if err := c.QueryParser(&q); err != nil {
		return response.ValidationError(c, "Invalid query parameters", nil)
	}

	if err := h.validator.Struct(&q); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	projectID := c.Params("projectId")
	edl, err := h.service.EDL(c.Context(), projectID, &q)
	if err != nil {
		return serviceError(c, err)
	}

	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+projectID+`.edl"`)
	c.Type("txt", "utf-8")
	return c.SendString(edl)
}

// Snapshot handles POST /api/projects/:projectId/export/snapshot
// @Summary      Export project snapshot
// @Description  Store a versioned JSON snapshot of the project. Without object storage the snapshot is returned inline.
// @Tags         Export
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Success      200 {object} model.ExportSnapshotResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId}/export/snapshot [post]
func (h *ExportHandler) Snapshot(c *fiber.Ctx) error {
	result, data, err := h.service.Snapshot(c.Context(), c.Params("projectId"))
	if err != nil {
		return serviceError(c, err)
	}

	if data != nil {
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+result.ProjectID+`.json"`)
		c.Type("json", "utf-8")
		return c.Status(fiber.StatusOK).Send(data)
	}

	return response.OK(c, result)
}
