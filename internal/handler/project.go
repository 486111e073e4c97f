package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/reelcut/api/internal/model"
	"github.com/reelcut/api/internal/service"
	ws "github.com/reelcut/api/internal/websocket"
	"github.com/reelcut/api/pkg/response"
)

type ProjectHandler struct {
	service    *service.ProjectService
	validator  *validator.Validate
	dragWindow time.Duration
	logger     hclog.Logger
}

func NewProjectHandler(svc *service.ProjectService, v *validator.Validate, dragWindow time.Duration, logger hclog.Logger) *ProjectHandler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &ProjectHandler{
		service:    svc,
		validator:  v,
		dragWindow: dragWindow,
		logger:     logger,
	}
}

// parse reads and validates a JSON body into req. It writes the error
// response itself and reports whether the handler should continue.
func (h *ProjectHandler) parse(c *fiber.Ctx, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return false, response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	return true, nil
}

// Create handles POST /api/projects
// @Summary      Create project
// @Description  Create an empty project with the given frame rate and canvas size
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Param        request body model.CreateProjectRequest true "Project settings"
// @Success      201 {object} timeline.Project
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects [post]
func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	var req model.CreateProjectRequest
	if len(c.Body()) > 0 {
		if ok, err := h.parse(c, &req); !ok {
			return err
		}
	}

	project, err := h.service.Create(c.Context(), &req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Created(c, project)
}

// Import handles POST /api/projects/import
// @Summary      Import project
// @Description  Create a project from a previously exported snapshot
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Success      201 {object} timeline.Project
// @Failure      400 {object} response.ErrorResponse
// @Failure      422 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/import [post]
func (h *ProjectHandler) Import(c *fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return response.ValidationError(c, "Snapshot body is required", nil)
	}

	project, err := h.service.Import(c.Context(), c.Body())
	if err != nil {
		return serviceError(c, err)
	}

	return response.Created(c, project)
}

// Get handles GET /api/projects/:projectId
// @Summary      Get project
// @Tags         Projects
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Success      200 {object} timeline.Project
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId} [get]
func (h *ProjectHandler) Get(c *fiber.Ctx) error {
	project, err := h.service.Get(c.Context(), c.Params("projectId"))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, project)
}

// Update handles PATCH /api/projects/:projectId
// @Summary      Update project settings
// @Description  Rename the project or change its playhead, zoom or mute state
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body model.UpdateProjectRequest true "Fields to change"
// @Success      200 {object} timeline.Project
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId} [patch]
func (h *ProjectHandler) Update(c *fiber.Ctx) error {
	var req model.UpdateProjectRequest
	if ok, err := h.parse(c, &req); !ok {
		return err
	}

	project, err := h.service.Update(c.Context(), c.Params("projectId"), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, project)
}

// AddMedia handles POST /api/projects/:projectId/media
// @Summary      Add media element
// @Description  Append a video, audio or image clip to the timeline
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body model.AddMediaRequest true "Media element"
// @Success      201 {object} model.ElementResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      422 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId}/media [post]
func (h *ProjectHandler) AddMedia(c *fiber.Ctx) error {
	var req model.AddMediaRequest
	if ok, err := h.parse(c, &req); !ok {
		return err
	}

	result, err := h.service.AddMedia(c.Context(), c.Params("projectId"), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Created(c, result)
}

// AddText handles POST /api/projects/:projectId/texts
// @Summary      Add text element
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body model.AddTextRequest true "Text element"
// @Success      201 {object} model.ElementResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      422 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId}/texts [post]
func (h *ProjectHandler) AddText(c *fiber.Ctx) error {
	var req model.AddTextRequest
	if ok, err := h.parse(c, &req); !ok {
		return err
	}

	result, err := h.service.AddText(c.Context(), c.Params("projectId"), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Created(c, result)
}

// UpdateMedia handles PATCH /api/projects/:projectId/media/:elementId
// @Summary      Update media element
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        elementId path string true "Element ID"
// @Param        request body model.UpdateMediaRequest true "Fields to change"
// @Success      200 {object} timeline.Project
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      422 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId}/media/{elementId} [patch]
func (h *ProjectHandler) UpdateMedia(c *fiber.Ctx) error {
	var req model.UpdateMediaRequest
	if ok, err := h.parse(c, &req); !ok {
		return err
	}

	project, err := h.service.UpdateMedia(c.Context(), c.Params("projectId"), c.Params("elementId"), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, project)
}

// UpdateText handles PATCH /api/projects/:projectId/texts/:elementId
// @Summary      Update text element
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        elementId path string true "Element ID"
// @Param        request body model.UpdateTextRequest true "Fields to change"
// @Success      200 {object} timeline.Project
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      422 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId}/texts/{elementId} [patch]
func (h *ProjectHandler) UpdateText(c *fiber.Ctx) error {
	var req model.UpdateTextRequest
	if ok, err := h.parse(c, &req); !ok {
		return err
	}

	project, err := h.service.UpdateText(c.Context(), c.Params("projectId"), c.Params("elementId"), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, project)
}

// DeleteElement handles DELETE /api/projects/:projectId/elements/:elementId
// @Summary      Delete element
// @Description  Remove a media or text element. Unknown ids leave the project unchanged.
// @Tags         Projects
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        elementId path string true "Element ID"
// @Success      200 {object} timeline.Project
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId}/elements/{elementId} [delete]
func (h *ProjectHandler) DeleteElement(c *fiber.Ctx) error {
	project, err := h.service.DeleteElement(c.Context(), c.Params("projectId"), c.Params("elementId"))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, project)
}

// Split handles POST /api/projects/:projectId/split
// @Summary      Split element
// @Description  Cut the selected element at a time, defaulting to the playhead
// @Tags         Edits
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body model.SplitRequest true "Selection and cut time"
// @Success      200 {object} timeline.Project
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      422 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId}/split [post]
func (h *ProjectHandler) Split(c *fiber.Ctx) error {
	var req model.SplitRequest
	if ok, err := h.parse(c, &req); !ok {
		return err
	}

	project, err := h.service.Split(c.Context(), c.Params("projectId"), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, project)
}

// Duplicate handles POST /api/projects/:projectId/duplicate
// @Summary      Duplicate element
// @Tags         Edits
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body model.DuplicateRequest true "Selection"
// @Success      200 {object} timeline.Project
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      422 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId}/duplicate [post]
func (h *ProjectHandler) Duplicate(c *fiber.Ctx) error {
	var req model.DuplicateRequest
	if ok, err := h.parse(c, &req); !ok {
		return err
	}

	project, err := h.service.Duplicate(c.Context(), c.Params("projectId"), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, project)
}

// Drag handles POST /api/projects/:projectId/drag
// @Summary      Move element
// @Description  Move the selected element so it starts at a pixel offset on the timeline
// @Tags         Edits
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body model.DragRequest true "Selection and left offset"
// @Success      200 {object} timeline.Project
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      422 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId}/drag [post]
func (h *ProjectHandler) Drag(c *fiber.Ctx) error {
	var req model.DragRequest
	if ok, err := h.parse(c, &req); !ok {
		return err
	}

	project, err := h.service.Drag(c.Context(), c.Params("projectId"), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, project)
}

// Resize handles POST /api/projects/:projectId/resize
// @Summary      Resize element
// @Description  Move the selected element's right edge to a pixel width
// @Tags         Edits
// @Accept       json
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Param        request body model.ResizeRequest true "Selection and width"
// @Success      200 {object} timeline.Project
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      422 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId}/resize [post]
func (h *ProjectHandler) Resize(c *fiber.Ctx) error {
	var req model.ResizeRequest
	if ok, err := h.parse(c, &req); !ok {
		return err
	}

	project, err := h.service.Resize(c.Context(), c.Params("projectId"), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, project)
}

// Composition handles GET /api/projects/:projectId/composition
// @Summary      Get composition
// @Description  Frame-based sequence of every element, as consumed by the renderer
// @Tags         Projects
// @Produce      json
// @Param        projectId path string true "Project ID"
// @Success      200 {object} composition.Composition
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/projects/{projectId}/composition [get]
func (h *ProjectHandler) Composition(c *fiber.Ctx) error {
	comp, err := h.service.Composition(c.Context(), c.Params("projectId"))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, comp)
}

// Session serves GET /ws/projects/:projectId/session
func (h *ProjectHandler) Session(c *websocket.Conn) {
	projectID := c.Params("projectId")
	logger := h.logger.With("project_id", projectID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	store, err := h.service.Store(ctx, projectID)
	cancel()
	if err != nil {
		logger.Warn("session rejected", "error", err)
		_ = c.WriteJSON(model.WSNoticeMessage{
			Type:    model.WSMessageTypeNotice,
			Code:    response.CodeNotFound,
			Message: err.Error(),
		})
		return
	}

	logger.Debug("session opened")
	ws.ServeSession(c, store, h.dragWindow, logger)
	logger.Debug("session closed")
}
