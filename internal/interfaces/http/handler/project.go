package handler

import (
	"context"

	billingapp "github.com/freelance/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProjectHandler handles project endpoints
type ProjectHandler struct {
	BaseHandler
	projectService *billingapp.ProjectService
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(projectService *billingapp.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		BaseHandler:    BaseHandler{logger: logger},
		projectService: projectService,
	}
}

// Create adds a project for a client
// POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req billingapp.CreateProjectRequest
	if !h.bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, project)
}

// Get returns a project
// GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "project")
	if !ok {
		return
	}

	project, err := h.projectService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, project)
}

// List returns a page of projects, optionally for one client
// GET /projects?client_id=&status=
func (h *ProjectHandler) List(c *gin.Context) {
	var filter billingapp.ProjectListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	clientID, ok := h.optionalUUIDQuery(c, "client_id")
	if !ok {
		return
	}
	filter.ClientID = clientID

	page, err := h.projectService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	SuccessPage(c, page)
}

// ListByClient returns every project of a client
// GET /clients/:id/projects
func (h *ProjectHandler) ListByClient(c *gin.Context) {
	clientID, ok := h.pathID(c, "client")
	if !ok {
		return
	}

	projects, err := h.projectService.ListByClient(c.Request.Context(), clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, projects)
}

// Update renames or reprices a project
// PUT /projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "project")
	if !ok {
		return
	}
	var req billingapp.UpdateProjectRequest
	if !h.bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, project)
}

// LogHours records hours worked at the project rate
// POST /projects/:id/hours
func (h *ProjectHandler) LogHours(c *gin.Context) {
	id, ok := h.pathID(c, "project")
	if !ok {
		return
	}
	var req billingapp.LogHoursRequest
	if !h.bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.LogHours(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, project)
}

// AddFixedFee records a flat fee
// POST /projects/:id/fees
func (h *ProjectHandler) AddFixedFee(c *gin.Context) {
	id, ok := h.pathID(c, "project")
	if !ok {
		return
	}
	var req billingapp.AddFixedFeeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	project, err := h.projectService.AddFixedFee(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, project)
}

// Pause puts a project on hold
// POST /projects/:id/pause
func (h *ProjectHandler) Pause(c *gin.Context) {
	h.transition(c, h.projectService.Pause)
}

// Resume reactivates a paused project
// POST /projects/:id/resume
func (h *ProjectHandler) Resume(c *gin.Context) {
	h.transition(c, h.projectService.Resume)
}

// Complete marks a project done
// POST /projects/:id/complete
func (h *ProjectHandler) Complete(c *gin.Context) {
	h.transition(c, h.projectService.Complete)
}

// Cancel abandons a project
// POST /projects/:id/cancel
func (h *ProjectHandler) Cancel(c *gin.Context) {
	h.transition(c, h.projectService.Cancel)
}

func (h *ProjectHandler) transition(c *gin.Context, fn func(context.Context, uuid.UUID) (*billingapp.ProjectResponse, error)) {
	id, ok := h.pathID(c, "project")
	if !ok {
		return
	}

	project, err := fn(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, project)
}

// Delete removes a project that was never invoiced
// DELETE /projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c, "project")
	if !ok {
		return
	}

	if err := h.projectService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Earnings totals what a project billed and collected
// GET /projects/:id/earnings
func (h *ProjectHandler) Earnings(c *gin.Context) {
	id, ok := h.pathID(c, "project")
	if !ok {
		return
	}

	earnings, err := h.projectService.Earnings(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, earnings)
}
