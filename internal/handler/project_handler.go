package handler

import (
	"net/http"

	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// ProjectHandler serves /api/projects and the nested task routes
type ProjectHandler struct {
	projects *service.ProjectService
}

// NewProjectHandler creates a ProjectHandler
func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// Create adds a project for one of the tenant's clients
func (h *ProjectHandler) Create(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Name          string                 `json:"name"`
		Description   *string                `json:"description,omitempty"`
		QuotedHours   float64                `json:"quotedHours"`
		HourlyRate    decimal.Decimal        `json:"hourlyRate"`
		StartDate     string                 `json:"startDate,omitempty"`
		EndDate       string                 `json:"endDate,omitempty"`
		ClientID      string                 `json:"clientId"`
		QuotationData map[string]interface{} `json:"quotationData,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}
	startDate, err := parseDate("startDate", req.StartDate)
	if err != nil {
		return respondError(c, err)
	}
	endDate, err := parseDate("endDate", req.EndDate)
	if err != nil {
		return respondError(c, err)
	}

	project, err := h.projects.Create(c.Request().Context(), a.TenantID, service.ProjectInput{
		Name:          req.Name,
		Description:   req.Description,
		QuotedHours:   req.QuotedHours,
		HourlyRate:    req.HourlyRate,
		StartDate:     startDate,
		EndDate:       endDate,
		ClientID:      req.ClientID,
		QuotationData: req.QuotationData,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, project)
}

// List returns the tenant's projects, optionally filtered by status
func (h *ProjectHandler) List(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	projects, err := h.projects.List(c.Request().Context(), a.TenantID, model.ProjectStatus(c.QueryParam("status")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, projects)
}

// Get returns one project with its client and recent time entries
func (h *ProjectHandler) Get(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	project, err := h.projects.Get(c.Request().Context(), a.TenantID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, project)
}

// Update applies a partial update
func (h *ProjectHandler) Update(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Name          *string                `json:"name,omitempty"`
		Description   *string                `json:"description,omitempty"`
		Status        *model.ProjectStatus   `json:"status,omitempty"`
		QuotedHours   *float64               `json:"quotedHours,omitempty"`
		HourlyRate    *decimal.Decimal       `json:"hourlyRate,omitempty"`
		StartDate     string                 `json:"startDate,omitempty"`
		EndDate       string                 `json:"endDate,omitempty"`
		QuotationData map[string]interface{} `json:"quotationData,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}
	startDate, err := parseDate("startDate", req.StartDate)
	if err != nil {
		return respondError(c, err)
	}
	endDate, err := parseDate("endDate", req.EndDate)
	if err != nil {
		return respondError(c, err)
	}

	project, err := h.projects.Update(c.Request().Context(), a.TenantID, c.Param("id"), service.ProjectPatch{
		Name:          req.Name,
		Description:   req.Description,
		Status:        req.Status,
		QuotedHours:   req.QuotedHours,
		HourlyRate:    req.HourlyRate,
		StartDate:     startDate,
		EndDate:       endDate,
		QuotationData: req.QuotationData,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, project)
}

// Delete removes a project
func (h *ProjectHandler) Delete(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.projects.Delete(c.Request().Context(), a.TenantID, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Project deleted successfully"})
}

// CreateTask adds a task to a project
func (h *ProjectHandler) CreateTask(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Title          string           `json:"title"`
		Description    *string          `json:"description,omitempty"`
		Status         model.TaskStatus `json:"status,omitempty"`
		EstimatedHours *float64         `json:"estimatedHours,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}

	task, err := h.projects.CreateTask(c.Request().Context(), a.TenantID, c.Param("id"), service.TaskInput{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		EstimatedHours: req.EstimatedHours,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

// ListTasks returns the tasks of a project
func (h *ProjectHandler) ListTasks(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	tasks, err := h.projects.ListTasks(c.Request().Context(), a.TenantID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tasks)
}
