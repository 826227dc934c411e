package handler

import (
	"net/http"

	"github.com/Ealanisln/alanis-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// TimeTrackingHandler serves /api/time-tracking
type TimeTrackingHandler struct {
	entries *service.TimeTrackingService
}

// NewTimeTrackingHandler creates a TimeTrackingHandler
func NewTimeTrackingHandler(entries *service.TimeTrackingService) *TimeTrackingHandler {
	return &TimeTrackingHandler{entries: entries}
}

// CreateEntry logs time for the caller against one of the tenant's projects
func (h *TimeTrackingHandler) CreateEntry(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Description string           `json:"description"`
		Hours       float64          `json:"hours"`
		Date        string           `json:"date"`
		ProjectID   string           `json:"projectId"`
		TaskID      *string          `json:"taskId,omitempty"`
		Notes       *string          `json:"notes,omitempty"`
		HourlyRate  *decimal.Decimal `json:"hourlyRate,omitempty"`
		Billable    *bool            `json:"billable,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return respondError(c, err)
	}

	in := service.TimeEntryInput{
		Description: req.Description,
		Hours:       req.Hours,
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		Notes:       req.Notes,
		HourlyRate:  req.HourlyRate,
		Billable:    req.Billable,
	}
	if date != nil {
		in.Date = *date
	}

	entry, err := h.entries.Create(c.Request().Context(), a, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// ProjectReport summarizes a project's hours
func (h *TimeTrackingHandler) ProjectReport(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	report, err := h.entries.ProjectReport(c.Request().Context(), a.TenantID, c.Param("projectId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// MyEntries returns a page of the caller's own entries
func (h *TimeTrackingHandler) MyEntries(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	page, err := pageRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	startDate, err := queryDate(c, "startDate")
	if err != nil {
		return respondError(c, err)
	}
	endDate, err := queryDate(c, "endDate")
	if err != nil {
		return respondError(c, err)
	}

	list, err := h.entries.MyEntries(c.Request().Context(), a, service.TimeEntryQuery{
		PageRequest: page,
		ProjectID:   c.QueryParam("projectId"),
		StartDate:   startDate,
		EndDate:     endDate,
		Search:      c.QueryParam("search"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// UpdateEntry edits one of the caller's entries
func (h *TimeTrackingHandler) UpdateEntry(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Description *string          `json:"description,omitempty"`
		Hours       *float64         `json:"hours,omitempty"`
		Date        string           `json:"date,omitempty"`
		ProjectID   *string          `json:"projectId,omitempty"`
		TaskID      *string          `json:"taskId,omitempty"`
		Notes       *string          `json:"notes,omitempty"`
		HourlyRate  *decimal.Decimal `json:"hourlyRate,omitempty"`
		Billable    *bool            `json:"billable,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return respondError(c, err)
	}

	entry, err := h.entries.Update(c.Request().Context(), a, c.Param("id"), service.TimeEntryPatch{
		Description: req.Description,
		Hours:       req.Hours,
		Date:        date,
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		Notes:       req.Notes,
		HourlyRate:  req.HourlyRate,
		Billable:    req.Billable,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, entry)
}

// DeleteEntry removes one of the caller's entries
func (h *TimeTrackingHandler) DeleteEntry(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.entries.Delete(c.Request().Context(), a, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Time entry deleted successfully"})
}
