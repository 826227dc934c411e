package handler

import (
	"net/http"

	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// ContactHandler serves /api/contact
type ContactHandler struct {
	contacts *service.ContactService
}

// NewContactHandler creates a ContactHandler
func NewContactHandler(contacts *service.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// Create stores a public contact form submission
func (h *ContactHandler) Create(c echo.Context) error {
	var req struct {
		Name    string  `json:"name"`
		Email   string  `json:"email"`
		Message string  `json:"message"`
		Phone   *string `json:"phone,omitempty"`
		Company *string `json:"company,omitempty"`
		Subject *string `json:"subject,omitempty"`
		Source  *string `json:"source,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}

	form, err := h.contacts.Create(c.Request().Context(), service.ContactInput{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
		Phone:   req.Phone,
		Company: req.Company,
		Subject: req.Subject,
		Source:  req.Source,
	}, service.ContactMeta{
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, form)
}

// List returns a filtered page of the tenant's submissions
func (h *ContactHandler) List(c echo.Context) error {
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

	list, err := h.contacts.List(c.Request().Context(), a.TenantID, service.ContactQuery{
		PageRequest: page,
		Status:      model.ContactStatus(c.QueryParam("status")),
		Email:       c.QueryParam("email"),
		Name:        c.QueryParam("name"),
		Source:      c.QueryParam("source"),
		StartDate:   startDate,
		EndDate:     endDate,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Stats summarizes the tenant's submissions
func (h *ContactHandler) Stats(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	stats, err := h.contacts.Stats(c.Request().Context(), a.TenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Get returns one submission
func (h *ContactHandler) Get(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	form, err := h.contacts.Get(c.Request().Context(), a.TenantID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, form)
}

// Update changes the status of a submission and records a response
func (h *ContactHandler) Update(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Status   *model.ContactStatus `json:"status,omitempty"`
		Response *string              `json:"response,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}

	form, err := h.contacts.Update(c.Request().Context(), a, c.Param("id"), service.ContactPatch{
		Status:   req.Status,
		Response: req.Response,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, form)
}

// Delete removes a submission and returns it
func (h *ContactHandler) Delete(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	form, err := h.contacts.Delete(c.Request().Context(), a.TenantID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, form)
}
