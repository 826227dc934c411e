package handler

import (
	"context"
	"net/http"

	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// QuoteHandler serves /api/quotes
type QuoteHandler struct {
	quotes *service.QuoteService
}

// NewQuoteHandler creates a QuoteHandler
func NewQuoteHandler(quotes *service.QuoteService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

type quoteRequest struct {
	ClientName     string                 `json:"clientName"`
	ClientEmail    string                 `json:"clientEmail"`
	ClientPhone    *string                `json:"clientPhone,omitempty"`
	ClientCompany  *string                `json:"clientCompany,omitempty"`
	ProjectName    string                 `json:"projectName"`
	ProjectType    string                 `json:"projectType"`
	Description    *string                `json:"description,omitempty"`
	Services       []model.QuoteService   `json:"services"`
	Subtotal       decimal.Decimal        `json:"subtotal"`
	Tax            decimal.Decimal        `json:"tax"`
	Discount       decimal.Decimal        `json:"discount"`
	Total          decimal.Decimal        `json:"total"`
	EstimatedHours *float64               `json:"estimatedHours,omitempty"`
	DeliveryDays   *int                   `json:"deliveryDays,omitempty"`
	ValidUntil     string                 `json:"validUntil,omitempty"`
	Notes          *string                `json:"notes,omitempty"`
	InternalNotes  *string                `json:"internalNotes,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

func (r quoteRequest) input() (service.QuoteInput, error) {
	validUntil, err := parseDate("validUntil", r.ValidUntil)
	if err != nil {
		return service.QuoteInput{}, err
	}
	return service.QuoteInput{
		ClientName:     r.ClientName,
		ClientEmail:    r.ClientEmail,
		ClientPhone:    r.ClientPhone,
		ClientCompany:  r.ClientCompany,
		ProjectName:    r.ProjectName,
		ProjectType:    r.ProjectType,
		Description:    r.Description,
		Services:       r.Services,
		Subtotal:       r.Subtotal,
		Tax:            r.Tax,
		Discount:       r.Discount,
		Total:          r.Total,
		EstimatedHours: r.EstimatedHours,
		DeliveryDays:   r.DeliveryDays,
		ValidUntil:     validUntil,
		Notes:          r.Notes,
		InternalNotes:  r.InternalNotes,
		Metadata:       r.Metadata,
	}, nil
}

// CreatePublic stores a quote request from the website for the default tenant
func (h *QuoteHandler) CreatePublic(c echo.Context) error {
	var req quoteRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}
	in, err := req.input()
	if err != nil {
		return respondError(c, err)
	}

	quote, err := h.quotes.CreatePublic(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, quote.PublicView())
}

// CreateAdmin stores a quote for the caller's tenant
func (h *QuoteHandler) CreateAdmin(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	var req quoteRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}
	in, err := req.input()
	if err != nil {
		return respondError(c, err)
	}

	quote, err := h.quotes.Create(c.Request().Context(), a.TenantID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, quote)
}

// GetPublic returns a quote of the default tenant by number and marks it viewed
func (h *QuoteHandler) GetPublic(c echo.Context) error {
	quote, err := h.quotes.GetPublicByNumber(c.Request().Context(), c.Param("quoteNumber"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, quote)
}

// List returns a filtered page of the tenant's quotes
func (h *QuoteHandler) List(c echo.Context) error {
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

	list, err := h.quotes.List(c.Request().Context(), a.TenantID, service.QuoteQuery{
		PageRequest:    page,
		QuoteNumber:    c.QueryParam("quoteNumber"),
		ClientEmail:    c.QueryParam("clientEmail"),
		ClientName:     c.QueryParam("clientName"),
		Status:         model.QuoteStatus(c.QueryParam("status")),
		ProjectType:    c.QueryParam("projectType"),
		StartDate:      startDate,
		EndDate:        endDate,
		Search:         c.QueryParam("search"),
		OrderBy:        c.QueryParam("orderBy"),
		OrderDirection: c.QueryParam("orderDirection"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Stats aggregates the tenant's quotes
func (h *QuoteHandler) Stats(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	stats, err := h.quotes.Stats(c.Request().Context(), a.TenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Get returns one quote of the tenant
func (h *QuoteHandler) Get(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	quote, err := h.quotes.Get(c.Request().Context(), a.TenantID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, quote)
}

// Update applies a partial update, including a direct status change
func (h *QuoteHandler) Update(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		ClientName     *string                `json:"clientName,omitempty"`
		ClientEmail    *string                `json:"clientEmail,omitempty"`
		ClientPhone    *string                `json:"clientPhone,omitempty"`
		ClientCompany  *string                `json:"clientCompany,omitempty"`
		ProjectName    *string                `json:"projectName,omitempty"`
		ProjectType    *string                `json:"projectType,omitempty"`
		Description    *string                `json:"description,omitempty"`
		Services       []model.QuoteService   `json:"services,omitempty"`
		Subtotal       *decimal.Decimal       `json:"subtotal,omitempty"`
		Tax            *decimal.Decimal       `json:"tax,omitempty"`
		Discount       *decimal.Decimal       `json:"discount,omitempty"`
		Total          *decimal.Decimal       `json:"total,omitempty"`
		EstimatedHours *float64               `json:"estimatedHours,omitempty"`
		DeliveryDays   *int                   `json:"deliveryDays,omitempty"`
		ValidUntil     string                 `json:"validUntil,omitempty"`
		Status         *model.QuoteStatus     `json:"status,omitempty"`
		Notes          *string                `json:"notes,omitempty"`
		InternalNotes  *string                `json:"internalNotes,omitempty"`
		Metadata       map[string]interface{} `json:"metadata,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}
	validUntil, err := parseDate("validUntil", req.ValidUntil)
	if err != nil {
		return respondError(c, err)
	}

	quote, err := h.quotes.Update(c.Request().Context(), a.TenantID, c.Param("id"), service.QuotePatch{
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		ClientPhone:    req.ClientPhone,
		ClientCompany:  req.ClientCompany,
		ProjectName:    req.ProjectName,
		ProjectType:    req.ProjectType,
		Description:    req.Description,
		Services:       req.Services,
		Subtotal:       req.Subtotal,
		Tax:            req.Tax,
		Discount:       req.Discount,
		Total:          req.Total,
		EstimatedHours: req.EstimatedHours,
		DeliveryDays:   req.DeliveryDays,
		ValidUntil:     validUntil,
		Status:         req.Status,
		Notes:          req.Notes,
		InternalNotes:  req.InternalNotes,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, quote)
}

type quoteAction func(ctx context.Context, tenantID, id string) (*model.Quote, error)

func (h *QuoteHandler) runAction(c echo.Context, fn quoteAction) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	quote, err := fn(c.Request().Context(), a.TenantID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, quote)
}

// Approve marks a quote APPROVED
func (h *QuoteHandler) Approve(c echo.Context) error {
	return h.runAction(c, h.quotes.Approve)
}

// Reject marks a quote REJECTED
func (h *QuoteHandler) Reject(c echo.Context) error {
	return h.runAction(c, h.quotes.Reject)
}

// Send marks a quote SENT
func (h *QuoteHandler) Send(c echo.Context) error {
	return h.runAction(c, h.quotes.Send)
}

// Delete soft-deletes a quote and returns it
func (h *QuoteHandler) Delete(c echo.Context) error {
	return h.runAction(c, h.quotes.Delete)
}

// ConvertToProject turns an approved quote into a project
func (h *QuoteHandler) ConvertToProject(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	result, err := h.quotes.ConvertToProject(c.Request().Context(), a.TenantID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}
