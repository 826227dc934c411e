package handler

import (
	"net/http"

	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// TenantHandler serves /api/tenants
type TenantHandler struct {
	tenants *service.TenantService
}

// NewTenantHandler creates a TenantHandler
func NewTenantHandler(tenants *service.TenantService) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

// Create adds a tenant
func (h *TenantHandler) Create(c echo.Context) error {
	var req struct {
		Name     string                 `json:"name"`
		Slug     string                 `json:"slug"`
		Type     model.TenantType       `json:"type"`
		Domain   *string                `json:"domain,omitempty"`
		Settings map[string]interface{} `json:"settings,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}

	tenant, err := h.tenants.Create(c.Request().Context(), service.TenantInput{
		Name:     req.Name,
		Slug:     req.Slug,
		Type:     req.Type,
		Domain:   req.Domain,
		Settings: req.Settings,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, tenant)
}

// List returns every tenant
func (h *TenantHandler) List(c echo.Context) error {
	tenants, err := h.tenants.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tenants)
}

// Current returns the caller's tenant
func (h *TenantHandler) Current(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	tenant, err := h.tenants.Get(c.Request().Context(), a.TenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}

// SetStatus activates or deactivates a tenant
func (h *TenantHandler) SetStatus(c echo.Context) error {
	var req struct {
		IsActive *bool `json:"isActive"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}
	if req.IsActive == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "isActive is required"})
	}

	tenant, err := h.tenants.SetActive(c.Request().Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}
