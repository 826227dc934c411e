package handler

import (
	"net/http"

	"github.com/Ealanisln/alanis-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// IntegrationHandler serves /api/integrations
type IntegrationHandler struct {
	invoicing    *service.InvoicingService
	integrations *service.IntegrationService
}

// NewIntegrationHandler creates an IntegrationHandler
func NewIntegrationHandler(invoicing *service.InvoicingService, integrations *service.IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{invoicing: invoicing, integrations: integrations}
}

// SyncClient pushes a client of the tenant to Invoice Ninja
func (h *IntegrationHandler) SyncClient(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	client, err := h.invoicing.SyncClient(c.Request().Context(), a.TenantID, c.Param("clientId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Client synced successfully",
		"client":  client,
	})
}

// CreateInvoice bills the unbilled time of a project
func (h *IntegrationHandler) CreateInvoice(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	result, err := h.invoicing.CreateInvoice(c.Request().Context(), a.TenantID, c.Param("projectId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":       "Invoice created successfully",
		"invoice":       result.Invoice,
		"billedEntries": result.BilledEntries,
	})
}

// WeeklyReport sends the tenant's weekly summary to n8n
func (h *IntegrationHandler) WeeklyReport(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	summary, err := h.integrations.WeeklyReport(c.Request().Context(), a.TenantID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Weekly report sent successfully",
		"summary": summary,
	})
}

// TestInvoiceNinja probes the Invoice Ninja API
func (h *IntegrationHandler) TestInvoiceNinja(c echo.Context) error {
	return c.JSON(http.StatusOK, h.integrations.TestInvoiceNinja(c.Request().Context()))
}

// TestN8N probes the n8n webhook endpoint
func (h *IntegrationHandler) TestN8N(c echo.Context) error {
	return c.JSON(http.StatusOK, h.integrations.TestN8N(c.Request().Context()))
}

// Status probes every integration
func (h *IntegrationHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.integrations.Status(c.Request().Context()))
}
