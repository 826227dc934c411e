package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/internal/service"
	"github.com/labstack/echo/v4"
)

// ClientHandler serves /api/clients
type ClientHandler struct {
	clients *service.ClientService
}

// NewClientHandler creates a ClientHandler
func NewClientHandler(clients *service.ClientService) *ClientHandler {
	return &ClientHandler{clients: clients}
}

// Create adds a client to the caller's tenant
func (h *ClientHandler) Create(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Name    string         `json:"name"`
		Email   string         `json:"email"`
		Phone   *string        `json:"phone,omitempty"`
		Company *string        `json:"company,omitempty"`
		TaxID   *string        `json:"taxId,omitempty"`
		Address *model.Address `json:"address,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}

	client, err := h.clients.Create(c.Request().Context(), a.TenantID, service.ClientInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
		TaxID:   req.TaxID,
		Address: req.Address,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, client)
}

// List returns a page of the tenant's clients
func (h *ClientHandler) List(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	page, err := pageRequest(c)
	if err != nil {
		return respondError(c, err)
	}

	list, err := h.clients.List(c.Request().Context(), a.TenantID, service.ClientQuery{
		PageRequest: page,
		Search:      c.QueryParam("search"),
		OrderBy:     c.QueryParam("orderBy"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Get returns one client with its projects
func (h *ClientHandler) Get(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	client, err := h.clients.Get(c.Request().Context(), a.TenantID, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, client)
}

// Update applies a partial update. An explicit "address": null clears the
// stored address.
func (h *ClientHandler) Update(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Name    *string         `json:"name,omitempty"`
		Email   *string         `json:"email,omitempty"`
		Phone   *string         `json:"phone,omitempty"`
		Company *string         `json:"company,omitempty"`
		TaxID   *string         `json:"taxId,omitempty"`
		Address json.RawMessage `json:"address,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return invalidRequest(c, err)
	}

	patch := service.ClientPatch{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
		TaxID:   req.TaxID,
	}
	if len(req.Address) > 0 {
		patch.AddressSet = true
		if !bytes.Equal(bytes.TrimSpace(req.Address), []byte("null")) {
			var address model.Address
			if err := json.Unmarshal(req.Address, &address); err != nil {
				return invalidRequest(c, err)
			}
			patch.Address = &address
		}
	}

	client, err := h.clients.Update(c.Request().Context(), a.TenantID, c.Param("id"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, client)
}

// Delete removes a client
func (h *ClientHandler) Delete(c echo.Context) error {
	a, err := tenantActor(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.clients.Delete(c.Request().Context(), a.TenantID, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Client deleted successfully"})
}
