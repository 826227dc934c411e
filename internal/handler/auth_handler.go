package handler

import (
	"net/http"
	"strings"

	"github.com/Ealanisln/alanis-backend/internal/middleware"
	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/internal/service"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"github.com/Ealanisln/alanis-backend/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthHandler serves /api/auth
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates an AuthHandler
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login authenticates a user and issues an access and a refresh token
func (h *AuthHandler) Login(c echo.Context) error {
	prometheus.RecordAuthAttempt("login")

	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		TenantSlug string `json:"tenantSlug,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return invalidRequest(c, err)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_credentials")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	result, err := h.auth.Login(c.Request().Context(), service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		TenantSlug: req.TenantSlug,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Register creates a user. A bearer token is optional and only needed to
// grant elevated roles.
func (h *AuthHandler) Register(c echo.Context) error {
	prometheus.RecordAuthAttempt("register")

	var req struct {
		Email     string     `json:"email"`
		Password  string     `json:"password"`
		FirstName string     `json:"firstName"`
		LastName  string     `json:"lastName"`
		Role      model.Role `json:"role,omitempty"`
		TenantID  string     `json:"tenantId"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return invalidRequest(c, err)
	}

	var caller *service.Actor
	if a, ok := middleware.CurrentActor(c); ok {
		caller = &a
	}

	user, err := h.auth.Register(c.Request().Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		TenantID:  req.TenantID,
	}, caller)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

// Refresh exchanges a refresh token for a new access token
func (h *AuthHandler) Refresh(c echo.Context) error {
	prometheus.RecordAuthAttempt("refresh")

	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return invalidRequest(c, err)
	}
	if req.RefreshToken == "" {
		prometheus.RecordAuthError("missing_refresh_token")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refreshToken is required"})
	}

	result, err := h.auth.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Logout revokes the given refresh token, or all of the caller's tokens when
// the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	prometheus.RecordAuthAttempt("logout")

	a, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}

	var req refreshRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return invalidRequest(c, err)
		}
	}

	if err := h.auth.Logout(c.Request().Context(), a.UserID, req.RefreshToken); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Logout successful"})
}

// LogoutAll revokes every refresh token of the caller
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	prometheus.RecordAuthAttempt("logout")

	a, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.auth.LogoutAll(c.Request().Context(), a.UserID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Logout from all devices successful"})
}

// Profile returns the current user
func (h *AuthHandler) Profile(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}

	user, err := h.auth.Profile(c.Request().Context(), a.UserID)
	if err != nil {
		logger.FromContext(c).Warn("Profile lookup failed", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}
