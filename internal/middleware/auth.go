package middleware

import (
	"net/http"
	"strings"

	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/internal/service"
	"github.com/Ealanisln/alanis-backend/pkg/jwtutil"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"github.com/Ealanisln/alanis-backend/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const claimsKey = "claims"

// bearerToken extracts the token from the Authorization header. The reason is
// empty when a token was found.
func bearerToken(c echo.Context) (string, string) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", "missing_token"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", "invalid_auth_format"
	}
	return parts[1], ""
}

// Auth validates the access token from the Authorization header. Only the
// signature and expiry are checked; the database is not consulted.
func Auth(tokens *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			tokenString, reason := bearerToken(c)
			switch reason {
			case "missing_token":
				log.Warn("Missing Authorization header")
				prometheus.RecordAuthError(reason)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Access token required"})
			case "invalid_auth_format":
				log.Warn("Invalid Authorization header format")
				prometheus.RecordAuthError(reason)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := tokens.ValidateToken(tokenString)
			if err != nil {
				log.Warn("Invalid JWT token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or expired token"})
			}

			setClaims(c, claims)
			return next(c)
		}
	}
}

// OptionalAuth attaches the caller's claims when a valid access token is
// present and otherwise lets the request through anonymously.
func OptionalAuth(tokens *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, reason := bearerToken(c)
			if reason != "" {
				return next(c)
			}
			if claims, err := tokens.ValidateToken(tokenString); err == nil {
				setClaims(c, claims)
			}
			return next(c)
		}
	}
}

func setClaims(c echo.Context, claims *jwtutil.UserClaims) {
	c.Set(claimsKey, claims)
	c.Set("user_id", claims.UserID())
	c.Set("email", claims.Email)
	c.Set("user_role", claims.Role)
	if claims.TenantID != "" {
		c.Set("tenant_id", claims.TenantID)
		c.Set("tenant_slug", claims.TenantSlug)
	}

	logger.Attach(c, logger.FromContext(c).With(
		zap.String("user_id", claims.UserID()),
		zap.String("tenant_id", claims.TenantID),
	))
}

// Claims returns the access token claims of the authenticated caller, if any.
func Claims(c echo.Context) (*jwtutil.UserClaims, bool) {
	claims, ok := c.Get(claimsKey).(*jwtutil.UserClaims)
	return claims, ok && claims != nil
}

// CurrentActor returns the authenticated caller as a service actor.
func CurrentActor(c echo.Context) (service.Actor, bool) {
	claims, ok := Claims(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{
		UserID:   claims.UserID(),
		TenantID: claims.TenantID,
		Role:     model.Role(claims.Role),
	}, true
}

// RequireTenant rejects callers whose token carries no tenant. When slugs are
// given the token's tenant must be one of them.
func RequireTenant(slugs ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := Claims(c)
			if !ok {
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
			}
			if claims.TenantID == "" {
				prometheus.RecordAuthError("missing_tenant")
				return c.JSON(http.StatusForbidden, echo.Map{"error": "Tenant access required"})
			}
			if len(slugs) > 0 && !contains(slugs, claims.TenantSlug) {
				logger.FromContext(c).Warn("Tenant not allowed for route",
					zap.String("tenant_slug", claims.TenantSlug),
					zap.Strings("allowed", slugs))
				prometheus.RecordAuthError("tenant_access_denied")
				return c.JSON(http.StatusForbidden, echo.Map{"error": "Access denied for this tenant"})
			}
			return next(c)
		}
	}
}

// RequireRoles rejects callers whose role is not one of roles.
func RequireRoles(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make([]string, 0, len(roles))
	for _, r := range roles {
		allowed = append(allowed, string(r))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := Claims(c)
			if !ok {
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
			}
			if !contains(allowed, claims.Role) {
				prometheus.RecordAuthError("insufficient_role")
				return c.JSON(http.StatusForbidden, echo.Map{"error": "Insufficient permissions"})
			}
			return next(c)
		}
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
