package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/apperror"
	"github.com/Ealanisln/alanis-backend/internal/middleware"
	"github.com/Ealanisln/alanis-backend/internal/service"
	"github.com/labstack/echo/v4"
)

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseDate accepts an ISO-8601 timestamp or a bare calendar date
func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, apperror.BadRequest("%s must be a valid ISO 8601 date", field)
}

func queryDate(c echo.Context, name string) (*time.Time, error) {
	return parseDate(name, c.QueryParam(name))
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperror.BadRequest("%s must be a positive integer", name)
	}
	return n, nil
}

func pageRequest(c echo.Context) (service.PageRequest, error) {
	page, err := queryInt(c, "page")
	if err != nil {
		return service.PageRequest{}, err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return service.PageRequest{}, err
	}
	if limit > 100 {
		return service.PageRequest{}, apperror.BadRequest("limit must not be greater than 100")
	}
	return service.PageRequest{Page: page, Limit: limit}, nil
}

// actor returns the authenticated caller. Routes using it sit behind the
// Auth middleware, so a missing actor is an unauthenticated request.
func actor(c echo.Context) (service.Actor, error) {
	a, ok := middleware.CurrentActor(c)
	if !ok {
		return service.Actor{}, apperror.Unauthorized("Authentication required")
	}
	return a, nil
}

// tenantActor is actor for tenant-guarded routes
func tenantActor(c echo.Context) (service.Actor, error) {
	a, err := actor(c)
	if err != nil {
		return a, err
	}
	if a.TenantID == "" {
		return a, apperror.Forbidden("Tenant access required")
	}
	return a, nil
}
