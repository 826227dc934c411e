// Package service holds the business operations. Every query on a
// tenant-owned table is filtered by the caller's tenant, so records of other
// tenants behave exactly like missing ones.
package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/integration/n8n"
	"github.com/Ealanisln/alanis-backend/internal/model"
	"gorm.io/gorm"
)

// WorkflowTrigger schedules an automation workflow. Implementations must not
// block on delivery and must not report delivery failures to the caller.
type WorkflowTrigger interface {
	Trigger(ctx context.Context, workflow string, tenant n8n.Tenant, data interface{})
}

// NoopTrigger discards every workflow
type NoopTrigger struct{}

// Trigger implements WorkflowTrigger
func (NoopTrigger) Trigger(context.Context, string, n8n.Tenant, interface{}) {}

// Actor is the authenticated caller of a tenant-scoped operation
type Actor struct {
	UserID   string
	TenantID string
	Role     model.Role
}

// Pagination is the page metadata returned by list operations
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// PageRequest is a 1-based page request
type PageRequest struct {
	Page  int
	Limit int
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// normalize applies defaults and bounds
func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

func (p PageRequest) offset() int {
	return (p.Page - 1) * p.Limit
}

func newPagination(p PageRequest, total int64) Pagination {
	return Pagination{
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(p.Limit))),
	}
}

// isDuplicate reports a unique constraint violation on any supported driver
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// likePattern builds a case-insensitive LIKE pattern for LOWER(column)
func likePattern(term string) string {
	return "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
}

// endOfDay moves a date-only bound to the last instant of that day
func endOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}

// tenantInfo returns the workflow tenant descriptor for tenantID
func tenantInfo(db *gorm.DB, tenantID string) n8n.Tenant {
	var tenant model.Tenant
	if err := db.Select("id", "type").Where("id = ?", tenantID).First(&tenant).Error; err != nil {
		return n8n.Tenant{ID: tenantID}
	}
	return n8n.Tenant{ID: tenant.ID, Type: string(tenant.Type)}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
