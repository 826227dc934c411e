package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/apperror"
	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"github.com/Ealanisln/alanis-backend/prometheus"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// TenantInput holds the data of a new tenant
type TenantInput struct {
	Name     string
	Slug     string
	Type     model.TenantType
	Domain   *string
	Settings map[string]interface{}
}

// TenantService manages tenants and resolves the default tenant used by
// public submissions.
type TenantService struct {
	db              *gorm.DB
	defaultTenantID string
}

// NewTenantService creates a TenantService. defaultTenantID may be empty, in
// which case public submissions are rejected.
func NewTenantService(db *gorm.DB, defaultTenantID string) *TenantService {
	return &TenantService{db: db, defaultTenantID: strings.TrimSpace(defaultTenantID)}
}

// ResolveDefault returns the configured default tenant
func (s *TenantService) ResolveDefault(ctx context.Context) (*model.Tenant, error) {
	if s.defaultTenantID == "" {
		return nil, apperror.BadRequest("Default tenant not configured")
	}

	var tenant model.Tenant
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", s.defaultTenantID, true).First(&tenant).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.BadRequest("Default tenant not found")
		}
		return nil, fmt.Errorf("find default tenant: %w", err)
	}
	return &tenant, nil
}

// Create adds a tenant. Slugs are unique.
func (s *TenantService) Create(ctx context.Context, in TenantInput) (*model.Tenant, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))

	if in.Name == "" || len(in.Name) > 100 {
		return nil, apperror.BadRequest("name is required and must be at most 100 characters")
	}
	if !slugPattern.MatchString(in.Slug) || len(in.Slug) > 50 {
		return nil, apperror.BadRequest("slug must contain only lowercase letters, numbers and hyphens")
	}
	if !in.Type.Valid() {
		return nil, apperror.BadRequest("type must be one of ALANIS_WEB_DEV, CHERRY_POP_DESIGN")
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&model.Tenant{}).Unscoped().Where("slug = ?", in.Slug).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check slug: %w", err)
	}
	if count > 0 {
		return nil, apperror.Conflict("Tenant slug already exists")
	}

	tenant := model.Tenant{
		Name:     in.Name,
		Slug:     in.Slug,
		Type:     in.Type,
		Domain:   in.Domain,
		IsActive: true,
	}
	if in.Settings != nil {
		tenant.Settings = datatypes.JSONMap(in.Settings)
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&tenant).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperror.Conflict("Tenant slug already exists")
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	logger.Ctx(ctx).Info("Tenant created", zap.String("tenant_id", tenant.ID), zap.String("slug", tenant.Slug))
	return &tenant, nil
}

// List returns every tenant ordered by name
func (s *TenantService) List(ctx context.Context) ([]model.Tenant, error) {
	var tenants []model.Tenant
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

// Get returns a tenant by id
func (s *TenantService) Get(ctx context.Context, id string) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error; err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Tenant not found")
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return &tenant, nil
}

// SetActive activates or deactivates a tenant. Users of an inactive tenant
// can no longer log in or refresh tokens.
func (s *TenantService) SetActive(ctx context.Context, id string, active bool) (*model.Tenant, error) {
	tenant, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(tenant).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("update tenant status: %w", err)
	}
	tenant.IsActive = active

	logger.Ctx(ctx).Info("Tenant status changed", zap.String("tenant_id", id), zap.Bool("active", active))
	return tenant, nil
}
