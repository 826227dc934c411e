package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Ealanisln/alanis-backend/internal/apperror"
	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"github.com/Ealanisln/alanis-backend/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ContactInput is a public contact form submission
type ContactInput struct {
	Name    string
	Email   string
	Message string
	Phone   *string
	Company *string
	Subject *string
	Source  *string
}

// ContactMeta is request metadata captured with a submission
type ContactMeta struct {
	UserAgent string
	IPAddress string
}

// ContactPatch holds a partial contact form update
type ContactPatch struct {
	Status   *model.ContactStatus
	Response *string
}

// ContactQuery filters contact form listings
type ContactQuery struct {
	PageRequest
	Status    model.ContactStatus
	Email     string
	Name      string
	Source    string
	StartDate *time.Time
	EndDate   *time.Time
}

// ContactList is a page of contact forms
type ContactList struct {
	Data []model.ContactForm `json:"data"`
	Meta Pagination          `json:"meta"`
}

// ContactStats summarizes the tenant's contact forms
type ContactStats struct {
	Total        int64 `json:"total"`
	Pending      int64 `json:"pending"`
	Responded    int64 `json:"responded"`
	ThisMonth    int64 `json:"thisMonth"`
	ThisWeek     int64 `json:"thisWeek"`
	ResponseRate int64 `json:"responseRate"`
}

// ContactService stores public inquiries and lets staff triage them
type ContactService struct {
	db      *gorm.DB
	tenants *TenantService
	now     func() time.Time
}

// NewContactService creates a ContactService
func NewContactService(db *gorm.DB, tenants *TenantService) *ContactService {
	return &ContactService{db: db, tenants: tenants, now: time.Now}
}

func maxLength(field string, value *string, limit int) error {
	if value != nil && utf8.RuneCountInString(*value) > limit {
		return apperror.BadRequest("%s must be at most %d characters", field, limit)
	}
	return nil
}

func (in *ContactInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Message = strings.TrimSpace(in.Message)

	if in.Name == "" {
		return apperror.BadRequest("name is required")
	}
	if !validEmail(in.Email) {
		return apperror.BadRequest("email must be a valid email address")
	}
	if in.Message == "" {
		return apperror.BadRequest("message is required")
	}
	if err := maxLength("name", &in.Name, 100); err != nil {
		return err
	}
	if err := maxLength("message", &in.Message, 2000); err != nil {
		return err
	}
	if err := maxLength("phone", in.Phone, 20); err != nil {
		return err
	}
	if err := maxLength("company", in.Company, 100); err != nil {
		return err
	}
	if err := maxLength("subject", in.Subject, 200); err != nil {
		return err
	}
	return maxLength("source", in.Source, 100)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func contactTenant(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "slug")
}

// Create stores a public submission under the default tenant
func (s *ContactService) Create(ctx context.Context, in ContactInput, meta ContactMeta) (*model.ContactForm, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	tenant, err := s.tenants.ResolveDefault(ctx)
	if err != nil {
		return nil, err
	}

	form := model.ContactForm{
		Name:      in.Name,
		Email:     in.Email,
		Message:   in.Message,
		Phone:     in.Phone,
		Company:   in.Company,
		Subject:   in.Subject,
		Source:    in.Source,
		Status:    model.ContactStatusPending,
		UserAgent: optional(meta.UserAgent),
		IPAddress: optional(meta.IPAddress),
		TenantID:  tenant.ID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := s.db.WithContext(ctx).Create(&form).Error; err != nil {
		return nil, fmt.Errorf("create contact form: %w", err)
	}
	form.Tenant = &model.Tenant{ID: tenant.ID, Name: tenant.Name, Slug: tenant.Slug}

	logger.Ctx(ctx).Info("Contact form received",
		zap.String("contact_id", form.ID),
		zap.String("tenant_id", tenant.ID))
	return &form, nil
}

// List returns a filtered page of the tenant's contact forms, newest first
func (s *ContactService) List(ctx context.Context, tenantID string, q ContactQuery) (*ContactList, error) {
	page := q.PageRequest.normalize()

	query := s.db.WithContext(ctx).Model(&model.ContactForm{}).Where("tenant_id = ?", tenantID)
	if q.Status != "" {
		if !q.Status.Valid() {
			return nil, apperror.BadRequest("invalid contact status %q", q.Status)
		}
		query = query.Where("status = ?", q.Status)
	}
	if q.Email != "" {
		query = query.Where("LOWER(email) LIKE ?", likePattern(q.Email))
	}
	if q.Name != "" {
		query = query.Where("LOWER(name) LIKE ?", likePattern(q.Name))
	}
	if q.Source != "" {
		query = query.Where("source = ?", q.Source)
	}
	if q.StartDate != nil {
		query = query.Where("created_at >= ?", *q.StartDate)
	}
	if q.EndDate != nil {
		query = query.Where("created_at <= ?", endOfDay(*q.EndDate))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count contact forms: %w", err)
	}

	forms := []model.ContactForm{}
	err := query.
		Preload("Tenant", contactTenant).
		Order("created_at DESC").
		Offset(page.offset()).
		Limit(page.Limit).
		Find(&forms).Error
	if err != nil {
		return nil, fmt.Errorf("list contact forms: %w", err)
	}

	return &ContactList{Data: forms, Meta: newPagination(page, total)}, nil
}

// Get returns a contact form of the tenant
func (s *ContactService) Get(ctx context.Context, tenantID, id string) (*model.ContactForm, error) {
	var form model.ContactForm
	err := s.db.WithContext(ctx).
		Preload("Tenant", contactTenant).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&form).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Contact form not found")
		}
		return nil, fmt.Errorf("find contact form: %w", err)
	}
	return &form, nil
}

// Update changes the status or response of a contact form. Marking it
// RESPONDED together with a response records who responded and when.
func (s *ContactService) Update(ctx context.Context, actor Actor, id string, patch ContactPatch) (*model.ContactForm, error) {
	form, err := s.Get(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperror.BadRequest("invalid contact status %q", *patch.Status)
		}
		updates["status"] = *patch.Status
	}
	if patch.Response != nil {
		updates["response"] = *patch.Response
	}
	if patch.Status != nil && *patch.Status == model.ContactStatusResponded && patch.Response != nil && *patch.Response != "" {
		updates["responded_at"] = s.now()
		updates["responded_by"] = actor.UserID
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.ContactForm{}).Where("id = ?", form.ID).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update contact form: %w", err)
		}
	}
	return s.Get(ctx, actor.TenantID, id)
}

// Delete removes a contact form of the tenant
func (s *ContactService) Delete(ctx context.Context, tenantID, id string) (*model.ContactForm, error) {
	form, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(&model.ContactForm{}, "id = ?", form.ID).Error; err != nil {
		return nil, fmt.Errorf("delete contact form: %w", err)
	}
	return form, nil
}

// Stats counts the tenant's contact forms
func (s *ContactService) Stats(ctx context.Context, tenantID string) (*ContactStats, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	weekStart := now.Add(-7 * 24 * time.Hour)

	var stats ContactStats
	count := func(dest *int64, scope func(*gorm.DB) *gorm.DB) func() error {
		return func() error {
			query := s.db.WithContext(ctx).Model(&model.ContactForm{}).Where("tenant_id = ?", tenantID)
			return scope(query).Count(dest).Error
		}
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(count(&stats.Total, func(db *gorm.DB) *gorm.DB { return db }))
	g.Go(count(&stats.Pending, func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", model.ContactStatusPending)
	}))
	g.Go(count(&stats.Responded, func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", model.ContactStatusResponded)
	}))
	g.Go(count(&stats.ThisMonth, func(db *gorm.DB) *gorm.DB {
		return db.Where("created_at >= ?", monthStart)
	}))
	g.Go(count(&stats.ThisWeek, func(db *gorm.DB) *gorm.DB {
		return db.Where("created_at >= ?", weekStart)
	}))
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("count contact forms: %w", err)
	}

	if stats.Total > 0 {
		stats.ResponseRate = int64(math.Round(float64(stats.Responded) / float64(stats.Total) * 100))
	}
	return &stats, nil
}
