package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/apperror"
	"github.com/Ealanisln/alanis-backend/internal/integration/n8n"
	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"github.com/Ealanisln/alanis-backend/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var quoteOrderColumns = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"quoteNumber": "quote_number",
	"clientName":  "client_name",
	"clientEmail": "client_email",
	"projectName": "project_name",
	"total":       "total",
	"status":      "status",
	"validUntil":  "valid_until",
}

// QuoteInput holds the fields of a new quote. Monetary values are stored as
// supplied.
type QuoteInput struct {
	ClientName     string
	ClientEmail    string
	ClientPhone    *string
	ClientCompany  *string
	ProjectName    string
	ProjectType    string
	Description    *string
	Services       []model.QuoteService
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	EstimatedHours *float64
	DeliveryDays   *int
	ValidUntil     *time.Time
	Notes          *string
	InternalNotes  *string
	Metadata       map[string]interface{}
}

func validProjectType(t string) bool {
	for _, pt := range model.ProjectTypes {
		if pt == t {
			return true
		}
	}
	return false
}

func validateQuoteServices(services []model.QuoteService) error {
	for i, svc := range services {
		if strings.TrimSpace(svc.ID) == "" || strings.TrimSpace(svc.Name) == "" {
			return apperror.BadRequest("services[%d] requires id and name", i)
		}
		if !svc.BasePrice.IsPositive() {
			return apperror.BadRequest("services[%d].basePrice must be positive", i)
		}
		if svc.EstimatedHours != nil && *svc.EstimatedHours <= 0 {
			return apperror.BadRequest("services[%d].estimatedHours must be positive", i)
		}
	}
	return nil
}

func validateDeliveryDays(days *int) error {
	if days != nil && (*days < 1 || *days > 365) {
		return apperror.BadRequest("deliveryDays must be between 1 and 365")
	}
	return nil
}

func (in *QuoteInput) validate() error {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientEmail = normalizeEmail(in.ClientEmail)
	in.ProjectName = strings.TrimSpace(in.ProjectName)

	if in.ClientName == "" {
		return apperror.BadRequest("clientName is required")
	}
	if !validEmail(in.ClientEmail) {
		return apperror.BadRequest("clientEmail must be a valid email address")
	}
	if in.ProjectName == "" {
		return apperror.BadRequest("projectName is required")
	}
	if !validProjectType(in.ProjectType) {
		return apperror.BadRequest("projectType must be one of %s", strings.Join(model.ProjectTypes, ", "))
	}
	if in.Services == nil {
		return apperror.BadRequest("services is required")
	}
	if err := validateQuoteServices(in.Services); err != nil {
		return err
	}
	if !in.Subtotal.IsPositive() {
		return apperror.BadRequest("subtotal must be positive")
	}
	if in.Tax.IsNegative() {
		return apperror.BadRequest("tax must not be negative")
	}
	if in.Discount.IsNegative() {
		return apperror.BadRequest("discount must not be negative")
	}
	if !in.Total.IsPositive() {
		return apperror.BadRequest("total must be positive")
	}
	if in.EstimatedHours != nil && *in.EstimatedHours <= 0 {
		return apperror.BadRequest("estimatedHours must be positive")
	}
	return validateDeliveryDays(in.DeliveryDays)
}

// QuotePatch holds a partial quote update, including a direct status change
type QuotePatch struct {
	ClientName     *string
	ClientEmail    *string
	ClientPhone    *string
	ClientCompany  *string
	ProjectName    *string
	ProjectType    *string
	Description    *string
	Services       []model.QuoteService
	Subtotal       *decimal.Decimal
	Tax            *decimal.Decimal
	Discount       *decimal.Decimal
	Total          *decimal.Decimal
	EstimatedHours *float64
	DeliveryDays   *int
	ValidUntil     *time.Time
	Status         *model.QuoteStatus
	Notes          *string
	InternalNotes  *string
	Metadata       map[string]interface{}
}

// QuoteQuery filters quote listings
type QuoteQuery struct {
	PageRequest
	QuoteNumber    string
	ClientEmail    string
	ClientName     string
	Status         model.QuoteStatus
	ProjectType    string
	StartDate      *time.Time
	EndDate        *time.Time
	Search         string
	OrderBy        string
	OrderDirection string
}

// QuoteList is a page of quotes
type QuoteList struct {
	Data       []model.Quote `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// QuoteStats aggregates the tenant's quotes
type QuoteStats struct {
	Total        int64                       `json:"total"`
	ByStatus     map[model.QuoteStatus]int64 `json:"byStatus"`
	TotalValue   decimal.Decimal             `json:"totalValue"`
	AverageValue decimal.Decimal             `json:"averageValue"`
}

// ConversionResult is the outcome of converting a quote into a project
type ConversionResult struct {
	Quote   *model.Quote   `json:"quote"`
	Project *model.Project `json:"project"`
}

// QuoteService manages quotes, their numbering and lifecycle
type QuoteService struct {
	db        *gorm.DB
	tenants   *TenantService
	workflows WorkflowTrigger
	now       func() time.Time
}

// NewQuoteService creates a QuoteService
func NewQuoteService(db *gorm.DB, tenants *TenantService, workflows WorkflowTrigger) *QuoteService {
	if workflows == nil {
		workflows = NoopTrigger{}
	}
	return &QuoteService{db: db, tenants: tenants, workflows: workflows, now: time.Now}
}

func tenantSummary(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "slug", "type")
}

// nextQuoteSequence increments and returns the (tenant, year) counter. The
// upsert locks the counter row until the surrounding transaction ends. A
// missing counter starts after the highest number already issued that year.
func nextQuoteSequence(tx *gorm.DB, tenantID string, year int, now time.Time) (int, error) {
	var counters int64
	if err := tx.Model(&model.QuoteSequence{}).
		Where("tenant_id = ? AND year = ?", tenantID, year).
		Count(&counters).Error; err != nil {
		return 0, fmt.Errorf("check quote sequence: %w", err)
	}

	start := 1
	if counters == 0 {
		highest, err := highestQuoteNumber(tx, tenantID, year)
		if err != nil {
			return 0, err
		}
		start = highest + 1
	}

	seq := model.QuoteSequence{TenantID: tenantID, Year: year, LastValue: start, UpdatedAt: now}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "year"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_value": gorm.Expr("quote_sequences.last_value + 1"),
			"updated_at": now,
		}),
	}).Create(&seq).Error
	if err != nil {
		return 0, fmt.Errorf("increment quote sequence: %w", err)
	}

	if err := tx.Where("tenant_id = ? AND year = ?", tenantID, year).First(&seq).Error; err != nil {
		return 0, fmt.Errorf("read quote sequence: %w", err)
	}
	return seq.LastValue, nil
}

// highestQuoteNumber returns the largest sequence among the tenant's quotes
// numbered in year, soft-deleted ones included, or 0 when there are none.
func highestQuoteNumber(tx *gorm.DB, tenantID string, year int) (int, error) {
	prefix := fmt.Sprintf("QUO-%d-", year)

	var numbers []string
	err := tx.Unscoped().Model(&model.Quote{}).
		Where("tenant_id = ? AND quote_number LIKE ?", tenantID, prefix+"%").
		Order("LENGTH(quote_number) DESC").
		Order("quote_number DESC").
		Limit(1).
		Pluck("quote_number", &numbers).Error
	if err != nil {
		return 0, fmt.Errorf("read highest quote number: %w", err)
	}
	if len(numbers) == 0 {
		return 0, nil
	}

	n, err := strconv.Atoi(strings.TrimPrefix(numbers[0], prefix))
	if err != nil {
		// hand-edited numbers do not seed the counter
		return 0, nil
	}
	return n, nil
}

// CreatePublic creates a quote for the default tenant
func (s *QuoteService) CreatePublic(ctx context.Context, in QuoteInput) (*model.Quote, error) {
	tenant, err := s.tenants.ResolveDefault(ctx)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, tenant.ID, in, "public")
}

// Create creates a quote for the given tenant
func (s *QuoteService) Create(ctx context.Context, tenantID string, in QuoteInput) (*model.Quote, error) {
	return s.create(ctx, tenantID, in, "admin")
}

func (s *QuoteService) create(ctx context.Context, tenantID string, in QuoteInput, source string) (*model.Quote, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	quote := model.Quote{
		ClientName:     in.ClientName,
		ClientEmail:    in.ClientEmail,
		ClientPhone:    in.ClientPhone,
		ClientCompany:  in.ClientCompany,
		ProjectName:    in.ProjectName,
		ProjectType:    in.ProjectType,
		Description:    in.Description,
		Services:       datatypes.NewJSONSlice(in.Services),
		Subtotal:       in.Subtotal,
		Tax:            in.Tax,
		Discount:       in.Discount,
		Total:          in.Total,
		EstimatedHours: in.EstimatedHours,
		DeliveryDays:   in.DeliveryDays,
		ValidUntil:     in.ValidUntil,
		Status:         model.QuoteStatusDraft,
		Notes:          in.Notes,
		InternalNotes:  in.InternalNotes,
		TenantID:       tenantID,
	}
	if in.Metadata != nil {
		quote.Metadata = datatypes.JSONMap(in.Metadata)
	}

	now := s.now().UTC()
	defer prometheus.TrackDBOperation("insert")(time.Now())
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := nextQuoteSequence(tx, tenantID, now.Year(), now)
		if err != nil {
			return err
		}
		quote.QuoteNumber = model.FormatQuoteNumber(now.Year(), seq)

		if err := tx.Create(&quote).Error; err != nil {
			if isDuplicate(err) {
				return apperror.Conflict("Quote number already exists")
			}
			return fmt.Errorf("create quote: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prometheus.RecordQuoteCreated(source)
	logger.Ctx(ctx).Info("Quote created",
		zap.String("quote_id", quote.ID),
		zap.String("quote_number", quote.QuoteNumber),
		zap.String("tenant_id", tenantID),
		zap.String("source", source))

	return s.Get(ctx, tenantID, quote.ID)
}

// List returns a filtered page of the tenant's quotes
func (s *QuoteService) List(ctx context.Context, tenantID string, q QuoteQuery) (*QuoteList, error) {
	page := q.PageRequest.normalize()

	query := s.db.WithContext(ctx).Model(&model.Quote{}).Where("tenant_id = ?", tenantID)
	if q.QuoteNumber != "" {
		query = query.Where("LOWER(quote_number) LIKE ?", likePattern(q.QuoteNumber))
	}
	if q.ClientEmail != "" {
		query = query.Where("LOWER(client_email) LIKE ?", likePattern(q.ClientEmail))
	}
	if q.ClientName != "" {
		query = query.Where("LOWER(client_name) LIKE ?", likePattern(q.ClientName))
	}
	if q.Status != "" {
		if !q.Status.Valid() {
			return nil, apperror.BadRequest("invalid quote status %q", q.Status)
		}
		query = query.Where("status = ?", q.Status)
	}
	if q.ProjectType != "" {
		query = query.Where("project_type = ?", q.ProjectType)
	}
	if q.StartDate != nil && q.EndDate != nil {
		query = query.Where("created_at >= ? AND created_at <= ?", *q.StartDate, endOfDay(*q.EndDate))
	}
	if q.Search != "" {
		pattern := likePattern(q.Search)
		query = query.Where(
			"LOWER(client_name) LIKE ? OR LOWER(client_email) LIKE ? OR LOWER(project_name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(quote_number) LIKE ?",
			pattern, pattern, pattern, pattern, pattern)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count quotes: %w", err)
	}

	column, ok := quoteOrderColumns[q.OrderBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(q.OrderDirection, "asc") {
		direction = "ASC"
	}

	quotes := []model.Quote{}
	err := query.
		Preload("Tenant", tenantSummary).
		Order(column + " " + direction).
		Offset(page.offset()).
		Limit(page.Limit).
		Find(&quotes).Error
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}

	return &QuoteList{Data: quotes, Pagination: newPagination(page, total)}, nil
}

// Stats counts the tenant's quotes per status and sums their totals
func (s *QuoteService) Stats(ctx context.Context, tenantID string) (*QuoteStats, error) {
	var quotes []model.Quote
	if err := s.db.WithContext(ctx).Select("status", "total").Where("tenant_id = ?", tenantID).Find(&quotes).Error; err != nil {
		return nil, fmt.Errorf("load quote stats: %w", err)
	}

	stats := &QuoteStats{
		Total:        int64(len(quotes)),
		ByStatus:     make(map[model.QuoteStatus]int64, len(model.QuoteStatuses)),
		TotalValue:   decimal.Zero,
		AverageValue: decimal.Zero,
	}
	for _, status := range model.QuoteStatuses {
		stats.ByStatus[status] = 0
	}
	for _, quote := range quotes {
		stats.ByStatus[quote.Status]++
		stats.TotalValue = stats.TotalValue.Add(quote.Total)
	}
	if stats.Total > 0 {
		stats.AverageValue = stats.TotalValue.Div(decimal.NewFromInt(stats.Total)).Round(2)
	}
	return stats, nil
}

// Get returns a quote of the tenant
func (s *QuoteService) Get(ctx context.Context, tenantID, id string) (*model.Quote, error) {
	var quote model.Quote
	err := s.db.WithContext(ctx).
		Preload("Tenant", tenantSummary).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&quote).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Quote with ID %s not found", id)
		}
		return nil, fmt.Errorf("find quote: %w", err)
	}
	return &quote, nil
}

// GetPublicByNumber returns a quote of the default tenant by number without
// its internal fields. Reading it marks a DRAFT, SENT or VIEWED quote as
// VIEWED; later states are left untouched.
func (s *QuoteService) GetPublicByNumber(ctx context.Context, quoteNumber string) (*model.Quote, error) {
	tenant, err := s.tenants.ResolveDefault(ctx)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var quote model.Quote
	if err := db.Where("quote_number = ? AND tenant_id = ?", quoteNumber, tenant.ID).First(&quote).Error; err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Quote %s not found", quoteNumber)
		}
		return nil, fmt.Errorf("find quote: %w", err)
	}

	viewable := quote.Status == model.QuoteStatusDraft || quote.Status == model.QuoteStatusSent || quote.Status == model.QuoteStatusViewed
	if viewable {
		updates := map[string]interface{}{"status": model.QuoteStatusViewed}
		now := s.now()
		if quote.ViewedAt == nil {
			updates["viewed_at"] = now
		}
		result := db.Model(&model.Quote{}).
			Where("id = ? AND status IN ?", quote.ID, []model.QuoteStatus{model.QuoteStatusDraft, model.QuoteStatusSent, model.QuoteStatusViewed}).
			Updates(updates)
		if result.Error != nil {
			return nil, fmt.Errorf("mark quote viewed: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			if quote.Status != model.QuoteStatusViewed {
				prometheus.RecordQuoteTransition(string(model.QuoteStatusViewed))
			}
			quote.Status = model.QuoteStatusViewed
			if quote.ViewedAt == nil {
				quote.ViewedAt = &now
			}
		}
	}

	public := quote.PublicView()
	public.Tenant = &model.Tenant{ID: tenant.ID, Name: tenant.Name, Slug: tenant.Slug, Type: tenant.Type}
	return &public, nil
}

// Update applies a partial update to a quote of the tenant
func (s *QuoteService) Update(ctx context.Context, tenantID, id string, patch QuotePatch) (*model.Quote, error) {
	quote, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.ClientName != nil {
		name := strings.TrimSpace(*patch.ClientName)
		if name == "" {
			return nil, apperror.BadRequest("clientName must not be empty")
		}
		updates["client_name"] = name
	}
	if patch.ClientEmail != nil {
		email := normalizeEmail(*patch.ClientEmail)
		if !validEmail(email) {
			return nil, apperror.BadRequest("clientEmail must be a valid email address")
		}
		updates["client_email"] = email
	}
	if patch.ClientPhone != nil {
		updates["client_phone"] = *patch.ClientPhone
	}
	if patch.ClientCompany != nil {
		updates["client_company"] = *patch.ClientCompany
	}
	if patch.ProjectName != nil {
		name := strings.TrimSpace(*patch.ProjectName)
		if name == "" {
			return nil, apperror.BadRequest("projectName must not be empty")
		}
		updates["project_name"] = name
	}
	if patch.ProjectType != nil {
		if !validProjectType(*patch.ProjectType) {
			return nil, apperror.BadRequest("projectType must be one of %s", strings.Join(model.ProjectTypes, ", "))
		}
		updates["project_type"] = *patch.ProjectType
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Services != nil {
		if err := validateQuoteServices(patch.Services); err != nil {
			return nil, err
		}
		updates["services"] = datatypes.NewJSONSlice(patch.Services)
	}
	if patch.Subtotal != nil {
		if !patch.Subtotal.IsPositive() {
			return nil, apperror.BadRequest("subtotal must be positive")
		}
		updates["subtotal"] = *patch.Subtotal
	}
	if patch.Tax != nil {
		if patch.Tax.IsNegative() {
			return nil, apperror.BadRequest("tax must not be negative")
		}
		updates["tax"] = *patch.Tax
	}
	if patch.Discount != nil {
		if patch.Discount.IsNegative() {
			return nil, apperror.BadRequest("discount must not be negative")
		}
		updates["discount"] = *patch.Discount
	}
	if patch.Total != nil {
		if !patch.Total.IsPositive() {
			return nil, apperror.BadRequest("total must be positive")
		}
		updates["total"] = *patch.Total
	}
	if patch.EstimatedHours != nil {
		if *patch.EstimatedHours <= 0 {
			return nil, apperror.BadRequest("estimatedHours must be positive")
		}
		updates["estimated_hours"] = *patch.EstimatedHours
	}
	if patch.DeliveryDays != nil {
		if err := validateDeliveryDays(patch.DeliveryDays); err != nil {
			return nil, err
		}
		updates["delivery_days"] = *patch.DeliveryDays
	}
	if patch.ValidUntil != nil {
		updates["valid_until"] = *patch.ValidUntil
	}
	if patch.Notes != nil {
		updates["notes"] = *patch.Notes
	}
	if patch.InternalNotes != nil {
		updates["internal_notes"] = *patch.InternalNotes
	}
	if patch.Metadata != nil {
		updates["metadata"] = datatypes.JSONMap(patch.Metadata)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperror.BadRequest("invalid quote status %q", *patch.Status)
		}
		for column, value := range s.statusUpdates(quote, *patch.Status) {
			updates[column] = value
		}
	}

	if len(updates) > 0 {
		defer prometheus.TrackDBOperation("update")(time.Now())
		if err := s.db.WithContext(ctx).Model(&model.Quote{}).Where("id = ?", quote.ID).Updates(updates).Error; err != nil {
			if isDuplicate(err) {
				return nil, apperror.Conflict("Quote number already exists")
			}
			return nil, fmt.Errorf("update quote: %w", err)
		}
	}
	if patch.Status != nil && *patch.Status != quote.Status {
		prometheus.RecordQuoteTransition(string(*patch.Status))
		logger.Ctx(ctx).Info("Quote status changed",
			zap.String("quote_id", quote.ID),
			zap.String("from", string(quote.Status)),
			zap.String("to", string(*patch.Status)))
	}
	return s.Get(ctx, tenantID, id)
}

// statusUpdates returns the columns written when a quote moves to status
func (s *QuoteService) statusUpdates(quote *model.Quote, status model.QuoteStatus) map[string]interface{} {
	now := s.now()
	updates := map[string]interface{}{"status": status}
	switch status {
	case model.QuoteStatusViewed:
		if quote.ViewedAt == nil {
			updates["viewed_at"] = now
		}
	case model.QuoteStatusApproved:
		updates["approved_at"] = now
	case model.QuoteStatusRejected:
		updates["rejected_at"] = now
	case model.QuoteStatusConverted:
		updates["converted_at"] = now
	}
	return updates
}

func (s *QuoteService) setStatus(ctx context.Context, tenantID, id string, status model.QuoteStatus) (*model.Quote, error) {
	return s.Update(ctx, tenantID, id, QuotePatch{Status: &status})
}

// Approve marks a quote APPROVED
func (s *QuoteService) Approve(ctx context.Context, tenantID, id string) (*model.Quote, error) {
	return s.setStatus(ctx, tenantID, id, model.QuoteStatusApproved)
}

// Reject marks a quote REJECTED
func (s *QuoteService) Reject(ctx context.Context, tenantID, id string) (*model.Quote, error) {
	return s.setStatus(ctx, tenantID, id, model.QuoteStatusRejected)
}

// Send marks a quote SENT
func (s *QuoteService) Send(ctx context.Context, tenantID, id string) (*model.Quote, error) {
	return s.setStatus(ctx, tenantID, id, model.QuoteStatusSent)
}

// Delete soft-deletes a quote of the tenant
func (s *QuoteService) Delete(ctx context.Context, tenantID, id string) (*model.Quote, error) {
	quote, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(&model.Quote{}, "id = ?", quote.ID).Error; err != nil {
		return nil, fmt.Errorf("delete quote: %w", err)
	}
	logger.Ctx(ctx).Info("Quote deleted", zap.String("quote_id", id), zap.String("tenant_id", tenantID))
	return quote, nil
}

// ConvertToProject turns an APPROVED, unlinked quote into a project for a
// client matched (or created) by the quote's email. Everything happens in
// one transaction; the project-approved workflow fires after commit.
func (s *QuoteService) ConvertToProject(ctx context.Context, tenantID, id string) (*ConversionResult, error) {
	var project model.Project

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quote model.Quote
		if err := tx.Where("id = ? AND tenant_id = ?", id, tenantID).First(&quote).Error; err != nil {
			if isNotFound(err) {
				return apperror.NotFound("Quote with ID %s not found", id)
			}
			return fmt.Errorf("find quote: %w", err)
		}

		if quote.ProjectID != nil && *quote.ProjectID != "" {
			return apperror.Conflict("Quote has already been converted to project")
		}
		if quote.Status != model.QuoteStatusApproved {
			return apperror.Conflict("Only approved quotes can be converted to projects")
		}

		client, err := findOrCreateQuoteClient(tx, &quote)
		if err != nil {
			return err
		}

		snapshot, err := quoteSnapshot(&quote)
		if err != nil {
			return err
		}

		quotedHours := 0.0
		hourlyRate := decimal.Zero
		if quote.EstimatedHours != nil && *quote.EstimatedHours > 0 {
			quotedHours = *quote.EstimatedHours
			hourlyRate = quote.Total.Div(decimal.NewFromFloat(quotedHours)).Round(2)
		}

		now := s.now()
		project = model.Project{
			Name:          quote.ProjectName,
			Description:   quote.Description,
			Status:        model.ProjectStatusActive,
			QuotedHours:   quotedHours,
			HourlyRate:    hourlyRate,
			StartDate:     &now,
			QuotationData: snapshot,
			ClientID:      client.ID,
			TenantID:      tenantID,
		}
		if err := tx.Create(&project).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		project.Client = client

		result := tx.Model(&model.Quote{}).
			Where("id = ? AND status = ? AND project_id IS NULL", quote.ID, model.QuoteStatusApproved).
			Updates(map[string]interface{}{
				"project_id":   project.ID,
				"status":       model.QuoteStatusConverted,
				"converted_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("link quote to project: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperror.Conflict("Quote has already been converted to project")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prometheus.RecordQuoteTransition(string(model.QuoteStatusConverted))
	logger.Ctx(ctx).Info("Quote converted to project",
		zap.String("quote_id", id),
		zap.String("project_id", project.ID),
		zap.String("tenant_id", tenantID))

	s.workflows.Trigger(ctx, n8n.WorkflowProjectApproved, tenantInfo(s.db.WithContext(ctx), tenantID), map[string]interface{}{
		"project": map[string]interface{}{
			"id":          project.ID,
			"name":        project.Name,
			"description": project.Description,
			"quotedHours": project.QuotedHours,
			"hourlyRate":  project.HourlyRate.InexactFloat64(),
			"startDate":   project.StartDate,
			"endDate":     project.EndDate,
		},
		"client": clientPayload(project.Client),
	})

	quote, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return &ConversionResult{Quote: quote, Project: &project}, nil
}

func findOrCreateQuoteClient(tx *gorm.DB, quote *model.Quote) (*model.Client, error) {
	var client model.Client
	err := tx.Where("tenant_id = ? AND LOWER(email) = ?", quote.TenantID, strings.ToLower(quote.ClientEmail)).
		Order("created_at ASC").
		First(&client).Error
	if err == nil {
		return &client, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("find client: %w", err)
	}

	client = model.Client{
		Name:     quote.ClientName,
		Email:    quote.ClientEmail,
		Phone:    quote.ClientPhone,
		Company:  quote.ClientCompany,
		TenantID: quote.TenantID,
	}
	if err := tx.Create(&client).Error; err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &client, nil
}

// quoteSnapshot captures the quote as JSON for the project's quotation data
func quoteSnapshot(quote *model.Quote) (datatypes.JSONMap, error) {
	raw, err := json.Marshal(quote)
	if err != nil {
		return nil, fmt.Errorf("encode quote snapshot: %w", err)
	}
	snapshot := datatypes.JSONMap{}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decode quote snapshot: %w", err)
	}
	delete(snapshot, "tenant")
	return snapshot, nil
}
