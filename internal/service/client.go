package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/apperror"
	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"github.com/Ealanisln/alanis-backend/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var clientOrderColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
	"email":     "email",
	"company":   "company",
}

// ClientInput holds the fields of a new client
type ClientInput struct {
	Name    string
	Email   string
	Phone   *string
	Company *string
	TaxID   *string
	Address *model.Address
}

// ClientPatch holds a partial client update. AddressSet distinguishes an
// explicit null address from an absent one.
type ClientPatch struct {
	Name       *string
	Email      *string
	Phone      *string
	Company    *string
	TaxID      *string
	Address    *model.Address
	AddressSet bool
}

// ClientQuery filters client listings
type ClientQuery struct {
	PageRequest
	Search  string
	OrderBy string
}

// ClientList is a page of clients
type ClientList struct {
	Data []model.Client `json:"data"`
	Meta Pagination     `json:"meta"`
}

// ClientService manages a tenant's clients
type ClientService struct {
	db *gorm.DB
}

// NewClientService creates a ClientService
func NewClientService(db *gorm.DB) *ClientService {
	return &ClientService{db: db}
}

func validateAddress(addr *model.Address) error {
	if addr == nil {
		return nil
	}
	if strings.TrimSpace(addr.Street) == "" || strings.TrimSpace(addr.City) == "" ||
		strings.TrimSpace(addr.State) == "" || strings.TrimSpace(addr.ZipCode) == "" ||
		strings.TrimSpace(addr.Country) == "" {
		return apperror.BadRequest("address requires street, city, state, zipCode and country")
	}
	return nil
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

// Create adds a client to the tenant
func (s *ClientService) Create(ctx context.Context, tenantID string, in ClientInput) (*model.Client, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" {
		return nil, apperror.BadRequest("name is required")
	}
	if !validEmail(in.Email) {
		return nil, apperror.BadRequest("email must be a valid email address")
	}
	if err := validateAddress(in.Address); err != nil {
		return nil, err
	}

	client := model.Client{
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		Company:  in.Company,
		TaxID:    in.TaxID,
		TenantID: tenantID,
	}
	client.SetAddress(in.Address)

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := s.db.WithContext(ctx).Create(&client).Error; err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	logger.Ctx(ctx).Info("Client created", zap.String("client_id", client.ID), zap.String("tenant_id", tenantID))
	return &client, nil
}

// List returns a page of the tenant's clients with project summaries
func (s *ClientService) List(ctx context.Context, tenantID string, q ClientQuery) (*ClientList, error) {
	page := q.PageRequest.normalize()

	query := s.db.WithContext(ctx).Model(&model.Client{}).Where("tenant_id = ?", tenantID)
	if q.Search != "" {
		pattern := likePattern(q.Search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count clients: %w", err)
	}

	column, ok := clientOrderColumns[q.OrderBy]
	if !ok {
		column = "created_at"
	}

	clients := []model.Client{}
	err := query.
		Preload("Projects", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "status", "client_id")
		}).
		Order(column + " DESC").
		Offset(page.offset()).
		Limit(page.Limit).
		Find(&clients).Error
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	return &ClientList{Data: clients, Meta: newPagination(page, total)}, nil
}

// Get returns a client of the tenant with its projects
func (s *ClientService) Get(ctx context.Context, tenantID, id string) (*model.Client, error) {
	var client model.Client
	err := s.db.WithContext(ctx).
		Preload("Projects", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "status", "quoted_hours", "used_hours", "hourly_rate", "client_id")
		}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&client).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Client with ID %s not found", id)
		}
		return nil, fmt.Errorf("find client: %w", err)
	}
	return &client, nil
}

// Update applies a partial update to a client of the tenant
func (s *ClientService) Update(ctx context.Context, tenantID, id string, patch ClientPatch) (*model.Client, error) {
	client, err := s.find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperror.BadRequest("name must not be empty")
		}
		updates["name"] = name
	}
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if !validEmail(email) {
			return nil, apperror.BadRequest("email must be a valid email address")
		}
		updates["email"] = email
	}
	if patch.Phone != nil {
		updates["phone"] = *patch.Phone
	}
	if patch.Company != nil {
		updates["company"] = *patch.Company
	}
	if patch.TaxID != nil {
		updates["tax_id"] = *patch.TaxID
	}
	if patch.AddressSet {
		if err := validateAddress(patch.Address); err != nil {
			return nil, err
		}
		client.SetAddress(patch.Address)
		if client.Address == nil {
			updates["address"] = gorm.Expr("NULL")
		} else {
			updates["address"] = *client.Address
		}
	}

	if len(updates) > 0 {
		defer prometheus.TrackDBOperation("update")(time.Now())
		if err := s.db.WithContext(ctx).Model(client).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update client: %w", err)
		}
	}
	return s.Get(ctx, tenantID, id)
}

// Delete soft-deletes a client of the tenant
func (s *ClientService) Delete(ctx context.Context, tenantID, id string) error {
	client, err := s.find(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(client).Error; err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	logger.Ctx(ctx).Info("Client deleted", zap.String("client_id", id), zap.String("tenant_id", tenantID))
	return nil
}

func (s *ClientService) find(ctx context.Context, tenantID, id string) (*model.Client, error) {
	var client model.Client
	if err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&client).Error; err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Client with ID %s not found", id)
		}
		return nil, fmt.Errorf("find client: %w", err)
	}
	return &client, nil
}
