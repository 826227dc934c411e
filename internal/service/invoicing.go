package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/apperror"
	"github.com/Ealanisln/alanis-backend/internal/integration/invoiceninja"
	"github.com/Ealanisln/alanis-backend/internal/integration/n8n"
	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const generalTaskName = "General Development"

// InvoiceGateway is the billing system invoices are created in
type InvoiceGateway interface {
	Enabled() bool
	UpsertClient(ctx context.Context, record invoiceninja.ClientRecord) (*invoiceninja.ClientRecord, error)
	CreateInvoice(ctx context.Context, invoice invoiceninja.InvoiceRequest) (*invoiceninja.Invoice, error)
	Ping(ctx context.Context) error
}

// InvoiceResult is the outcome of invoicing a project
type InvoiceResult struct {
	Invoice       *invoiceninja.Invoice `json:"invoice"`
	BilledEntries int                   `json:"billedEntries"`
}

// InvoicingService mirrors clients into Invoice Ninja and bills unbilled time
type InvoicingService struct {
	db        *gorm.DB
	gateway   InvoiceGateway
	workflows WorkflowTrigger
	now       func() time.Time
}

// NewInvoicingService creates an InvoicingService
func NewInvoicingService(db *gorm.DB, gateway InvoiceGateway, workflows WorkflowTrigger) *InvoicingService {
	if workflows == nil {
		workflows = NoopTrigger{}
	}
	return &InvoicingService{db: db, gateway: gateway, workflows: workflows, now: time.Now}
}

func (s *InvoicingService) ensureEnabled() error {
	if s.gateway == nil || !s.gateway.Enabled() {
		return apperror.Unavailable("Invoice Ninja integration is not configured")
	}
	return nil
}

// SyncClient pushes a client of the tenant to Invoice Ninja and records the
// outcome on the client.
func (s *InvoicingService) SyncClient(ctx context.Context, tenantID, clientID string) (*model.Client, error) {
	if err := s.ensureEnabled(); err != nil {
		return nil, err
	}

	var client model.Client
	if err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", clientID, tenantID).First(&client).Error; err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Client with ID %s not found", clientID)
		}
		return nil, fmt.Errorf("find client: %w", err)
	}

	if err := s.syncClient(ctx, &client); err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *InvoicingService) syncClient(ctx context.Context, client *model.Client) error {
	log := logger.Ctx(ctx).With(zap.String("client_id", client.ID))
	db := s.db.WithContext(ctx)

	remote, err := s.gateway.UpsertClient(ctx, clientRecord(client))
	if err != nil {
		log.Error("Invoice Ninja client sync failed", zap.Error(err))
		if uerr := db.Model(&model.Client{}).Where("id = ?", client.ID).Update("sync_status", model.SyncStatusError).Error; uerr != nil {
			log.Error("Failed to record client sync error", zap.Error(uerr))
		}
		client.SyncStatus = model.SyncStatusError
		return apperror.Upstream(err, "Invoice Ninja client sync failed")
	}

	now := s.now()
	remoteID := remote.ID
	err = db.Model(&model.Client{}).Where("id = ?", client.ID).Updates(map[string]interface{}{
		"invoice_ninja_id": remoteID,
		"sync_status":      model.SyncStatusSynced,
		"last_sync_at":     now,
	}).Error
	if err != nil {
		return fmt.Errorf("record client sync: %w", err)
	}
	client.InvoiceNinjaID = &remoteID
	client.SyncStatus = model.SyncStatusSynced
	client.LastSyncAt = &now

	log.Info("Client synced with Invoice Ninja", zap.String("invoice_ninja_id", remoteID))
	return nil
}

func clientRecord(client *model.Client) invoiceninja.ClientRecord {
	record := invoiceninja.ClientRecord{
		Name:         client.Name,
		Email:        client.Email,
		CountryID:    invoiceninja.DefaultCountryID,
		CustomValue1: client.ID,
		CustomValue2: client.TenantID,
	}
	if client.Phone != nil {
		record.Phone = *client.Phone
	}
	if client.TaxID != nil {
		record.VATNumber = *client.TaxID
	}
	if addr := client.AddressData(); addr != nil {
		record.Address1 = addr.Street
		record.City = addr.City
		record.State = addr.State
		record.PostalCode = addr.ZipCode
	}
	return record
}

// groupLineItems merges entries sharing a task title and description into
// one line, in order of first appearance.
func groupLineItems(entries []model.TimeEntry, cost float64) []invoiceninja.LineItem {
	items := []invoiceninja.LineItem{}
	index := map[string]int{}
	for _, entry := range entries {
		taskName := generalTaskName
		if entry.Task != nil && entry.Task.Title != "" {
			taskName = entry.Task.Title
		}
		key := taskName + "_" + entry.Description
		idx, ok := index[key]
		if !ok {
			items = append(items, invoiceninja.LineItem{
				ProductKey: taskName,
				Notes:      entry.Description,
				Cost:       cost,
			})
			idx = len(items) - 1
			index[key] = idx
		}
		items[idx].Quantity += entry.Hours
	}
	return items
}

// CreateInvoice bills the unbilled billable entries of a project of the
// tenant. Only the entries included in the invoice are marked billed.
func (s *InvoicingService) CreateInvoice(ctx context.Context, tenantID, projectID string) (*InvoiceResult, error) {
	if err := s.ensureEnabled(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	project, err := findTenantProject(db, tenantID, projectID)
	if err != nil {
		return nil, err
	}

	var client model.Client
	if err := db.Where("id = ?", project.ClientID).First(&client).Error; err != nil {
		return nil, fmt.Errorf("find project client: %w", err)
	}

	entries := []model.TimeEntry{}
	err = db.
		Preload("Task", func(db *gorm.DB) *gorm.DB { return db.Select("id", "title") }).
		Where("project_id = ? AND billable = ? AND billed = ?", project.ID, true, false).
		Order("date ASC").
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list unbilled entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, apperror.BadRequest("Project has no unbilled billable time entries")
	}

	if client.InvoiceNinjaID == nil || *client.InvoiceNinjaID == "" {
		logger.Ctx(ctx).Info("Client not synced, syncing before invoicing", zap.String("client_id", client.ID))
		if err := s.syncClient(ctx, &client); err != nil {
			return nil, err
		}
	}

	invoice, err := s.gateway.CreateInvoice(ctx, invoiceninja.InvoiceRequest{
		ClientID:     *client.InvoiceNinjaID,
		LineItems:    groupLineItems(entries, project.HourlyRate.InexactFloat64()),
		CustomValue1: project.ID,
		CustomValue2: project.TenantID,
	})
	if err != nil {
		logger.Ctx(ctx).Error("Invoice Ninja invoice creation failed", zap.String("project_id", project.ID), zap.Error(err))
		return nil, apperror.Upstream(err, "Invoice Ninja invoice creation failed")
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	result := db.Model(&model.TimeEntry{}).Where("id IN ? AND billed = ?", ids, false).Update("billed", true)
	if result.Error != nil {
		return nil, fmt.Errorf("mark entries billed: %w", result.Error)
	}

	logger.Ctx(ctx).Info("Invoice created",
		zap.String("project_id", project.ID),
		zap.String("invoice_id", invoice.ID),
		zap.Int64("billed_entries", result.RowsAffected))

	s.workflows.Trigger(ctx, n8n.WorkflowInvoiceCreated, tenantInfo(db, tenantID), map[string]interface{}{
		"invoice": map[string]interface{}{
			"id":     invoice.ID,
			"number": invoice.Number,
			"amount": invoice.Amount,
		},
		"project": map[string]interface{}{
			"id":   project.ID,
			"name": project.Name,
		},
		"client": clientPayload(&client),
	})

	return &InvoiceResult{Invoice: invoice, BilledEntries: int(result.RowsAffected)}, nil
}

// Ping reports whether Invoice Ninja is reachable
func (s *InvoicingService) Ping(ctx context.Context) error {
	if err := s.ensureEnabled(); err != nil {
		return err
	}
	return s.gateway.Ping(ctx)
}
