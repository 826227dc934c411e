package service

import (
	"context"
	"fmt"
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
)

const recentEntriesLimit = 10

// ProjectInput holds the fields of a new project
type ProjectInput struct {
	Name          string
	Description   *string
	QuotedHours   float64
	HourlyRate    decimal.Decimal
	StartDate     *time.Time
	EndDate       *time.Time
	ClientID      string
	QuotationData map[string]interface{}
}

// ProjectPatch holds a partial project update
type ProjectPatch struct {
	Name          *string
	Description   *string
	Status        *model.ProjectStatus
	QuotedHours   *float64
	HourlyRate    *decimal.Decimal
	StartDate     *time.Time
	EndDate       *time.Time
	QuotationData map[string]interface{}
}

// TaskInput holds the fields of a new task
type TaskInput struct {
	Title          string
	Description    *string
	Status         model.TaskStatus
	EstimatedHours *float64
}

// ProjectService manages a tenant's projects and their tasks
type ProjectService struct {
	db        *gorm.DB
	workflows WorkflowTrigger
}

// NewProjectService creates a ProjectService
func NewProjectService(db *gorm.DB, workflows WorkflowTrigger) *ProjectService {
	if workflows == nil {
		workflows = NoopTrigger{}
	}
	return &ProjectService{db: db, workflows: workflows}
}

func clientSummary(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "email", "company")
}

// Create adds a project for a client of the tenant
func (s *ProjectService) Create(ctx context.Context, tenantID string, in ProjectInput) (*model.Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperror.BadRequest("name is required")
	}
	if strings.TrimSpace(in.ClientID) == "" {
		return nil, apperror.BadRequest("clientId is required")
	}
	if in.QuotedHours < 0 {
		return nil, apperror.BadRequest("quotedHours must not be negative")
	}
	if in.HourlyRate.IsNegative() {
		return nil, apperror.BadRequest("hourlyRate must not be negative")
	}

	db := s.db.WithContext(ctx)

	var client model.Client
	if err := db.Where("id = ? AND tenant_id = ?", in.ClientID, tenantID).First(&client).Error; err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Client not found")
		}
		return nil, fmt.Errorf("find client: %w", err)
	}

	project := model.Project{
		Name:        in.Name,
		Description: in.Description,
		Status:      model.ProjectStatusActive,
		QuotedHours: in.QuotedHours,
		HourlyRate:  in.HourlyRate,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		ClientID:    client.ID,
		TenantID:    tenantID,
	}
	if in.QuotationData != nil {
		project.QuotationData = datatypes.JSONMap(in.QuotationData)
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&project).Error; err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	project.Client = &client

	logger.Ctx(ctx).Info("Project created", zap.String("project_id", project.ID), zap.String("tenant_id", tenantID))
	return &project, nil
}

// List returns the tenant's projects, newest first
func (s *ProjectService) List(ctx context.Context, tenantID string, status model.ProjectStatus) ([]model.Project, error) {
	query := s.db.WithContext(ctx).
		Preload("Client", clientSummary).
		Where("tenant_id = ?", tenantID)
	if status != "" {
		if !status.Valid() {
			return nil, apperror.BadRequest("invalid project status %q", status)
		}
		query = query.Where("status = ?", status)
	}

	projects := []model.Project{}
	if err := query.Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Get returns a project with its client and the most recent time entries
func (s *ProjectService) Get(ctx context.Context, tenantID, id string) (*model.Project, error) {
	var project model.Project
	err := s.db.WithContext(ctx).
		Preload("Client", clientSummary).
		Preload("TimeEntries", func(db *gorm.DB) *gorm.DB {
			return db.Order("date DESC").Limit(recentEntriesLimit)
		}).
		Preload("TimeEntries.User", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "first_name", "last_name", "email")
		}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&project).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Project with ID %s not found", id)
		}
		return nil, fmt.Errorf("find project: %w", err)
	}
	return &project, nil
}

// Update applies a partial update. A status change triggers the
// project-status-changed workflow.
func (s *ProjectService) Update(ctx context.Context, tenantID, id string, patch ProjectPatch) (*model.Project, error) {
	project, err := s.find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	previousStatus := project.Status

	updates := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperror.BadRequest("name must not be empty")
		}
		updates["name"] = name
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperror.BadRequest("invalid project status %q", *patch.Status)
		}
		updates["status"] = *patch.Status
	}
	if patch.QuotedHours != nil {
		if *patch.QuotedHours < 0 {
			return nil, apperror.BadRequest("quotedHours must not be negative")
		}
		updates["quoted_hours"] = *patch.QuotedHours
	}
	if patch.HourlyRate != nil {
		if patch.HourlyRate.IsNegative() {
			return nil, apperror.BadRequest("hourlyRate must not be negative")
		}
		updates["hourly_rate"] = *patch.HourlyRate
	}
	if patch.StartDate != nil {
		updates["start_date"] = *patch.StartDate
	}
	if patch.EndDate != nil {
		updates["end_date"] = *patch.EndDate
	}
	if patch.QuotationData != nil {
		updates["quotation_data"] = datatypes.JSONMap(patch.QuotationData)
	}

	if len(updates) > 0 {
		defer prometheus.TrackDBOperation("update")(time.Now())
		if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update project: %w", err)
		}
	}

	updated, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil && *patch.Status != previousStatus {
		s.workflows.Trigger(ctx, n8n.WorkflowProjectStatusChanged, tenantInfo(s.db.WithContext(ctx), tenantID), map[string]interface{}{
			"project": map[string]interface{}{
				"id":             updated.ID,
				"name":           updated.Name,
				"previousStatus": previousStatus,
				"status":         updated.Status,
			},
			"client": clientPayload(updated.Client),
		})
	}
	return updated, nil
}

// Delete soft-deletes a project of the tenant
func (s *ProjectService) Delete(ctx context.Context, tenantID, id string) error {
	project, err := s.find(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(project).Error; err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	logger.Ctx(ctx).Info("Project deleted", zap.String("project_id", id), zap.String("tenant_id", tenantID))
	return nil
}

// CreateTask adds a task to a project of the tenant
func (s *ProjectService) CreateTask(ctx context.Context, tenantID, projectID string, in TaskInput) (*model.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperror.BadRequest("title is required")
	}
	if in.Status == "" {
		in.Status = model.TaskStatusTodo
	}
	if !in.Status.Valid() {
		return nil, apperror.BadRequest("invalid task status %q", in.Status)
	}
	if in.EstimatedHours != nil && *in.EstimatedHours < 0 {
		return nil, apperror.BadRequest("estimatedHours must not be negative")
	}

	project, err := s.find(ctx, tenantID, projectID)
	if err != nil {
		return nil, err
	}

	task := model.Task{
		Title:          in.Title,
		Description:    in.Description,
		Status:         in.Status,
		EstimatedHours: in.EstimatedHours,
		ProjectID:      project.ID,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &task, nil
}

// ListTasks returns the tasks of a project of the tenant
func (s *ProjectService) ListTasks(ctx context.Context, tenantID, projectID string) ([]model.Task, error) {
	if _, err := s.find(ctx, tenantID, projectID); err != nil {
		return nil, err
	}

	tasks := []model.Task{}
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *ProjectService) find(ctx context.Context, tenantID, id string) (*model.Project, error) {
	var project model.Project
	if err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&project).Error; err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Project with ID %s not found", id)
		}
		return nil, fmt.Errorf("find project: %w", err)
	}
	return &project, nil
}

func clientPayload(client *model.Client) map[string]interface{} {
	if client == nil {
		return nil
	}
	return map[string]interface{}{
		"id":      client.ID,
		"name":    client.Name,
		"email":   client.Email,
		"company": client.Company,
	}
}
