package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/apperror"
	"github.com/Ealanisln/alanis-backend/internal/integration/n8n"
	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"github.com/Ealanisln/alanis-backend/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minEntryHours = 0.1

	hoursWarningPercentage  = 80.0
	lowHoursThreshold       = 10.0
	lowHoursPercentageLimit = 20.0
)

// TimeEntryInput holds the fields of a new time entry
type TimeEntryInput struct {
	Description string
	Hours       float64
	Date        time.Time
	ProjectID   string
	TaskID      *string
	Notes       *string
	HourlyRate  *decimal.Decimal
	Billable    *bool
}

// TimeEntryPatch holds a partial time entry update
type TimeEntryPatch struct {
	Description *string
	Hours       *float64
	Date        *time.Time
	ProjectID   *string
	TaskID      *string
	Notes       *string
	HourlyRate  *decimal.Decimal
	Billable    *bool
}

// TimeEntryQuery filters the caller's own entries
type TimeEntryQuery struct {
	PageRequest
	ProjectID string
	StartDate *time.Time
	EndDate   *time.Time
	Search    string
}

// TimeEntryList is a page of time entries
type TimeEntryList struct {
	Data []model.TimeEntry `json:"data"`
	Meta Pagination        `json:"meta"`
}

// UserHours is the time logged by one user
type UserHours struct {
	UserID   string  `json:"userId"`
	UserName string  `json:"userName"`
	Hours    float64 `json:"hours"`
}

// ProjectTimeReport summarizes the hours of a project
type ProjectTimeReport struct {
	ProjectID      string             `json:"projectId"`
	ProjectName    string             `json:"projectName"`
	TotalQuoted    float64            `json:"totalQuoted"`
	TotalUsed      float64            `json:"totalUsed"`
	Remaining      float64            `json:"remaining"`
	PercentageUsed float64            `json:"percentageUsed"`
	Entries        []model.TimeEntry  `json:"entries"`
	ByUser         []UserHours        `json:"byUser"`
	ByDate         map[string]float64 `json:"byDate"`
}

// TimeTrackingService records time against projects and keeps each
// project's usedHours equal to the sum of its entries.
type TimeTrackingService struct {
	db        *gorm.DB
	workflows WorkflowTrigger
}

// NewTimeTrackingService creates a TimeTrackingService
func NewTimeTrackingService(db *gorm.DB, workflows WorkflowTrigger) *TimeTrackingService {
	if workflows == nil {
		workflows = NoopTrigger{}
	}
	return &TimeTrackingService{db: db, workflows: workflows}
}

// recomputeUsedHours sets used_hours to the aggregate of the project's
// entries in a single statement.
func recomputeUsedHours(tx *gorm.DB, projectID string) error {
	sum := tx.Model(&model.TimeEntry{}).
		Select("COALESCE(SUM(hours), 0)").
		Where("project_id = ?", projectID)

	err := tx.Model(&model.Project{}).
		Where("id = ?", projectID).
		Update("used_hours", sum).Error
	if err != nil {
		return fmt.Errorf("recompute used hours: %w", err)
	}
	return nil
}

// tenantProjectIDs is a subquery of the ids of the tenant's projects
func tenantProjectIDs(db *gorm.DB, tenantID string) *gorm.DB {
	return db.Model(&model.Project{}).Select("id").Where("tenant_id = ?", tenantID)
}

func findTenantProject(tx *gorm.DB, tenantID, projectID string) (*model.Project, error) {
	var project model.Project
	if err := tx.Where("id = ? AND tenant_id = ?", projectID, tenantID).First(&project).Error; err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Project not found")
		}
		return nil, fmt.Errorf("find project: %w", err)
	}
	return &project, nil
}

func ensureTaskInProject(tx *gorm.DB, taskID, projectID string) error {
	var count int64
	if err := tx.Model(&model.Task{}).Where("id = ? AND project_id = ?", taskID, projectID).Count(&count).Error; err != nil {
		return fmt.Errorf("find task: %w", err)
	}
	if count == 0 {
		return apperror.NotFound("Task not found")
	}
	return nil
}

// Create logs time for the actor on a project of the actor's tenant
func (s *TimeTrackingService) Create(ctx context.Context, actor Actor, in TimeEntryInput) (*model.TimeEntry, error) {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return nil, apperror.BadRequest("description is required")
	}
	if in.Hours < minEntryHours {
		return nil, apperror.BadRequest("hours must be at least %.1f", minEntryHours)
	}
	if strings.TrimSpace(in.ProjectID) == "" {
		return nil, apperror.BadRequest("projectId is required")
	}
	if in.Date.IsZero() {
		return nil, apperror.BadRequest("date is required")
	}
	if in.HourlyRate != nil && in.HourlyRate.IsNegative() {
		return nil, apperror.BadRequest("hourlyRate must not be negative")
	}

	billable := true
	if in.Billable != nil {
		billable = *in.Billable
	}

	entry := model.TimeEntry{
		Description: in.Description,
		Hours:       in.Hours,
		Date:        in.Date,
		Billable:    billable,
		Notes:       in.Notes,
		ProjectID:   in.ProjectID,
		TaskID:      in.TaskID,
		UserID:      actor.UserID,
	}
	if in.HourlyRate != nil {
		entry.HourlyRate = decimal.NewNullDecimal(*in.HourlyRate)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findTenantProject(tx, actor.TenantID, in.ProjectID); err != nil {
			return err
		}
		if in.TaskID != nil && *in.TaskID != "" {
			if err := ensureTaskInProject(tx, *in.TaskID, in.ProjectID); err != nil {
				return err
			}
		} else {
			entry.TaskID = nil
		}

		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("create time entry: %w", err)
		}
		return recomputeUsedHours(tx, in.ProjectID)
	})
	if err != nil {
		return nil, err
	}
	prometheus.RecordHoursTracked(entry.Hours)

	created, err := s.loadEntry(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	s.notifyTimeTracked(ctx, created)
	return created, nil
}

// Update changes an entry authored by the actor. Moving an entry to another
// project recomputes the hours of both projects.
func (s *TimeTrackingService) Update(ctx context.Context, actor Actor, id string, patch TimeEntryPatch) (*model.TimeEntry, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry model.TimeEntry
		err := tx.Where("id = ? AND user_id = ?", id, actor.UserID).
			Where("project_id IN (?)", tenantProjectIDs(tx, actor.TenantID)).
			First(&entry).Error
		if err != nil {
			if isNotFound(err) {
				return apperror.NotFound("Time entry not found")
			}
			return fmt.Errorf("find time entry: %w", err)
		}

		updates := map[string]interface{}{}
		if patch.Description != nil {
			description := strings.TrimSpace(*patch.Description)
			if description == "" {
				return apperror.BadRequest("description must not be empty")
			}
			updates["description"] = description
		}
		if patch.Hours != nil {
			if *patch.Hours < minEntryHours {
				return apperror.BadRequest("hours must be at least %.1f", minEntryHours)
			}
			updates["hours"] = *patch.Hours
		}
		if patch.Date != nil {
			updates["date"] = *patch.Date
		}
		if patch.Notes != nil {
			updates["notes"] = *patch.Notes
		}
		if patch.HourlyRate != nil {
			if patch.HourlyRate.IsNegative() {
				return apperror.BadRequest("hourlyRate must not be negative")
			}
			updates["hourly_rate"] = decimal.NewNullDecimal(*patch.HourlyRate)
		}
		if patch.Billable != nil {
			updates["billable"] = *patch.Billable
		}

		targetProject := entry.ProjectID
		if patch.ProjectID != nil && *patch.ProjectID != entry.ProjectID {
			if _, err := findTenantProject(tx, actor.TenantID, *patch.ProjectID); err != nil {
				return err
			}
			targetProject = *patch.ProjectID
			updates["project_id"] = targetProject
			if patch.TaskID == nil {
				// tasks belong to the old project
				updates["task_id"] = gorm.Expr("NULL")
			}
		}
		if patch.TaskID != nil {
			if *patch.TaskID == "" {
				updates["task_id"] = gorm.Expr("NULL")
			} else {
				if err := ensureTaskInProject(tx, *patch.TaskID, targetProject); err != nil {
					return err
				}
				updates["task_id"] = *patch.TaskID
			}
		}

		if len(updates) == 0 {
			return nil
		}
		// Updates writes the new project_id back into entry
		sourceProject := entry.ProjectID
		if err := tx.Model(&entry).Updates(updates).Error; err != nil {
			return fmt.Errorf("update time entry: %w", err)
		}

		if err := recomputeUsedHours(tx, sourceProject); err != nil {
			return err
		}
		if targetProject != sourceProject {
			return recomputeUsedHours(tx, targetProject)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadEntry(ctx, id)
}

// Delete removes an entry authored by the actor and recomputes its project
func (s *TimeTrackingService) Delete(ctx context.Context, actor Actor, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry model.TimeEntry
		err := tx.Where("id = ? AND user_id = ?", id, actor.UserID).
			Where("project_id IN (?)", tenantProjectIDs(tx, actor.TenantID)).
			First(&entry).Error
		if err != nil {
			if isNotFound(err) {
				return apperror.NotFound("Time entry not found")
			}
			return fmt.Errorf("find time entry: %w", err)
		}

		if err := tx.Delete(&entry).Error; err != nil {
			return fmt.Errorf("delete time entry: %w", err)
		}
		return recomputeUsedHours(tx, entry.ProjectID)
	})
}

// ProjectReport summarizes a project's hours by user and by day
func (s *TimeTrackingService) ProjectReport(ctx context.Context, tenantID, projectID string) (*ProjectTimeReport, error) {
	db := s.db.WithContext(ctx)
	project, err := findTenantProject(db, tenantID, projectID)
	if err != nil {
		return nil, err
	}

	entries := []model.TimeEntry{}
	err = db.
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "first_name", "last_name") }).
		Preload("Task", func(db *gorm.DB) *gorm.DB { return db.Select("id", "title") }).
		Where("project_id = ?", project.ID).
		Order("date DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}

	report := &ProjectTimeReport{
		ProjectID:      project.ID,
		ProjectName:    project.Name,
		TotalQuoted:    project.QuotedHours,
		TotalUsed:      project.UsedHours,
		Remaining:      project.RemainingHours(),
		PercentageUsed: round2(project.PercentageUsed()),
		Entries:        entries,
		ByUser:         []UserHours{},
		ByDate:         map[string]float64{},
	}

	userIndex := map[string]int{}
	for _, entry := range entries {
		idx, ok := userIndex[entry.UserID]
		if !ok {
			name := ""
			if entry.User != nil {
				name = entry.User.FullName()
			}
			report.ByUser = append(report.ByUser, UserHours{UserID: entry.UserID, UserName: name})
			idx = len(report.ByUser) - 1
			userIndex[entry.UserID] = idx
		}
		report.ByUser[idx].Hours += entry.Hours
		report.ByDate[entry.Date.UTC().Format("2006-01-02")] += entry.Hours
	}
	return report, nil
}

// MyEntries returns a page of the actor's own entries
func (s *TimeTrackingService) MyEntries(ctx context.Context, actor Actor, q TimeEntryQuery) (*TimeEntryList, error) {
	page := q.PageRequest.normalize()
	db := s.db.WithContext(ctx)

	query := db.Model(&model.TimeEntry{}).
		Where("user_id = ?", actor.UserID).
		Where("project_id IN (?)", tenantProjectIDs(db, actor.TenantID))
	if q.ProjectID != "" {
		query = query.Where("project_id = ?", q.ProjectID)
	}
	if q.StartDate != nil {
		query = query.Where("date >= ?", *q.StartDate)
	}
	if q.EndDate != nil {
		query = query.Where("date <= ?", endOfDay(*q.EndDate))
	}
	if q.Search != "" {
		query = query.Where("LOWER(description) LIKE ?", likePattern(q.Search))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count time entries: %w", err)
	}

	entries := []model.TimeEntry{}
	err := query.
		Preload("Project", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name") }).
		Preload("Task", func(db *gorm.DB) *gorm.DB { return db.Select("id", "title") }).
		Order("date DESC").
		Offset(page.offset()).
		Limit(page.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}

	return &TimeEntryList{Data: entries, Meta: newPagination(page, total)}, nil
}

func (s *TimeTrackingService) loadEntry(ctx context.Context, id string) (*model.TimeEntry, error) {
	var entry model.TimeEntry
	err := s.db.WithContext(ctx).
		Preload("Project").
		Preload("Project.Client").
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "first_name", "last_name", "email") }).
		Preload("Task", func(db *gorm.DB) *gorm.DB { return db.Select("id", "title") }).
		Where("id = ?", id).
		First(&entry).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("Time entry not found")
		}
		return nil, fmt.Errorf("load time entry: %w", err)
	}
	return &entry, nil
}

// notifyTimeTracked runs the post-commit side effects of a new entry
func (s *TimeTrackingService) notifyTimeTracked(ctx context.Context, entry *model.TimeEntry) {
	project := entry.Project
	if project == nil {
		return
	}
	log := logger.Ctx(ctx).With(zap.String("project_id", project.ID))

	percentage := project.PercentageUsed()
	if percentage >= hoursWarningPercentage {
		log.Warn("Project hours usage is high",
			zap.Float64("percentage_used", round2(percentage)),
			zap.Float64("used_hours", project.UsedHours),
			zap.Float64("quoted_hours", project.QuotedHours))
	}

	tenant := tenantInfo(s.db.WithContext(ctx), project.TenantID)
	remaining := project.RemainingHours()

	s.workflows.Trigger(ctx, n8n.WorkflowTimeTracked, tenant, map[string]interface{}{
		"timeEntry": map[string]interface{}{
			"id":          entry.ID,
			"description": entry.Description,
			"hours":       entry.Hours,
			"date":        entry.Date,
		},
		"project": map[string]interface{}{
			"id":             project.ID,
			"name":           project.Name,
			"remainingHours": remaining,
			"usedHours":      project.UsedHours,
			"quotedHours":    project.QuotedHours,
		},
		"client": clientPayload(project.Client),
	})

	if project.QuotedHours <= 0 || remaining >= lowHoursThreshold {
		return
	}
	remainingPercentage := remaining / project.QuotedHours * 100
	if remainingPercentage > lowHoursPercentageLimit {
		return
	}

	log.Info("Project is running low on hours", zap.Float64("remaining_hours", remaining))
	s.workflows.Trigger(ctx, n8n.WorkflowLowHoursAlert, tenant, map[string]interface{}{
		"project": map[string]interface{}{
			"id":                  project.ID,
			"name":                project.Name,
			"remainingHours":      remaining,
			"remainingPercentage": int(math.Round(remainingPercentage)),
			"quotedHours":         project.QuotedHours,
			"usedHours":           project.UsedHours,
		},
		"client": clientPayload(project.Client),
	})
}
