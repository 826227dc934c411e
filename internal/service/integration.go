package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/integration/n8n"
	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	weeklyReportWindow = 7 * 24 * time.Hour
	topProjectsLimit   = 5

	connectionOK      = "OK"
	connectionError   = "ERROR"
	connectionPartial = "PARTIAL"
)

// ConnectionChecker probes an outbound integration
type ConnectionChecker interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

// ConnectionStatus is the result of probing one integration
type ConnectionStatus struct {
	Service   string `json:"service,omitempty"`
	Connected bool   `json:"connected"`
	Status    string `json:"status"`
}

// IntegrationsStatus is the combined probe result
type IntegrationsStatus struct {
	Integrations map[string]ConnectionStatus `json:"integrations"`
	Overall      string                      `json:"overall"`
}

// ProjectHours is one row of the weekly top projects
type ProjectHours struct {
	Name   string  `json:"name"`
	Hours  float64 `json:"hours"`
	Client string  `json:"client"`
}

// MemberActivity is one row of the weekly team activity
type MemberActivity struct {
	UserName string  `json:"userName"`
	Hours    float64 `json:"hours"`
	Projects int     `json:"projects"`
}

// WeeklySummary aggregates a tenant's time entries of the last seven days
type WeeklySummary struct {
	PeriodStart   time.Time        `json:"periodStart"`
	PeriodEnd     time.Time        `json:"periodEnd"`
	TotalHours    float64          `json:"totalHours"`
	TotalProjects int              `json:"totalProjects"`
	TotalClients  int              `json:"totalClients"`
	TopProjects   []ProjectHours   `json:"topProjects"`
	TeamActivity  []MemberActivity `json:"teamActivity"`
}

// IntegrationService runs the weekly report and probes integrations
type IntegrationService struct {
	db           *gorm.DB
	workflows    WorkflowTrigger
	invoiceNinja ConnectionChecker
	n8n          ConnectionChecker
	now          func() time.Time
}

// NewIntegrationService creates an IntegrationService
func NewIntegrationService(db *gorm.DB, workflows WorkflowTrigger, invoiceNinja, n8nClient ConnectionChecker) *IntegrationService {
	if workflows == nil {
		workflows = NoopTrigger{}
	}
	return &IntegrationService{
		db:           db,
		workflows:    workflows,
		invoiceNinja: invoiceNinja,
		n8n:          n8nClient,
		now:          time.Now,
	}
}

// WeeklyReport summarizes the last seven days of the tenant and hands the
// summary to the weekly-report workflow.
func (s *IntegrationService) WeeklyReport(ctx context.Context, tenantID string) (*WeeklySummary, error) {
	end := s.now()
	start := end.Add(-weeklyReportWindow)
	db := s.db.WithContext(ctx)

	entries := []model.TimeEntry{}
	err := db.
		Preload("Project", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "client_id") }).
		Preload("Project.Client", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name") }).
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "first_name", "last_name") }).
		Where("project_id IN (?)", tenantProjectIDs(db, tenantID)).
		Where("date >= ?", start).
		Order("date ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list weekly entries: %w", err)
	}

	summary := summarizeWeek(entries)
	summary.PeriodStart = start
	summary.PeriodEnd = end

	s.workflows.Trigger(ctx, n8n.WorkflowWeeklyReport, tenantInfo(db, tenantID), summary)
	logger.Ctx(ctx).Info("Weekly report generated",
		zap.String("tenant_id", tenantID),
		zap.Int("entries", len(entries)),
		zap.Float64("total_hours", summary.TotalHours))
	return summary, nil
}

func summarizeWeek(entries []model.TimeEntry) *WeeklySummary {
	summary := &WeeklySummary{TopProjects: []ProjectHours{}, TeamActivity: []MemberActivity{}}

	projectIndex := map[string]int{}
	clients := map[string]struct{}{}
	memberIndex := map[string]int{}
	memberProjects := map[string]map[string]struct{}{}

	for _, entry := range entries {
		summary.TotalHours += entry.Hours

		idx, ok := projectIndex[entry.ProjectID]
		if !ok {
			row := ProjectHours{}
			if entry.Project != nil {
				row.Name = entry.Project.Name
				if entry.Project.Client != nil {
					row.Client = entry.Project.Client.Name
					clients[entry.Project.Client.ID] = struct{}{}
				}
			}
			summary.TopProjects = append(summary.TopProjects, row)
			idx = len(summary.TopProjects) - 1
			projectIndex[entry.ProjectID] = idx
		}
		summary.TopProjects[idx].Hours += entry.Hours

		midx, ok := memberIndex[entry.UserID]
		if !ok {
			name := ""
			if entry.User != nil {
				name = entry.User.FullName()
			}
			summary.TeamActivity = append(summary.TeamActivity, MemberActivity{UserName: name})
			midx = len(summary.TeamActivity) - 1
			memberIndex[entry.UserID] = midx
			memberProjects[entry.UserID] = map[string]struct{}{}
		}
		summary.TeamActivity[midx].Hours += entry.Hours
		memberProjects[entry.UserID][entry.ProjectID] = struct{}{}
		summary.TeamActivity[midx].Projects = len(memberProjects[entry.UserID])
	}

	summary.TotalProjects = len(projectIndex)
	summary.TotalClients = len(clients)

	sort.SliceStable(summary.TopProjects, func(i, j int) bool {
		return summary.TopProjects[i].Hours > summary.TopProjects[j].Hours
	})
	if len(summary.TopProjects) > topProjectsLimit {
		summary.TopProjects = summary.TopProjects[:topProjectsLimit]
	}
	return summary
}

func probe(ctx context.Context, service string, checker ConnectionChecker) ConnectionStatus {
	status := ConnectionStatus{Service: service, Status: connectionError}
	if checker == nil || !checker.Enabled() {
		return status
	}
	if err := checker.Ping(ctx); err != nil {
		logger.Ctx(ctx).Warn("Integration probe failed", zap.String("service", service), zap.Error(err))
		return status
	}
	status.Connected = true
	status.Status = connectionOK
	return status
}

// TestInvoiceNinja probes Invoice Ninja
func (s *IntegrationService) TestInvoiceNinja(ctx context.Context) ConnectionStatus {
	return probe(ctx, "Invoice Ninja", s.invoiceNinja)
}

// TestN8N probes n8n
func (s *IntegrationService) TestN8N(ctx context.Context) ConnectionStatus {
	return probe(ctx, "n8n", s.n8n)
}

// Status probes every integration concurrently
func (s *IntegrationService) Status(ctx context.Context) IntegrationsStatus {
	var invoiceNinja, n8nStatus ConnectionStatus

	var g errgroup.Group
	g.Go(func() error {
		invoiceNinja = s.TestInvoiceNinja(ctx)
		return nil
	})
	g.Go(func() error {
		n8nStatus = s.TestN8N(ctx)
		return nil
	})
	_ = g.Wait()

	overall := connectionPartial
	if invoiceNinja.Connected && n8nStatus.Connected {
		overall = connectionOK
	}
	invoiceNinja.Service = ""
	n8nStatus.Service = ""
	return IntegrationsStatus{
		Integrations: map[string]ConnectionStatus{
			"invoice-ninja": invoiceNinja,
			"n8n":           n8nStatus,
		},
		Overall: overall,
	}
}
