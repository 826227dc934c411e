package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/integration/n8n"
	"github.com/Ealanisln/alanis-backend/internal/model"
)

type stubChecker struct {
	enabled bool
	err     error
}

func (s stubChecker) Enabled() bool { return s.enabled }

func (s stubChecker) Ping(context.Context) error { return s.err }

func TestIntegrationStatus(t *testing.T) {
	tests := []struct {
		name         string
		invoiceNinja ConnectionChecker
		n8n          ConnectionChecker
		overall      string
	}{
		{"both reachable", stubChecker{enabled: true}, stubChecker{enabled: true}, "OK"},
		{"n8n down", stubChecker{enabled: true}, stubChecker{enabled: true, err: errors.New("timeout")}, "PARTIAL"},
		{"invoice ninja not configured", stubChecker{}, stubChecker{enabled: true}, "PARTIAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewIntegrationService(nil, nil, tt.invoiceNinja, tt.n8n)
			status := svc.Status(context.Background())
			if status.Overall != tt.overall {
				t.Fatalf("expected overall %s, got %s", tt.overall, status.Overall)
			}
			if len(status.Integrations) != 2 {
				t.Fatalf("expected two integrations, got %+v", status.Integrations)
			}
		})
	}

	svc := NewIntegrationService(nil, nil, stubChecker{}, stubChecker{enabled: true})
	if got := svc.TestInvoiceNinja(context.Background()); got.Connected || got.Status != "ERROR" || got.Service != "Invoice Ninja" {
		t.Fatalf("unexpected invoice ninja probe: %+v", got)
	}
	if got := svc.TestN8N(context.Background()); !got.Connected || got.Status != "OK" {
		t.Fatalf("unexpected n8n probe: %+v", got)
	}
}

func TestWeeklyReportSummarizesLastSevenDays(t *testing.T) {
	db := newTestDB(t)
	tenant := createTestTenant(t, db, "alanis-web-dev", true)
	other := createTestTenant(t, db, "cherry-pop-design", true)
	alice := createTestUser(t, db, tenant, "alice@alanis.dev", "secret1", model.RoleUser)
	bob := createTestUser(t, db, tenant, "bob@alanis.dev", "secret1", model.RoleUser)
	outsider := createTestUser(t, db, other, "eve@cherrypop.design", "secret1", model.RoleUser)

	acme := createTestClient(t, db, tenant, "acme@acme.test")
	site := createTestProject(t, db, acme, 40, "75.00")
	shop := createTestProject(t, db, acme, 20, "75.00")
	foreign := createTestProject(t, db, createTestClient(t, db, other, "x@other.test"), 10, "50.00")

	now := utcNow()
	log := func(user model.User, project model.Project, hours float64, at time.Time) {
		t.Helper()
		entry := model.TimeEntry{Description: "work", Hours: hours, Date: at, Billable: true, ProjectID: project.ID, UserID: user.ID}
		if err := db.Create(&entry).Error; err != nil {
			t.Fatalf("create entry: %v", err)
		}
	}
	log(alice, site, 3, now.Add(-time.Hour))
	log(alice, shop, 1, now.Add(-2*time.Hour))
	log(bob, site, 2, now.Add(-48*time.Hour))
	log(bob, site, 5, now.Add(-10*24*time.Hour))
	log(outsider, foreign, 8, now.Add(-time.Hour))

	trigger := &recordingTrigger{}
	svc := NewIntegrationService(db, trigger, nil, nil)
	svc.now = utcNow

	summary, err := svc.WeeklyReport(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("weekly report: %v", err)
	}
	if summary.TotalHours != 6 || summary.TotalProjects != 2 || summary.TotalClients != 1 {
		t.Fatalf("unexpected totals: %+v", summary)
	}
	if len(summary.TopProjects) != 2 || summary.TopProjects[0].Hours != 5 || summary.TopProjects[0].Client != "Acme" {
		t.Fatalf("unexpected top projects: %+v", summary.TopProjects)
	}
	// members appear in order of their first entry: bob's is two days old
	wantActivity := []MemberActivity{
		{UserName: "Test User", Hours: 2, Projects: 1},
		{UserName: "Test User", Hours: 4, Projects: 2},
	}
	if len(summary.TeamActivity) != len(wantActivity) {
		t.Fatalf("unexpected team activity: %+v", summary.TeamActivity)
	}
	for i, want := range wantActivity {
		if summary.TeamActivity[i] != want {
			t.Fatalf("member %d: expected %+v, got %+v", i, want, summary.TeamActivity[i])
		}
	}
	if trigger.count(n8n.WorkflowWeeklyReport) != 1 {
		t.Fatalf("expected weekly-report trigger, got %v", trigger.workflows())
	}
}

func TestSummarizeWeekKeepsTopFive(t *testing.T) {
	entries := []model.TimeEntry{}
	for i := 0; i < 7; i++ {
		id := string(rune('a' + i))
		entries = append(entries, model.TimeEntry{
			ProjectID: id,
			UserID:    "u1",
			Hours:     float64(i + 1),
			Project:   &model.Project{ID: id, Name: "p" + id},
			User:      &model.User{FirstName: "Ana"},
		})
	}

	summary := summarizeWeek(entries)
	if len(summary.TopProjects) != 5 {
		t.Fatalf("expected five top projects, got %d", len(summary.TopProjects))
	}
	if summary.TopProjects[0].Hours != 7 || summary.TopProjects[4].Hours != 3 {
		t.Fatalf("expected projects sorted by hours, got %+v", summary.TopProjects)
	}
	if summary.TotalProjects != 7 || summary.TeamActivity[0].Projects != 7 || summary.TeamActivity[0].UserName != "Ana" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
