package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/apperror"
	"github.com/Ealanisln/alanis-backend/internal/integration/n8n"
	"github.com/Ealanisln/alanis-backend/internal/model"
)

type timeTrackingFixture struct {
	svc     *TimeTrackingService
	trigger *recordingTrigger
	actor   Actor
	tenant  model.Tenant
	project model.Project
}

func newTimeTrackingFixture(t *testing.T, quotedHours float64) (*timeTrackingFixture, func() model.Project) {
	t.Helper()

	db := newTestDB(t)
	tenant := createTestTenant(t, db, "alanis-web-dev", true)
	user := createTestUser(t, db, tenant, "dev@alanis.dev", "secret1", model.RoleUser)
	client := createTestClient(t, db, tenant, "client@acme.test")
	project := createTestProject(t, db, client, quotedHours, "75.00")

	trigger := &recordingTrigger{}
	f := &timeTrackingFixture{
		svc:     NewTimeTrackingService(db, trigger),
		trigger: trigger,
		actor:   Actor{UserID: user.ID, TenantID: tenant.ID, Role: user.Role},
		tenant:  tenant,
		project: project,
	}
	return f, func() model.Project { return reloadProject(t, db, project.ID) }
}

func (f *timeTrackingFixture) log(t *testing.T, hours float64, description string) *model.TimeEntry {
	t.Helper()

	entry, err := f.svc.Create(context.Background(), f.actor, TimeEntryInput{
		Description: description,
		Hours:       hours,
		Date:        utcNow(),
		ProjectID:   f.project.ID,
	})
	if err != nil {
		t.Fatalf("log %.1fh: %v", hours, err)
	}
	return entry
}

func assertHours(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %.2f used hours, got %.4f", want, got)
	}
}

func TestUsedHoursEqualsSumOfEntries(t *testing.T) {
	f, reload := newTimeTrackingFixture(t, 40)

	f.log(t, 1.5, "Setup")
	f.log(t, 2.0, "Layout")
	f.log(t, 0.5, "Review")

	assertHours(t, reload().UsedHours, 4.0)
}

func TestDeletingEntryRecomputesUsedHours(t *testing.T) {
	f, reload := newTimeTrackingFixture(t, 40)

	f.log(t, 1.5, "Setup")
	second := f.log(t, 2.0, "Layout")

	if err := f.svc.Delete(context.Background(), f.actor, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	assertHours(t, reload().UsedHours, 1.5)
}

func TestUpdatingEntryRecomputesUsedHours(t *testing.T) {
	f, reload := newTimeTrackingFixture(t, 40)

	entry := f.log(t, 1.5, "Setup")
	hours := 3.25
	updated, err := f.svc.Update(context.Background(), f.actor, entry.ID, TimeEntryPatch{Hours: &hours})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Hours != 3.25 {
		t.Fatalf("expected updated hours, got %v", updated.Hours)
	}
	assertHours(t, reload().UsedHours, 3.25)
}

func TestMovingEntryRecomputesBothProjects(t *testing.T) {
	f, reload := newTimeTrackingFixture(t, 40)
	db := f.svc.db

	var client model.Client
	if err := db.Where("id = ?", f.project.ClientID).First(&client).Error; err != nil {
		t.Fatalf("load client: %v", err)
	}
	target := createTestProject(t, db, client, 10, "90.00")

	entry := f.log(t, 2.0, "Setup")
	f.log(t, 1.0, "Stays")

	if _, err := f.svc.Update(context.Background(), f.actor, entry.ID, TimeEntryPatch{ProjectID: &target.ID}); err != nil {
		t.Fatalf("move entry: %v", err)
	}
	assertHours(t, reload().UsedHours, 1.0)
	assertHours(t, reloadProject(t, db, target.ID).UsedHours, 2.0)

	for _, id := range []string{f.project.ID, target.ID} {
		var sum float64
		if err := db.Model(&model.TimeEntry{}).Where("project_id = ?", id).
			Select("COALESCE(SUM(hours), 0)").Scan(&sum).Error; err != nil {
			t.Fatalf("sum entries: %v", err)
		}
		assertHours(t, reloadProject(t, db, id).UsedHours, sum)
	}

	// moving it back restores the original split
	if _, err := f.svc.Update(context.Background(), f.actor, entry.ID, TimeEntryPatch{ProjectID: &f.project.ID}); err != nil {
		t.Fatalf("move entry back: %v", err)
	}
	assertHours(t, reload().UsedHours, 3.0)
	assertHours(t, reloadProject(t, db, target.ID).UsedHours, 0)
}

func TestTimeEntryValidation(t *testing.T) {
	f, _ := newTimeTrackingFixture(t, 40)

	tests := []struct {
		name  string
		input TimeEntryInput
		kind  apperror.Kind
	}{
		{"too few hours", TimeEntryInput{Description: "x", Hours: 0.05, Date: utcNow(), ProjectID: f.project.ID}, apperror.KindBadRequest},
		{"missing description", TimeEntryInput{Description: " ", Hours: 1, Date: utcNow(), ProjectID: f.project.ID}, apperror.KindBadRequest},
		{"unknown project", TimeEntryInput{Description: "x", Hours: 1, Date: utcNow(), ProjectID: "missing"}, apperror.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.actor, tt.input)
			assertKind(t, err, tt.kind)
		})
	}
}

func TestTimeEntriesAreTenantScoped(t *testing.T) {
	f, reload := newTimeTrackingFixture(t, 40)
	db := f.svc.db

	other := createTestTenant(t, db, "cherry-pop-design", true)
	outsider := createTestUser(t, db, other, "designer@cherrypop.design", "secret1", model.RoleAdmin)
	outsiderActor := Actor{UserID: outsider.ID, TenantID: other.ID, Role: outsider.Role}

	_, err := f.svc.Create(context.Background(), outsiderActor, TimeEntryInput{
		Description: "sneaky", Hours: 1, Date: utcNow(), ProjectID: f.project.ID,
	})
	assertKind(t, err, apperror.KindNotFound)

	entry := f.log(t, 1.0, "Setup")
	err = f.svc.Delete(context.Background(), outsiderActor, entry.ID)
	assertKind(t, err, apperror.KindNotFound)

	_, err = f.svc.ProjectReport(context.Background(), other.ID, f.project.ID)
	assertKind(t, err, apperror.KindNotFound)

	assertHours(t, reload().UsedHours, 1.0)
}

func TestLowHoursAlertTriggers(t *testing.T) {
	f, _ := newTimeTrackingFixture(t, 40)

	f.log(t, 20, "First half")
	if f.trigger.count(n8n.WorkflowLowHoursAlert) != 0 {
		t.Fatal("expected no low-hours alert with 20h remaining")
	}
	if f.trigger.count(n8n.WorkflowTimeTracked) != 1 {
		t.Fatalf("expected a time-tracked trigger, got %v", f.trigger.workflows())
	}

	// 8h remaining is both below 10h and at 20% of the quote
	f.log(t, 12, "Second part")
	if f.trigger.count(n8n.WorkflowLowHoursAlert) != 1 {
		t.Fatalf("expected a low-hours alert, got %v", f.trigger.workflows())
	}
}

func TestProjectReportAndMyEntries(t *testing.T) {
	f, _ := newTimeTrackingFixture(t, 10)

	f.log(t, 1.5, "Setup")
	f.log(t, 2.5, "Layout")

	report, err := f.svc.ProjectReport(context.Background(), f.tenant.ID, f.project.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	assertHours(t, report.TotalUsed, 4.0)
	assertHours(t, report.Remaining, 6.0)
	if report.PercentageUsed != 40 {
		t.Fatalf("expected 40%% used, got %v", report.PercentageUsed)
	}
	if len(report.ByUser) != 1 || report.ByUser[0].UserName != "Test User" {
		t.Fatalf("unexpected by-user breakdown: %+v", report.ByUser)
	}
	assertHours(t, report.ByDate[utcNow().Format("2006-01-02")], 4.0)

	start := utcNow().Add(-24 * time.Hour)
	list, err := f.svc.MyEntries(context.Background(), f.actor, TimeEntryQuery{StartDate: &start, Search: "lay"})
	if err != nil {
		t.Fatalf("my entries: %v", err)
	}
	if list.Meta.Total != 1 || list.Data[0].Description != "Layout" {
		t.Fatalf("unexpected entries: %+v", list.Meta)
	}
}
