package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Ealanisln/alanis-backend/internal/apperror"
	"github.com/Ealanisln/alanis-backend/internal/integration/invoiceninja"
	"github.com/Ealanisln/alanis-backend/internal/integration/n8n"
	"github.com/Ealanisln/alanis-backend/internal/model"
	"gorm.io/gorm"
)

type fakeGateway struct {
	enabled    bool
	upsertErr  error
	invoiceErr error
	upserts    []invoiceninja.ClientRecord
	invoices   []invoiceninja.InvoiceRequest
}

func (g *fakeGateway) Enabled() bool { return g.enabled }

func (g *fakeGateway) UpsertClient(_ context.Context, record invoiceninja.ClientRecord) (*invoiceninja.ClientRecord, error) {
	g.upserts = append(g.upserts, record)
	if g.upsertErr != nil {
		return nil, g.upsertErr
	}
	record.ID = "remote-client-1"
	return &record, nil
}

func (g *fakeGateway) CreateInvoice(_ context.Context, invoice invoiceninja.InvoiceRequest) (*invoiceninja.Invoice, error) {
	g.invoices = append(g.invoices, invoice)
	if g.invoiceErr != nil {
		return nil, g.invoiceErr
	}
	return &invoiceninja.Invoice{ID: "inv-1", Number: "0001", ClientID: invoice.ClientID}, nil
}

func (g *fakeGateway) Ping(context.Context) error { return nil }

type invoicingFixture struct {
	db      *gorm.DB
	gateway *fakeGateway
	trigger *recordingTrigger
	svc     *InvoicingService
	tenant  model.Tenant
	user    model.User
	client  model.Client
	project model.Project
}

func newInvoicingFixture(t *testing.T) *invoicingFixture {
	t.Helper()

	db := newTestDB(t)
	tenant := createTestTenant(t, db, "alanis-web-dev", true)
	user := createTestUser(t, db, tenant, "dev@alanis.dev", "secret1", model.RoleAdmin)
	client := createTestClient(t, db, tenant, "billing@acme.test")
	project := createTestProject(t, db, client, 40, "75.00")

	gateway := &fakeGateway{enabled: true}
	trigger := &recordingTrigger{}
	return &invoicingFixture{
		db:      db,
		gateway: gateway,
		trigger: trigger,
		svc:     NewInvoicingService(db, gateway, trigger),
		tenant:  tenant,
		user:    user,
		client:  client,
		project: project,
	}
}

func (f *invoicingFixture) entry(t *testing.T, task *model.Task, description string, hours float64, billable, billed bool) model.TimeEntry {
	t.Helper()

	entry := model.TimeEntry{
		Description: description,
		Hours:       hours,
		Date:        utcNow(),
		Billable:    billable,
		Billed:      billed,
		ProjectID:   f.project.ID,
		UserID:      f.user.ID,
	}
	if task != nil {
		entry.TaskID = &task.ID
	}
	if err := f.db.Create(&entry).Error; err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return entry
}

func TestCreateInvoiceGroupsAndBillsEntries(t *testing.T) {
	f := newInvoicingFixture(t)

	task := model.Task{Title: "Homepage", ProjectID: f.project.ID}
	if err := f.db.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	a := f.entry(t, &task, "Hero section", 1.5, true, false)
	b := f.entry(t, &task, "Hero section", 2.0, true, false)
	c := f.entry(t, nil, "Deploy", 0.5, true, false)
	nonBillable := f.entry(t, nil, "Internal sync", 1.0, false, false)
	alreadyBilled := f.entry(t, nil, "Old work", 3.0, true, true)

	result, err := f.svc.CreateInvoice(context.Background(), f.tenant.ID, f.project.ID)
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if result.Invoice.ID != "inv-1" || result.BilledEntries != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if len(f.gateway.upserts) != 1 {
		t.Fatalf("expected the unsynced client to be synced first, got %d upserts", len(f.gateway.upserts))
	}
	upsert := f.gateway.upserts[0]
	if upsert.CustomValue1 != f.client.ID || upsert.CustomValue2 != f.tenant.ID || upsert.CountryID != "840" {
		t.Fatalf("unexpected client record: %+v", upsert)
	}

	if len(f.gateway.invoices) != 1 {
		t.Fatalf("expected one invoice request, got %d", len(f.gateway.invoices))
	}
	req := f.gateway.invoices[0]
	if req.ClientID != "remote-client-1" || req.CustomValue1 != f.project.ID || req.CustomValue2 != f.tenant.ID {
		t.Fatalf("unexpected invoice request: %+v", req)
	}
	want := []invoiceninja.LineItem{
		{ProductKey: "Homepage", Notes: "Hero section", Quantity: 3.5, Cost: 75},
		{ProductKey: "General Development", Notes: "Deploy", Quantity: 0.5, Cost: 75},
	}
	if len(req.LineItems) != len(want) {
		t.Fatalf("expected %d line items, got %+v", len(want), req.LineItems)
	}
	for i := range want {
		if req.LineItems[i] != want[i] {
			t.Fatalf("line %d: expected %+v, got %+v", i, want[i], req.LineItems[i])
		}
	}

	billed := map[string]bool{}
	var entries []model.TimeEntry
	f.db.Find(&entries)
	for _, e := range entries {
		billed[e.ID] = e.Billed
	}
	for _, id := range []string{a.ID, b.ID, c.ID, alreadyBilled.ID} {
		if !billed[id] {
			t.Fatalf("expected entry %s to be billed", id)
		}
	}
	if billed[nonBillable.ID] {
		t.Fatal("expected non-billable entry to stay unbilled")
	}

	var client model.Client
	f.db.Where("id = ?", f.client.ID).First(&client)
	if client.SyncStatus != model.SyncStatusSynced || client.InvoiceNinjaID == nil || client.LastSyncAt == nil {
		t.Fatalf("expected client to be marked synced, got %+v", client)
	}
	if f.trigger.count(n8n.WorkflowInvoiceCreated) != 1 {
		t.Fatalf("expected invoice-created trigger, got %v", f.trigger.workflows())
	}
}

func TestCreateInvoiceWithoutUnbilledEntries(t *testing.T) {
	f := newInvoicingFixture(t)
	f.entry(t, nil, "Old work", 3.0, true, true)

	_, err := f.svc.CreateInvoice(context.Background(), f.tenant.ID, f.project.ID)
	assertKind(t, err, apperror.KindBadRequest)
	if len(f.gateway.invoices) != 0 {
		t.Fatal("expected no invoice request")
	}
}

func TestCreateInvoiceUpstreamFailureLeavesEntriesUnbilled(t *testing.T) {
	f := newInvoicingFixture(t)
	f.gateway.invoiceErr = errors.New("invoice ninja returned 500")
	entry := f.entry(t, nil, "Deploy", 1.0, true, false)

	_, err := f.svc.CreateInvoice(context.Background(), f.tenant.ID, f.project.ID)
	assertKind(t, err, apperror.KindUpstream)

	var stored model.TimeEntry
	f.db.Where("id = ?", entry.ID).First(&stored)
	if stored.Billed {
		t.Fatal("expected entry to stay unbilled after a failed invoice")
	}
}

func TestCreateInvoiceIsTenantScoped(t *testing.T) {
	f := newInvoicingFixture(t)
	other := createTestTenant(t, f.db, "cherry-pop-design", true)
	f.entry(t, nil, "Deploy", 1.0, true, false)

	_, err := f.svc.CreateInvoice(context.Background(), other.ID, f.project.ID)
	assertKind(t, err, apperror.KindNotFound)

	_, err = f.svc.SyncClient(context.Background(), other.ID, f.client.ID)
	assertKind(t, err, apperror.KindNotFound)
}

func TestSyncClientRecordsFailure(t *testing.T) {
	f := newInvoicingFixture(t)
	f.gateway.upsertErr = errors.New("connection refused")

	_, err := f.svc.SyncClient(context.Background(), f.tenant.ID, f.client.ID)
	assertKind(t, err, apperror.KindUpstream)

	var client model.Client
	f.db.Where("id = ?", f.client.ID).First(&client)
	if client.SyncStatus != model.SyncStatusError {
		t.Fatalf("expected ERROR sync status, got %s", client.SyncStatus)
	}
}

func TestInvoicingUnavailableWhenNotConfigured(t *testing.T) {
	f := newInvoicingFixture(t)
	f.gateway.enabled = false

	_, err := f.svc.SyncClient(context.Background(), f.tenant.ID, f.client.ID)
	assertKind(t, err, apperror.KindUnavailable)

	_, err = f.svc.CreateInvoice(context.Background(), f.tenant.ID, f.project.ID)
	assertKind(t, err, apperror.KindUnavailable)
}
