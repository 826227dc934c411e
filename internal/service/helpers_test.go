package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/apperror"
	"github.com/Ealanisln/alanis-backend/internal/integration/n8n"
	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/pkg/config"
	"github.com/Ealanisln/alanis-backend/pkg/database"
	"github.com/Ealanisln/alanis-backend/pkg/jwtutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	databasePath := filepath.Join(t.TempDir(), "alanis-service-test.db")
	db, err := database.Open(config.DBConfig{
		URL:      "sqlite://" + databasePath + "?_pragma=busy_timeout(5000)",
		LogLevel: "silent",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close(db)
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestTokens() *jwtutil.JWTUtil {
	return jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:        "test-access-secret",
		RefreshSigningKey: "test-refresh-secret",
		AccessTTL:         15 * time.Minute,
		RefreshTTL:        7 * 24 * time.Hour,
		Issuer:            "alanis-backend-test",
	})
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func createTestTenant(t *testing.T, db *gorm.DB, slug string, active bool) model.Tenant {
	t.Helper()

	tenant := model.Tenant{
		Name:     slug,
		Slug:     slug,
		Type:     model.TenantTypeAlanisWebDev,
		IsActive: active,
	}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return tenant
}

func createTestUser(t *testing.T, db *gorm.DB, tenant model.Tenant, email, password string, role model.Role) model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := model.User{
		Email:     email,
		Password:  string(hash),
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
		IsActive:  true,
		TenantID:  tenant.ID,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func createTestClient(t *testing.T, db *gorm.DB, tenant model.Tenant, email string) model.Client {
	t.Helper()

	client := model.Client{
		Name:     "Acme",
		Email:    email,
		TenantID: tenant.ID,
	}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client
}

func createTestProject(t *testing.T, db *gorm.DB, client model.Client, quotedHours float64, rate string) model.Project {
	t.Helper()

	project := model.Project{
		Name:        "Website",
		Status:      model.ProjectStatusActive,
		QuotedHours: quotedHours,
		HourlyRate:  decimal.RequireFromString(rate),
		ClientID:    client.ID,
		TenantID:    client.TenantID,
	}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	return project
}

func reloadProject(t *testing.T, db *gorm.DB, id string) model.Project {
	t.Helper()

	var project model.Project
	if err := db.Where("id = ?", id).First(&project).Error; err != nil {
		t.Fatalf("reload project: %v", err)
	}
	return project
}

func assertKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if !apperror.IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

type triggeredWorkflow struct {
	Workflow string
	Tenant   n8n.Tenant
	Data     interface{}
}

type recordingTrigger struct {
	mu    sync.Mutex
	calls []triggeredWorkflow
}

func (r *recordingTrigger) Trigger(_ context.Context, workflow string, tenant n8n.Tenant, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, triggeredWorkflow{Workflow: workflow, Tenant: tenant, Data: data})
}

func (r *recordingTrigger) workflows() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.calls))
	for _, call := range r.calls {
		names = append(names, call.Workflow)
	}
	return names
}

func (r *recordingTrigger) count(workflow string) int {
	n := 0
	for _, name := range r.workflows() {
		if name == workflow {
			n++
		}
	}
	return n
}
