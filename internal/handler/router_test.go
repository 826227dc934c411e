package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/internal/service"
	"github.com/Ealanisln/alanis-backend/pkg/config"
	"github.com/Ealanisln/alanis-backend/pkg/database"
	"github.com/Ealanisln/alanis-backend/pkg/jwtutil"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testApp struct {
	e      *echo.Echo
	db     *gorm.DB
	tenant model.Tenant
}

func newTestApp(t *testing.T, rateLimit float64) *testApp {
	t.Helper()

	databasePath := filepath.Join(t.TempDir(), "alanis-handler-test.db")
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

	tenant := model.Tenant{Name: "Alanis Web Dev", Slug: "alanis-web-dev", Type: model.TenantTypeAlanisWebDev, IsActive: true}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	tokens := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:        "test-access-secret",
		RefreshSigningKey: "test-refresh-secret",
		AccessTTL:         15 * time.Minute,
		RefreshTTL:        7 * 24 * time.Hour,
	})

	tenants := service.NewTenantService(db, tenant.ID)
	workflows := service.NoopTrigger{}
	services := Services{
		Auth:         service.NewAuthService(db, tokens, service.WithBcryptCost(bcrypt.MinCost)),
		Tenants:      tenants,
		Clients:      service.NewClientService(db),
		Projects:     service.NewProjectService(db, workflows),
		TimeTracking: service.NewTimeTrackingService(db, workflows),
		Quotes:       service.NewQuoteService(db, tenants, workflows),
		Contacts:     service.NewContactService(db, tenants),
		Invoicing:    service.NewInvoicingService(db, nil, workflows),
		Integrations: service.NewIntegrationService(db, workflows, nil, nil),
	}

	e := NewRouter(RouterConfig{
		DB:              db,
		Tokens:          tokens,
		Logger:          zap.NewNop(),
		AllowedOrigins:  []string{"http://localhost:3000"},
		PublicRateLimit: rateLimit,
	}, services)

	return &testApp{e: e, db: db, tenant: tenant}
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	decoded := map[string]interface{}{}
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return rec, decoded
}

func (a *testApp) createUser(t *testing.T, tenant model.Tenant, email string, role model.Role) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := model.User{
		Email:     email,
		Password:  string(hash),
		FirstName: "Emmanuel",
		LastName:  "Alanis",
		Role:      role,
		IsActive:  true,
		TenantID:  tenant.ID,
	}
	if err := a.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
}

func (a *testApp) login(t *testing.T, email string) (string, string) {
	t.Helper()

	rec, body := a.do(t, http.MethodPost, "/api/auth/login", echo.Map{"email": email, "password": "secret123"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, rec.Code, rec.Body.String())
	}
	return body["accessToken"].(string), body["refreshToken"].(string)
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	app := newTestApp(t, 0)

	rec, body := app.do(t, http.MethodPost, "/api/auth/register", echo.Map{
		"email":     "dev@alanis.dev",
		"password":  "secret123",
		"firstName": "Dev",
		"lastName":  "Eloper",
		"tenantId":  app.tenant.ID,
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["role"] != "USER" {
		t.Fatalf("expected default USER role, got %v", body["role"])
	}
	if _, leaked := body["password"]; leaked {
		t.Fatal("password hash must not be serialized")
	}

	rec, body = app.do(t, http.MethodPost, "/api/auth/login", echo.Map{
		"email":      "dev@alanis.dev",
		"password":   "secret123",
		"tenantSlug": "alanis-web-dev",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["expiresIn"] != float64(900) {
		t.Fatalf("expected expiresIn 900, got %v", body["expiresIn"])
	}
	user := body["user"].(map[string]interface{})
	if user["tenant"].(map[string]interface{})["slug"] != "alanis-web-dev" {
		t.Fatalf("unexpected tenant summary: %v", user["tenant"])
	}
	accessToken := body["accessToken"].(string)
	refreshToken := body["refreshToken"].(string)

	rec, body = app.do(t, http.MethodGet, "/api/auth/profile", nil, accessToken)
	if rec.Code != http.StatusOK || body["email"] != "dev@alanis.dev" {
		t.Fatalf("profile: %d %v", rec.Code, body)
	}

	rec, body = app.do(t, http.MethodPost, "/api/auth/refresh", echo.Map{"refreshToken": refreshToken}, "")
	if rec.Code != http.StatusOK || body["accessToken"] == "" || body["refreshToken"] != nil {
		t.Fatalf("refresh: %d %v", rec.Code, body)
	}

	rec, body = app.do(t, http.MethodPost, "/api/auth/logout", echo.Map{"refreshToken": refreshToken}, accessToken)
	if rec.Code != http.StatusOK || body["message"] != "Logout successful" {
		t.Fatalf("logout: %d %v", rec.Code, body)
	}

	rec, _ = app.do(t, http.MethodPost, "/api/auth/refresh", echo.Map{"refreshToken": refreshToken}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", rec.Code)
	}
}

func TestLoginRejectsWrongTenantSlug(t *testing.T) {
	app := newTestApp(t, 0)
	app.createUser(t, app.tenant, "admin@alanis.dev", model.RoleAdmin)

	rec, body := app.do(t, http.MethodPost, "/api/auth/login", echo.Map{
		"email":      "admin@alanis.dev",
		"password":   "secret123",
		"tenantSlug": "cherry-pop-design",
	}, "")
	if rec.Code != http.StatusUnauthorized || body["error"] == nil {
		t.Fatalf("expected 401 with an error body, got %d %v", rec.Code, body)
	}

	rec, _ = app.do(t, http.MethodPost, "/api/auth/login", echo.Map{"email": "admin@alanis.dev"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without password, got %d", rec.Code)
	}
}

func TestRefreshWithExpiredRecordIsUnauthorized(t *testing.T) {
	app := newTestApp(t, 0)
	app.createUser(t, app.tenant, "admin@alanis.dev", model.RoleAdmin)
	_, refreshToken := app.login(t, "admin@alanis.dev")

	err := app.db.Model(&model.RefreshToken{}).
		Where("token = ?", refreshToken).
		Update("expires_at", time.Now().Add(-time.Minute)).Error
	if err != nil {
		t.Fatalf("expire refresh token: %v", err)
	}

	rec, body := app.do(t, http.MethodPost, "/api/auth/refresh", echo.Map{"refreshToken": refreshToken}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := body["accessToken"]; ok {
		t.Fatal("expected no access token in the response")
	}
}

func TestRegisterElevatedRoleRequiresPrivilegedCaller(t *testing.T) {
	app := newTestApp(t, 0)
	app.createUser(t, app.tenant, "root@alanis.dev", model.RoleSuperAdmin)

	payload := echo.Map{
		"email":     "new-admin@alanis.dev",
		"password":  "secret123",
		"firstName": "New",
		"lastName":  "Admin",
		"role":      "ADMIN",
		"tenantId":  app.tenant.ID,
	}

	rec, _ := app.do(t, http.MethodPost, "/api/auth/register", payload, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous admin grant: expected 403, got %d", rec.Code)
	}

	token, _ := app.login(t, "root@alanis.dev")
	rec, body := app.do(t, http.MethodPost, "/api/auth/register", payload, token)
	if rec.Code != http.StatusCreated || body["role"] != "ADMIN" {
		t.Fatalf("super admin grant: %d %v", rec.Code, body)
	}
}

func TestProtectedRoutesAndTenantIsolation(t *testing.T) {
	app := newTestApp(t, 0)
	other := model.Tenant{Name: "Cherry Pop Design", Slug: "cherry-pop-design", Type: model.TenantTypeCherryPopDesign, IsActive: true}
	if err := app.db.Create(&other).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	app.createUser(t, app.tenant, "admin@alanis.dev", model.RoleAdmin)
	app.createUser(t, other, "admin@cherrypop.design", model.RoleAdmin)

	rec, body := app.do(t, http.MethodGet, "/api/clients", nil, "")
	if rec.Code != http.StatusUnauthorized || body["error"] == nil {
		t.Fatalf("expected 401 without token, got %d %v", rec.Code, body)
	}

	alanis, _ := app.login(t, "admin@alanis.dev")
	cherry, _ := app.login(t, "admin@cherrypop.design")

	rec, body = app.do(t, http.MethodPost, "/api/clients", echo.Map{"name": "Acme", "email": "billing@acme.test"}, alanis)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create client: %d %s", rec.Code, rec.Body.String())
	}
	clientID := body["id"].(string)

	rec, _ = app.do(t, http.MethodGet, "/api/clients/"+clientID, nil, cherry)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign tenant read: expected 404, got %d", rec.Code)
	}

	rec, body = app.do(t, http.MethodGet, "/api/clients", nil, cherry)
	if rec.Code != http.StatusOK || body["meta"].(map[string]interface{})["total"] != float64(0) {
		t.Fatalf("foreign tenant list: %d %v", rec.Code, body)
	}

	rec, body = app.do(t, http.MethodPatch, "/api/clients/"+clientID, echo.Map{
		"address": echo.Map{"street": "1 Main St", "city": "Austin", "state": "TX", "zipCode": "78701", "country": "US"},
	}, alanis)
	if rec.Code != http.StatusOK || body["address"] == nil {
		t.Fatalf("set address: %d %v", rec.Code, body)
	}
	rec, body = app.do(t, http.MethodPatch, "/api/clients/"+clientID, json.RawMessage(`{"address":null}`), alanis)
	if rec.Code != http.StatusOK || body["address"] != nil {
		t.Fatalf("clear address: %d %v", rec.Code, body)
	}

	rec, body = app.do(t, http.MethodGet, "/api/tenants", nil, alanis)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("tenant list as ADMIN: expected 403, got %d %v", rec.Code, body)
	}
	rec, body = app.do(t, http.MethodGet, "/api/tenants/current", nil, alanis)
	if rec.Code != http.StatusOK || body["slug"] != "alanis-web-dev" {
		t.Fatalf("current tenant: %d %v", rec.Code, body)
	}
}

func TestTimeTrackingKeepsUsedHours(t *testing.T) {
	app := newTestApp(t, 0)
	app.createUser(t, app.tenant, "dev@alanis.dev", model.RoleUser)
	token, _ := app.login(t, "dev@alanis.dev")

	_, client := app.do(t, http.MethodPost, "/api/clients", echo.Map{"name": "Acme", "email": "billing@acme.test"}, token)
	rec, project := app.do(t, http.MethodPost, "/api/projects", echo.Map{
		"name":        "Website",
		"clientId":    client["id"],
		"quotedHours": 10,
		"hourlyRate":  "75.00",
	}, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project: %d %s", rec.Code, rec.Body.String())
	}
	projectID := project["id"].(string)

	for _, hours := range []float64{1.5, 2.0, 0.5} {
		rec, _ = app.do(t, http.MethodPost, "/api/time-tracking/entries", echo.Map{
			"description": "Work",
			"hours":       hours,
			"date":        time.Now().UTC().Format("2006-01-02"),
			"projectId":   projectID,
		}, token)
		if rec.Code != http.StatusCreated {
			t.Fatalf("log %.1fh: %d %s", hours, rec.Code, rec.Body.String())
		}
	}

	rec, report := app.do(t, http.MethodGet, "/api/time-tracking/projects/"+projectID+"/report", nil, token)
	if rec.Code != http.StatusOK || report["totalUsed"] != float64(4) || report["remaining"] != float64(6) {
		t.Fatalf("report: %d %v", rec.Code, report)
	}

	rec, _ = app.do(t, http.MethodPost, "/api/time-tracking/entries", echo.Map{
		"description": "Work", "hours": 1, "date": "not-a-date", "projectId": projectID,
	}, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid date: expected 400, got %d", rec.Code)
	}
}

func TestPublicQuoteLifecycle(t *testing.T) {
	app := newTestApp(t, 0)
	app.createUser(t, app.tenant, "admin@alanis.dev", model.RoleAdmin)
	token, _ := app.login(t, "admin@alanis.dev")

	rec, quote := app.do(t, http.MethodPost, "/api/quotes", echo.Map{
		"clientName":     "Jane Doe",
		"clientEmail":    "jane@example.com",
		"projectName":    "Landing page",
		"projectType":    "landing",
		"services":       []echo.Map{{"id": "design", "name": "Design", "basePrice": 1000}},
		"subtotal":       1000,
		"tax":            0,
		"discount":       0,
		"total":          1000,
		"estimatedHours": 10,
		"internalNotes":  "margin 30%",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("public create: %d %s", rec.Code, rec.Body.String())
	}
	number := quote["quoteNumber"].(string)
	if want := fmt.Sprintf("QUO-%d-0001", time.Now().UTC().Year()); number != want {
		t.Fatalf("expected %s, got %s", want, number)
	}
	if _, ok := quote["internalNotes"]; ok {
		t.Fatal("public response must not expose internal notes")
	}

	rec, viewed := app.do(t, http.MethodGet, "/api/quotes/public/"+number, nil, "")
	if rec.Code != http.StatusOK || viewed["status"] != "VIEWED" || viewed["viewedAt"] == nil {
		t.Fatalf("public read: %d %v", rec.Code, viewed)
	}
	if _, ok := viewed["internalNotes"]; ok {
		t.Fatal("public read must not expose internal notes")
	}

	id := quote["id"].(string)
	rec, _ = app.do(t, http.MethodPost, "/api/quotes/"+id+"/convert-to-project", nil, token)
	if rec.Code != http.StatusConflict {
		t.Fatalf("convert before approval: expected 409, got %d", rec.Code)
	}

	rec, approved := app.do(t, http.MethodPatch, "/api/quotes/"+id+"/approve", nil, token)
	if rec.Code != http.StatusOK || approved["status"] != "APPROVED" {
		t.Fatalf("approve: %d %v", rec.Code, approved)
	}

	rec, converted := app.do(t, http.MethodPost, "/api/quotes/"+id+"/convert-to-project", nil, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("convert: %d %s", rec.Code, rec.Body.String())
	}
	project := converted["project"].(map[string]interface{})
	rate, err := decimal.NewFromString(fmt.Sprint(project["hourlyRate"]))
	if err != nil || !rate.Equal(decimal.NewFromInt(100)) || project["quotedHours"] != float64(10) {
		t.Fatalf("unexpected project: %v", project)
	}

	rec, _ = app.do(t, http.MethodPost, "/api/quotes/"+id+"/convert-to-project", nil, token)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second convert: expected 409, got %d", rec.Code)
	}

	rec, stats := app.do(t, http.MethodGet, "/api/quotes/stats", nil, token)
	if rec.Code != http.StatusOK || stats["total"] != float64(1) {
		t.Fatalf("stats: %d %v", rec.Code, stats)
	}
}

func TestContactRoutes(t *testing.T) {
	app := newTestApp(t, 0)
	app.createUser(t, app.tenant, "admin@alanis.dev", model.RoleAdmin)
	app.createUser(t, app.tenant, "dev@alanis.dev", model.RoleUser)

	rec, form := app.do(t, http.MethodPost, "/api/contact", echo.Map{
		"name": "Jane", "email": "jane@example.com", "message": "Hello",
	}, "")
	if rec.Code != http.StatusCreated || form["status"] != "PENDING" {
		t.Fatalf("submit: %d %v", rec.Code, form)
	}

	user, _ := app.login(t, "dev@alanis.dev")
	rec, _ = app.do(t, http.MethodGet, "/api/contact", nil, user)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("USER listing contacts: expected 403, got %d", rec.Code)
	}

	admin, _ := app.login(t, "admin@alanis.dev")
	rec, list := app.do(t, http.MethodGet, "/api/contact?status=PENDING", nil, admin)
	if rec.Code != http.StatusOK || list["meta"].(map[string]interface{})["total"] != float64(1) {
		t.Fatalf("admin list: %d %v", rec.Code, list)
	}

	rec, _ = app.do(t, http.MethodGet, "/api/contact?limit=500", nil, admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("limit above 100: expected 400, got %d", rec.Code)
	}
}

func TestPublicSubmissionsAreRateLimited(t *testing.T) {
	app := newTestApp(t, 1)

	payload := echo.Map{"name": "Jane", "email": "jane@example.com", "message": "Hello"}
	rec, _ := app.do(t, http.MethodPost, "/api/contact", payload, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("first submission: expected 201, got %d", rec.Code)
	}
	rec, body := app.do(t, http.MethodPost, "/api/contact", payload, "")
	if rec.Code != http.StatusTooManyRequests || body["error"] == nil {
		t.Fatalf("second submission: expected 429, got %d %v", rec.Code, body)
	}
}

func TestProbesAndUnknownRoutes(t *testing.T) {
	app := newTestApp(t, 0)

	rec, body := app.do(t, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK || body["status"] != "ok" || body["db_status"] != "ok" {
		t.Fatalf("health: %d %v", rec.Code, body)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatal("expected a request id header")
	}

	rec, body = app.do(t, http.MethodGet, "/", nil, "")
	if rec.Code != http.StatusOK || body["version"] != apiVersion {
		t.Fatalf("root: %d %v", rec.Code, body)
	}

	rec, body = app.do(t, http.MethodGet, "/nope", nil, "")
	if rec.Code != http.StatusNotFound || body["error"] == nil {
		t.Fatalf("unknown route: %d %v", rec.Code, body)
	}
}
