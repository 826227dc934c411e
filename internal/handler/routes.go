package handler

import (
	"math"
	"net/http"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/middleware"
	"github.com/Ealanisln/alanis-backend/internal/model"
	"github.com/Ealanisln/alanis-backend/internal/service"
	"github.com/Ealanisln/alanis-backend/pkg/jwtutil"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"github.com/Ealanisln/alanis-backend/prometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Services bundles the business services the routes dispatch to
type Services struct {
	Auth         *service.AuthService
	Tenants      *service.TenantService
	Clients      *service.ClientService
	Projects     *service.ProjectService
	TimeTracking *service.TimeTrackingService
	Quotes       *service.QuoteService
	Contacts     *service.ContactService
	Invoicing    *service.InvoicingService
	Integrations *service.IntegrationService
}

// RouterConfig holds what the router needs besides the services
type RouterConfig struct {
	DB             *gorm.DB
	Tokens         *jwtutil.JWTUtil
	Logger         *zap.Logger
	AllowedOrigins []string
	// PublicRateLimit is the allowed requests per second per client IP on
	// public submission routes. Zero disables the limiter.
	PublicRateLimit float64
}

// NewRouter builds the Echo application with every route mounted
func NewRouter(cfg RouterConfig, services Services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler

	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	e.Use(middleware.RequestID)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	health := NewHealthHandler(cfg.DB)
	auth := NewAuthHandler(services.Auth)
	tenants := NewTenantHandler(services.Tenants)
	clients := NewClientHandler(services.Clients)
	projects := NewProjectHandler(services.Projects)
	timeTracking := NewTimeTrackingHandler(services.TimeTracking)
	quotes := NewQuoteHandler(services.Quotes)
	contacts := NewContactHandler(services.Contacts)
	integrations := NewIntegrationHandler(services.Invoicing, services.Integrations)

	requireAuth := middleware.Auth(cfg.Tokens)
	requireTenant := middleware.RequireTenant()
	publicLimit := publicRateLimiter(cfg.PublicRateLimit)

	// Probes - no authentication required
	e.GET("/", health.Hello)
	e.GET("/health", health.HealthCheck)
	e.GET("/metrics", prometheus.HandlerFunc())

	api := e.Group("/api")
	api.GET("", health.Hello)
	api.GET("/health", health.HealthCheck)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", auth.Login)
	authGroup.POST("/register", auth.Register, middleware.OptionalAuth(cfg.Tokens))
	authGroup.POST("/refresh", auth.Refresh)
	authGroup.POST("/logout", auth.Logout, requireAuth)
	authGroup.POST("/logout-all", auth.LogoutAll, requireAuth)
	authGroup.GET("/profile", auth.Profile, requireAuth)

	superAdmin := middleware.RequireRoles(model.RoleSuperAdmin)
	tenantGroup := api.Group("/tenants", requireAuth)
	tenantGroup.POST("", tenants.Create, superAdmin)
	tenantGroup.GET("", tenants.List, superAdmin)
	tenantGroup.GET("/current", tenants.Current, requireTenant)
	tenantGroup.PATCH("/:id/status", tenants.SetStatus, superAdmin)

	clientGroup := api.Group("/clients", requireAuth, requireTenant)
	clientGroup.POST("", clients.Create)
	clientGroup.GET("", clients.List)
	clientGroup.GET("/:id", clients.Get)
	clientGroup.PATCH("/:id", clients.Update)
	clientGroup.DELETE("/:id", clients.Delete)

	projectGroup := api.Group("/projects", requireAuth, requireTenant)
	projectGroup.POST("", projects.Create)
	projectGroup.GET("", projects.List)
	projectGroup.GET("/:id", projects.Get)
	projectGroup.PATCH("/:id", projects.Update)
	projectGroup.DELETE("/:id", projects.Delete)
	projectGroup.POST("/:id/tasks", projects.CreateTask)
	projectGroup.GET("/:id/tasks", projects.ListTasks)

	timeGroup := api.Group("/time-tracking", requireAuth, requireTenant)
	timeGroup.POST("/entries", timeTracking.CreateEntry)
	timeGroup.GET("/projects/:projectId/report", timeTracking.ProjectReport)
	timeGroup.GET("/my-entries", timeTracking.MyEntries)
	timeGroup.PATCH("/entries/:id", timeTracking.UpdateEntry)
	timeGroup.DELETE("/entries/:id", timeTracking.DeleteEntry)

	quoteGroup := api.Group("/quotes")
	quoteGroup.POST("", quotes.CreatePublic, publicLimit)
	quoteGroup.GET("/public/:quoteNumber", quotes.GetPublic)
	quoteAdmin := quoteGroup.Group("", requireAuth, requireTenant)
	quoteAdmin.POST("/admin", quotes.CreateAdmin)
	quoteAdmin.GET("", quotes.List)
	quoteAdmin.GET("/stats", quotes.Stats)
	quoteAdmin.GET("/:id", quotes.Get)
	quoteAdmin.PATCH("/:id", quotes.Update)
	quoteAdmin.DELETE("/:id", quotes.Delete)
	quoteAdmin.PATCH("/:id/approve", quotes.Approve)
	quoteAdmin.PATCH("/:id/reject", quotes.Reject)
	quoteAdmin.PATCH("/:id/send", quotes.Send)
	quoteAdmin.POST("/:id/convert-to-project", quotes.ConvertToProject)

	contactGroup := api.Group("/contact")
	contactGroup.POST("", contacts.Create, publicLimit)
	contactAdmin := contactGroup.Group("", requireAuth, requireTenant, middleware.RequireRoles(model.RoleAdmin, model.RoleSuperAdmin))
	contactAdmin.GET("", contacts.List)
	contactAdmin.GET("/stats", contacts.Stats)
	contactAdmin.GET("/:id", contacts.Get)
	contactAdmin.PATCH("/:id", contacts.Update)
	contactAdmin.DELETE("/:id", contacts.Delete)

	integrationGroup := api.Group("/integrations", requireAuth, requireTenant)
	integrationGroup.POST("/invoice-ninja/sync-client/:clientId", integrations.SyncClient)
	integrationGroup.POST("/invoice-ninja/create-invoice/:projectId", integrations.CreateInvoice)
	integrationGroup.GET("/invoice-ninja/test-connection", integrations.TestInvoiceNinja)
	integrationGroup.POST("/n8n/weekly-report", integrations.WeeklyReport)
	integrationGroup.GET("/n8n/test-connection", integrations.TestN8N)
	integrationGroup.GET("/status", integrations.Status)

	return e
}

// publicRateLimiter throttles unauthenticated submissions per client IP
func publicRateLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     int(math.Max(1, math.Ceil(perSecond))),
		ExpiresIn: 3 * time.Minute,
	})

	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "unable to identify client"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logger.FromContext(c).Warn("Rate limit exceeded", zap.String("ip", identifier))
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "Too many requests, please try again later"})
		},
	})
}
