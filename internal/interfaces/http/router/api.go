package router

import (
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/interfaces/http/handler"
	"github.com/erp/invoicing/internal/interfaces/http/middleware"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// APIConfig holds what the engine needs besides the handlers
type APIConfig struct {
	HTTP     config.HTTPConfig
	Reminder config.ReminderConfig
	Tracing  middleware.TracingConfig
	// Meter enables HTTP metrics when set
	Meter               metric.Meter
	SentryEnabled       bool
	TenantHeaderEnabled bool
	TokenValidator      middleware.TokenValidator
	Logger              *zap.Logger
}

// Handlers are the HTTP handlers served by the engine
type Handlers struct {
	Invoices  *handler.InvoiceReminderHandler
	Templates *handler.ReminderTemplateHandler
	System    *handler.SystemHandler
}

// NewEngine builds the gin engine with the global middleware chain and every route.
// Recovery sits inside sentrygin so panics are reported once through the request hub.
func NewEngine(cfg APIConfig, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if err := middleware.SetupValidator(); err != nil {
		return nil, err
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			return nil, err
		}
	}

	engine.Use(middleware.RequestID())
	if cfg.SentryEnabled {
		engine.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(cfg.Tracing))
	if cfg.Meter != nil {
		metricsMiddleware, err := middleware.HTTPMetrics(cfg.Meter)
		if err != nil {
			return nil, err
		}
		engine.Use(metricsMiddleware)
	}
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfigFrom(cfg.HTTP)))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.GET("/health", h.System.Health)

	tenantCfg := middleware.DefaultTenantConfig()
	tenantCfg.HeaderEnabled = cfg.TenantHeaderEnabled
	tenantCfg.Logger = log
	jwtCfg := middleware.DefaultJWTConfig(cfg.TokenValidator)
	jwtCfg.Logger = log

	r := NewRouter(engine, "/api/v1")
	r.Use(
		middleware.JWTAuthMiddlewareWithConfig(jwtCfg),
		middleware.TenantMiddlewareWithConfig(tenantCfg),
		middleware.TracingAttributeInjector(),
	)

	sendLimiter := middleware.NewRateLimiter(cfg.Reminder.SendRatePerMinute)
	invoices := NewResourceGroup("/invoices").
		GET("/:id/reminders", h.Invoices.GetReminders).
		POST("/:id/send-reminder", middleware.RateLimitByTenant(sendLimiter), h.Invoices.SendReminder).
		Update("/:id/status", h.Invoices.SetStatus).
		GET("/:id/status", h.Invoices.GetStatus)

	reminders := NewResourceGroup("/reminders").
		GET("/templates", h.Templates.ListTemplates).
		POST("/templates", h.Templates.CreateTemplate).
		GET("/stats", h.Templates.GetStats)

	r.Register(invoices, reminders).Setup()

	// Health is reachable under the API prefix too, without authentication
	engine.GET("/api/v1/health", h.System.Health)

	return engine, nil
}
