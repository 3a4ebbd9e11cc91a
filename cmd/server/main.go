package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/auth"
	"github.com/erp/invoicing/internal/infrastructure/cache"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/event"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/mail"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/erp/invoicing/internal/infrastructure/scheduler"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/erp/invoicing/internal/interfaces/http/handler"
	"github.com/erp/invoicing/internal/interfaces/http/middleware"
	"github.com/erp/invoicing/internal/interfaces/http/router"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

//	@title			Invoicing API
//	@version		1.0
//	@description	Invoice status tracking and overdue payment reminders

//	@contact.name	API Support
//	@contact.url	https://github.com/erp/invoicing

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		ServiceName: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting invoicing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	flushSentry, err := telemetry.InitSentry(cfg.Sentry, telemetry.ServiceVersion, log)
	if err != nil {
		log.Fatal("Failed to initialize Sentry", zap.Error(err))
	}
	defer flushSentry()

	// Database
	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLogger))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database connection", zap.Error(err))
		}
	}()
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DBName),
	)

	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfigFrom(cfg.Telemetry, "postgresql"), log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	// Repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	reminderRepo := persistence.NewGormReminderRecordRepository(db.DB)
	templateRepo := persistence.NewGormReminderTemplateRepository(db.DB)
	clientRepo := persistence.NewGormClientRepository(db.DB)
	auditRepo := persistence.NewGormAuditLogRepository(db.DB)
	tenantProvider := persistence.NewGormTenantProvider(db.DB)

	// Reminder infrastructure
	locker, err := cache.NewInvoiceLockerFactory(cfg.Redis, cfg.Reminder, cache.WithLogger(log)).CreateLocker()
	if err != nil {
		log.Fatal("Failed to create invoice locker", zap.Error(err))
	}
	mailer, err := mail.NewSender(cfg.Mail, log)
	if err != nil {
		log.Fatal("Failed to create mail sender", zap.Error(err))
	}

	// Event bus
	reminderMetrics, err := telemetry.NewReminderMetrics(meterProvider.Meter("invoicing.reminders"))
	if err != nil {
		log.Fatal("Failed to create reminder metrics", zap.Error(err))
	}
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(reminderMetrics)
	eventBus.Subscribe(event.NewSentryReporter(sentry.CurrentHub()))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		_ = eventBus.Stop(context.Background())
	}()

	// Application services
	settings, err := reminderSettings(cfg)
	if err != nil {
		log.Fatal("Invalid reminder policy", zap.Error(err))
	}
	opts := []appinvoicing.Option{
		appinvoicing.WithLogger(log),
		appinvoicing.WithEventPublisher(eventBus),
	}

	reminderService := appinvoicing.NewReminderService(appinvoicing.ReminderServiceConfig{
		InvoiceRepo:  invoiceRepo,
		ReminderRepo: reminderRepo,
		TemplateRepo: templateRepo,
		ClientRepo:   clientRepo,
		Mailer:       mailer,
		Locker:       locker,
		Settings:     settings,
	}, opts...)
	statusService := appinvoicing.NewInvoiceStatusService(invoiceRepo, auditRepo, opts...)
	templateService := appinvoicing.NewReminderTemplateService(templateRepo, opts...)
	statsService := appinvoicing.NewReminderStatsService(invoiceRepo, reminderRepo, settings.Policy, opts...)

	sweep := appinvoicing.NewReconciliationSweep(invoiceRepo, reminderRepo, tenantProvider, settings.Policy, opts...)
	if cfg.Scheduler.DryRun {
		sweep = sweep.DryRun()
	}

	// Scheduler
	var reconcileScheduler *scheduler.ReconciliationScheduler
	if cfg.Scheduler.Enabled {
		reconcileScheduler, err = scheduler.NewReconciliationScheduler(cfg.Scheduler, sweep, reminderMetrics, log)
		if err != nil {
			log.Fatal("Failed to create reconciliation scheduler", zap.Error(err))
		}
		if err := reconcileScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start reconciliation scheduler", zap.Error(err))
		}
		log.Info("Reconciliation scheduler started",
			zap.String("schedule", cfg.Scheduler.ReconcileSchedule),
			zap.Time("next_run_at", reconcileScheduler.NextRunAt()),
			zap.Bool("dry_run", cfg.Scheduler.DryRun),
		)
	} else {
		log.Info("Reconciliation scheduler disabled")
	}

	// HTTP
	engine, err := router.NewEngine(router.APIConfig{
		HTTP:     cfg.HTTP,
		Reminder: cfg.Reminder,
		Tracing: middleware.TracingConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			Enabled:        tracerProvider.IsEnabled(),
			TracerProvider: tracerProvider.Provider(),
		},
		Meter:               meterProvider.Meter("invoicing.http"),
		SentryEnabled:       cfg.Sentry.DSN != "",
		TenantHeaderEnabled: !cfg.App.IsProduction(),
		TokenValidator:      auth.NewTokenVerifier(cfg.JWT),
		Logger:              log,
	}, router.Handlers{
		Invoices:  handler.NewInvoiceReminderHandler(reminderService, statusService),
		Templates: handler.NewReminderTemplateHandler(templateService, statsService),
		System:    handler.NewSystemHandler(telemetry.ServiceVersion, db),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if reconcileScheduler != nil {
		if err := reconcileScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop reconciliation scheduler", zap.Error(err))
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// reminderSettings turns the reminder config section into dispatch settings
func reminderSettings(cfg *config.Config) (appinvoicing.ReminderSettings, error) {
	settings := appinvoicing.DefaultReminderSettings()
	settings.Policy.CooldownDays = cfg.Reminder.CooldownDays
	if n := len(cfg.Reminder.LevelThresholds); n != len(settings.Policy.LevelThresholds) {
		return settings, fmt.Errorf("expected 3 level thresholds, got %d", n)
	}
	copy(settings.Policy.LevelThresholds[:], cfg.Reminder.LevelThresholds)
	if err := settings.Policy.Validate(); err != nil {
		return settings, err
	}

	settings.AllowDuplicateLevelResend = cfg.Reminder.AllowDuplicateLevelResend
	settings.SendFromReminderStages = cfg.Reminder.SendFromReminderStages
	settings.FromAddress = cfg.Mail.FromAddress
	settings.FromName = cfg.Mail.FromName
	settings.PaymentLinkBaseURL = cfg.Reminder.PaymentLinkBaseURL
	return settings, nil
}
