// Command reconcile runs one reconciliation sweep and exits. It repairs invoice
// statuses that lag behind the reminder history, for all tenants or one.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	var (
		dryRun   bool
		tenant   string
		timeout  time.Duration
		logLevel string
	)
	flag.BoolVar(&dryRun, "dry-run", false, "Report stale invoices without repairing them")
	flag.StringVar(&tenant, "tenant", "", "Sweep a single tenant (UUID)")
	flag.DurationVar(&timeout, "timeout", 30*time.Minute, "Abort the sweep after this long")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	policy, err := escalationPolicy(cfg.Reminder)
	if err != nil {
		log.Fatal("Invalid reminder policy", zap.Error(err))
	}

	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLogger))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	sweep := appinvoicing.NewReconciliationSweep(
		persistence.NewGormInvoiceRepository(db.DB),
		persistence.NewGormReminderRecordRepository(db.DB),
		persistence.NewGormTenantProvider(db.DB),
		policy,
		appinvoicing.WithLogger(log),
	)
	if dryRun {
		sweep = sweep.DryRun()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var report appinvoicing.SweepReport
	if tenant != "" {
		tenantID, parseErr := uuid.Parse(tenant)
		if parseErr != nil {
			log.Fatal("Invalid tenant ID", zap.String("tenant", tenant))
		}
		report, err = sweep.RunForTenant(ctx, tenantID)
	} else {
		report, err = sweep.Run(ctx)
	}

	fields := []zap.Field{
		zap.Bool("dry_run", dryRun),
		zap.Int("tenants", report.Tenants),
		zap.Int("scanned", report.Scanned),
		zap.Int("stale", report.Stale),
		zap.Int("repaired", report.Repaired),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		log.Error("Reconciliation sweep failed", append(fields, zap.Error(err))...)
		os.Exit(1)
	}
	log.Info("Reconciliation sweep finished", fields...)
	if report.Failed > 0 {
		os.Exit(2)
	}
}

func escalationPolicy(cfg config.ReminderConfig) (invoicing.EscalationPolicy, error) {
	policy := invoicing.DefaultEscalationPolicy()
	policy.CooldownDays = cfg.CooldownDays
	if n := len(cfg.LevelThresholds); n != len(policy.LevelThresholds) {
		return policy, fmt.Errorf("expected 3 level thresholds, got %d", n)
	}
	copy(policy.LevelThresholds[:], cfg.LevelThresholds)
	return policy, policy.Validate()
}
