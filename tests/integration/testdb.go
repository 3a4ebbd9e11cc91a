// Package integration runs the invoicing stack against a real PostgreSQL
// started with testcontainers. The schema comes from the embedded migrations.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/infrastructure/migration"
	"github.com/erp/invoicing/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// Shared container for all tests in the package
	sharedContainer    testcontainers.Container
	sharedContainerMu  sync.Mutex
	sharedContainerDSN string
)

// TestDB represents a test database connection
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	DSN   string
	t     *testing.T
}

// NewSharedTestDB returns a connection to the package's PostgreSQL container,
// starting it and applying migrations on first use. Tables are truncated so
// every test starts empty.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	ctx := context.Background()

	if sharedContainer == nil {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("invoicing_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("admin123"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		require.NoError(t, err, "Failed to start shared PostgreSQL container")

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err, "Failed to get connection string")

		_, sqlDB := connectToDatabase(t, dsn)
		runMigrations(t, sqlDB)
		sqlDB.Close()

		sharedContainer = container
		sharedContainerDSN = dsn
	}

	db, sqlDB := connectToDatabase(t, sharedContainerDSN)
	testDB := &TestDB{
		DB:    db,
		SqlDB: sqlDB,
		DSN:   sharedContainerDSN,
		t:     t,
	}
	testDB.CleanTables()

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return testDB
}

// CleanTables truncates every table except the migration bookkeeping
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error
		require.NoError(tdb.t, err, "Failed to truncate table %s", table)
	}
}

// CreateClient inserts a client with an administration contact
func (tdb *TestDB) CreateClient(tenantID uuid.UUID, company, adminEmail string) uuid.UUID {
	tdb.t.Helper()

	clientID := uuid.New()
	require.NoError(tdb.t, tdb.DB.Exec(`
		INSERT INTO clients (id, tenant_id, company_name, email)
		VALUES (?, ?, ?, ?)
	`, clientID, tenantID, company, "info@"+company+".test").Error)
	require.NoError(tdb.t, tdb.DB.Exec(`
		INSERT INTO client_contacts (id, client_id, first_name, last_name, email, is_administration)
		VALUES (?, ?, 'Ada', 'Admin', ?, TRUE)
	`, uuid.New(), clientID, adminEmail).Error)
	return clientID
}

// CreateSenderProfile inserts the profile of the sending user
func (tdb *TestDB) CreateSenderProfile(tenantID, userID uuid.UUID, business, email string) {
	tdb.t.Helper()

	require.NoError(tdb.t, tdb.DB.Exec(`
		INSERT INTO sender_profiles (id, tenant_id, first_name, last_name, business_name, email)
		VALUES (?, ?, 'Sam', 'Sender', ?, ?)
	`, userID, tenantID, business, email).Error)
}

// SetInvoiceStatus overwrites the cached status behind the repositories' back
func (tdb *TestDB) SetInvoiceStatus(invoiceID uuid.UUID, status string) {
	tdb.t.Helper()

	require.NoError(tdb.t, tdb.DB.Exec(`UPDATE invoices SET status = ? WHERE id = ?`, status, invoiceID).Error)
}

func connectToDatabase(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")

	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}

func runMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
}

// CleanupSharedContainer terminates the shared container
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sharedContainer.Terminate(ctx)
		sharedContainer = nil
		sharedContainerDSN = ""
	}
}
