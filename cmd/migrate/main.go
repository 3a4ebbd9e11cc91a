// Command migrate applies the embedded invoicing schema migrations.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/migration"
	"github.com/erp/invoicing/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const usage = `Usage: migrate [-log-level level] <command> [arg]

Commands:
  up              apply every pending migration
  down            roll back every migration
  step <n>        move n migrations (negative rolls back)
  version         print the applied version
  force <v>       mark version v as applied without running it
  list            print the embedded migration files

The database is read from ERP_DATABASE_HOST, ERP_DATABASE_PORT,
ERP_DATABASE_USER, ERP_DATABASE_PASSWORD, ERP_DATABASE_DBNAME and
ERP_DATABASE_SSLMODE (or config.toml).`

type command struct {
	needsArg bool
	run      func(m *migration.Migrator, arg int, log *zap.Logger) error
}

var commands = map[string]command{
	"up":   {run: func(m *migration.Migrator, _ int, _ *zap.Logger) error { return m.Up() }},
	"down": {run: func(m *migration.Migrator, _ int, _ *zap.Logger) error { return m.Down() }},
	"step": {needsArg: true, run: func(m *migration.Migrator, n int, _ *zap.Logger) error { return m.Steps(n) }},
	"force": {needsArg: true, run: func(m *migration.Migrator, v int, _ *zap.Logger) error {
		return m.Force(v)
	}},
	"version": {run: func(m *migration.Migrator, _ int, log *zap.Logger) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	}},
}

func main() {
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	name := flag.Arg(0)

	log, err := logger.New(&logger.Config{Level: *logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if name == "list" {
		files, err := fs.Glob(migrations.FS, "*.up.sql")
		if err != nil {
			log.Fatal("Failed to read embedded migrations", zap.Error(err))
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		flag.Usage()
		os.Exit(2)
	}
	var arg int
	if cmd.needsArg {
		if flag.NArg() < 2 {
			log.Fatal("Command needs a numeric argument", zap.String("command", name))
		}
		if arg, err = strconv.Atoi(flag.Arg(1)); err != nil {
			log.Fatal("Argument is not a number", zap.String("value", flag.Arg(1)))
		}
	}

	if err := run(log, name, cmd, arg); err != nil {
		log.Fatal("Migration failed", zap.String("command", name), zap.Error(err))
	}
}

func run(log *zap.Logger, name string, cmd command, arg int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
	}

	m, err := migration.New(db, migrations.FS, log)
	if err != nil {
		return err
	}
	defer m.Close()

	log.Debug("Running migration command", zap.String("command", name), zap.Int("arg", arg))
	return cmd.run(m, arg, log)
}
