package meta

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ApplyMigrations накатывает схему журнала на Postgres и логирует каждую применённую версию.
// Возвращает число применённых миграций; 0 — схема уже актуальна.
func ApplyMigrations(ctx context.Context, dsn string, log logrus.FieldLogger) (int, error) {
	if strings.TrimSpace(dsn) == "" {
		return 0, fmt.Errorf("meta dsn is empty")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if err = db.PingContext(ctx); err != nil {
		return 0, fmt.Errorf("ping ledger db: %w", err)
	}

	sqlFiles, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return 0, err
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, sqlFiles)
	if err != nil {
		return 0, fmt.Errorf("init migrations: %w", err)
	}

	results, err := provider.Up(ctx)
	for _, r := range results {
		log.WithFields(logrus.Fields{
			"version": r.Source.Version,
			"file":    r.Source.Path,
			"took":    r.Duration,
		}).Info("migration applied")
	}
	if err != nil {
		return len(results), fmt.Errorf("apply migrations: %w", err)
	}

	return len(results), nil
}
