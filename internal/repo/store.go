package meta

import (
	"context"
	"fmt"
	"strings"

	"github.com/sir_venger/resumable/internal/models"
)

// Store — журнал собранных загрузок.
type Store interface {
	Get(ctx context.Context, id string) (models.Upload, error)
	Save(ctx context.Context, up models.Upload) error
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*BoltStore)(nil)
	_ Store = (*PGStore)(nil)
)

// Open выбирает реализацию по схеме DSN:
//   - memory:// — в памяти;
//   - bolt://<path> — файл BoltDB;
//   - postgres://, postgresql:// — Postgres.
func Open(ctx context.Context, dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "" || strings.HasPrefix(dsn, "memory://"):
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "bolt://"):
		path := strings.TrimPrefix(dsn, "bolt://")
		if path == "" {
			return nil, fmt.Errorf("bolt dsn has no path")
		}
		return OpenBolt(path)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported meta dsn %q", dsn)
	}
}

// NeedsMigrations сообщает, нужны ли для DSN SQL-миграции.
func NeedsMigrations(dsn string) bool {
	dsn = strings.TrimSpace(dsn)
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
