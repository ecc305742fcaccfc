package meta

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sir_venger/resumable/internal/models"
)

const uploadsTable = "uploads"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGStore хранит журнал загрузок в Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres создаёт пул подключений. Таблица создаётся миграциями (cmd/migrate).
func OpenPostgres(ctx context.Context, dsn string) (*PGStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("meta dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	return &PGStore{pool: pool}, nil
}

// Get возвращает запись по идентификатору.
func (s *PGStore) Get(ctx context.Context, id string) (models.Upload, error) {
	sqlStr, args, err := psql.
		Select("identifier", "filename", "destination", "total_size", "chunk_size", "chunks", "completed_at").
		From(uploadsTable).
		Where(sq.Eq{"identifier": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return models.Upload{}, fmt.Errorf("build select: %w", err)
	}

	var up models.Upload
	err = s.pool.QueryRow(ctx, sqlStr, args...).Scan(
		&up.Identifier, &up.Filename, &up.Destination, &up.TotalSize, &up.ChunkSize, &up.Chunks, &up.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Upload{}, models.ErrNotFound
		}
		return models.Upload{}, fmt.Errorf("scan upload row: %w", err)
	}

	return up, nil
}

// Save делает UPSERT записи.
func (s *PGStore) Save(ctx context.Context, up models.Upload) error {
	sqlStr, args, err := psql.
		Insert(uploadsTable).
		Columns("identifier", "filename", "destination", "total_size", "chunk_size", "chunks", "completed_at").
		Values(up.Identifier, up.Filename, up.Destination, up.TotalSize, up.ChunkSize, up.Chunks, up.CompletedAt).
		Suffix(`
			ON CONFLICT (identifier) DO UPDATE
			SET filename     = EXCLUDED.filename,
				destination  = EXCLUDED.destination,
				total_size   = EXCLUDED.total_size,
				chunk_size   = EXCLUDED.chunk_size,
				chunks       = EXCLUDED.chunks,
				completed_at = EXCLUDED.completed_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert sql: %w", err)
	}

	if _, err = s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("exec upsert: %w", err)
	}

	return nil
}

// Close освобождает подключения пула.
func (s *PGStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
