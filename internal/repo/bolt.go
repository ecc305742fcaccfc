package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sir_venger/resumable/internal/models"
)

var uploadsBucket = []byte("uploads")

// BoltStore хранит журнал загрузок в файле BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt открывает (или создаёт) базу и бакет журнала.
func OpenBolt(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(uploadsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Get возвращает запись по идентификатору.
func (s *BoltStore) Get(_ context.Context, id string) (models.Upload, error) {
	var up models.Upload
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(uploadsBucket).Get([]byte(id))
		if data == nil {
			return models.ErrNotFound
		}
		return json.Unmarshal(data, &up)
	})
	if err != nil {
		return models.Upload{}, err
	}

	return up, nil
}

// Save записывает запись, перезаписывая предыдущую с тем же идентификатором.
func (s *BoltStore) Save(_ context.Context, up models.Upload) error {
	if up.Identifier == "" {
		return fmt.Errorf("upload identifier is empty")
	}

	encoded, err := json.Marshal(up)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(uploadsBucket).Put([]byte(up.Identifier), encoded)
	})
}

// Close закрывает базу.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
