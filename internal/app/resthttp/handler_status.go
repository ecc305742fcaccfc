package resthttp

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/docker/go-units"
)

// healthStats — payload ответа /health.
type healthStats struct {
	OK         bool   `json:"ok"`
	ChunkFiles int64  `json:"chunk_files"`
	ChunkBytes int64  `json:"chunk_bytes"`
	Human      string `json:"human"`
}

// status — простейшая проверка живости.
func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

// health суммирует объём каталога чанков.
func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	var stats healthStats
	err := filepath.WalkDir(s.Engine.Store().Dir(), func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			// чанк успели переименовать или удалить
			return nil
		}
		if err != nil {
			return err
		}
		stats.ChunkFiles++
		stats.ChunkBytes += info.Size()
		return nil
	})
	if err != nil {
		s.log.WithError(err).Warn("health walk failed")
		writeJSON(w, http.StatusServiceUnavailable, healthStats{})
		return
	}

	stats.OK = true
	stats.Human = units.HumanSize(float64(stats.ChunkBytes))
	writeJSON(w, http.StatusOK, stats)
}
