package resumable

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// SweepStats — итог одного прохода сборщика.
type SweepStats struct {
	Sessions int   `json:"sessions"`
	Chunks   int64 `json:"chunks"`
	Incoming int   `json:"incoming"`
}

// RunSweeper периодически удаляет брошенные сессии, пока не отменён ctx.
func (e *Engine) RunSweeper(ctx context.Context, ttl, every time.Duration) error {
	if every <= 0 || ttl <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := e.Sweep(ctx, ttl); err != nil {
				e.log.WithError(err).Warn("sweep failed")
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Sweep удаляет сессии, самый свежий чанк которых старше ttl, и осиротевшие принимаемые файлы.
func (e *Engine) Sweep(ctx context.Context, ttl time.Duration) (SweepStats, error) {
	var stats SweepStats

	infos, err := e.store.entries()
	if err != nil {
		return stats, err
	}

	now := time.Now()
	newest := map[string]time.Time{}
	for _, info := range infos {
		entry, ok := parseEntryName(info.Name())
		if !ok {
			continue
		}
		if entry.incoming {
			if now.Sub(info.ModTime()) >= ttl {
				if err := os.Remove(filepath.Join(e.store.Dir(), info.Name())); err == nil {
					stats.Incoming++
				}
			}
			continue
		}
		if info.ModTime().After(newest[entry.identifier]) {
			newest[entry.identifier] = info.ModTime()
		}
	}

	for id, ts := range newest {
		if now.Sub(ts) < ttl {
			continue
		}
		removed, purged, err := e.purge(ctx, id, ttl)
		if err != nil {
			return stats, err
		}
		if purged {
			stats.Sessions++
			stats.Chunks += removed
		}
	}

	if stats.Sessions > 0 || stats.Incoming > 0 {
		e.log.WithFields(logrus.Fields{
			"sessions": stats.Sessions,
			"chunks":   stats.Chunks,
			"incoming": stats.Incoming,
		}).Info("stale uploads swept")
	}

	return stats, nil
}

// purge под блокировкой идентификатора перечитывает чанки сессии и удаляет их все, включая стоящие
// после пропуска, которые Clean не видит. Если пока ждали блокировку пришёл свежий чанк, сессия
// живая и остаётся на месте: purged == false.
func (e *Engine) purge(ctx context.Context, id string, ttl time.Duration) (int64, bool, error) {
	unlock, err := e.locks.Lock(ctx, id)
	if err != nil {
		return 0, false, err
	}
	defer unlock()

	numbers, newest, err := e.store.sessionChunks(id)
	if err != nil {
		return 0, false, err
	}
	if len(numbers) == 0 || time.Since(newest) < ttl {
		return 0, false, nil
	}

	removed, err := e.store.Clean(ctx, id, e.cleanOptions(id))
	if err != nil {
		return removed, false, err
	}
	for _, n := range numbers {
		if err := e.store.Remove(id, n); err == nil {
			removed++
		}
	}
	e.tracker.Forget(id)

	return removed, true, nil
}
