package resumable

import "context"

// CleanOptions — колбэки очистки.
type CleanOptions struct {
	// OnError вызывается на каждую неудачную попытку удаления; обход продолжается.
	OnError func(chunkNumber int64, err error)
	// OnDone вызывается по окончании обхода с числом удалённых чанков.
	OnDone func(removed int64)
}

// Clean удаляет чанки 1, 2, ... до первого отсутствующего номера.
// Операция необратима.
func (s *ChunkStore) Clean(ctx context.Context, identifier string, opts CleanOptions) (int64, error) {
	var removed int64
	for n := int64(1); s.Exists(identifier, n); n++ {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.Remove(identifier, n); err != nil {
			if opts.OnError != nil {
				opts.OnError(n, err)
			}
			continue
		}
		removed++
	}

	if opts.OnDone != nil {
		opts.OnDone(removed)
	}

	return removed, nil
}
