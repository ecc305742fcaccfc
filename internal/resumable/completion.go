package resumable

import "context"

// IsComplete последовательно проверяет наличие чанков 1..numberOfChunks и возвращает true,
// только если пропусков нет. Отсутствие чанка не отличается от его параллельного удаления.
func (s *ChunkStore) IsComplete(ctx context.Context, identifier string, numberOfChunks int64) (bool, error) {
	for n := int64(1); n <= numberOfChunks; n++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !s.Exists(identifier, n) {
			return false, nil
		}
	}

	return true, nil
}

// present возвращает номера чанков из 1..numberOfChunks, которые есть на диске.
func (s *ChunkStore) present(ctx context.Context, identifier string, numberOfChunks int64) ([]int64, error) {
	var out []int64
	for n := int64(1); n <= numberOfChunks; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.Exists(identifier, n) {
			out = append(out, n)
		}
	}

	return out, nil
}
