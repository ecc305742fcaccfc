package resumable

import "github.com/sir_venger/resumable/internal/models"

// UnknownSize передаётся в Validate, когда фактический размер чанка неизвестен (проверка статуса).
const UnknownSize int64 = -1

// Validate проверяет заявленные метаданные чанка. Правила применяются по порядку, побеждает первое.
// maxFileSize <= 0 отключает ограничение на размер файла.
func Validate(p models.ChunkParams, maxFileSize, actualSize int64) models.Status {
	if p.ChunkNumber <= 0 || p.ChunkSize <= 0 || p.TotalSize <= 0 ||
		SanitizeIdentifier(p.Identifier) == "" || p.Filename == "" {
		return models.StatusInvalidRequest
	}

	numberOfChunks := p.NumberOfChunks()
	if p.ChunkNumber > numberOfChunks {
		return models.StatusInvalidChunk
	}

	if maxFileSize > 0 && p.TotalSize > maxFileSize {
		return models.StatusFileTooBig
	}

	if actualSize == UnknownSize {
		return models.StatusValid
	}

	if p.ChunkNumber < numberOfChunks && actualSize != p.ChunkSize {
		return models.StatusChunkSizeInvalid
	}
	if numberOfChunks > 1 && p.ChunkNumber == numberOfChunks && actualSize != FinalChunkSize(p) {
		return models.StatusFinalChunkSizeInvalid
	}
	if numberOfChunks == 1 && actualSize != p.TotalSize {
		return models.StatusFileSizeInvalid
	}

	return models.StatusValid
}

// FinalChunkSize — ожидаемый размер последнего чанка многочанковой сессии: (total mod chunk) + chunk.
// Число чанков округляется вниз, поэтому последний чанк забирает остаток целиком.
func FinalChunkSize(p models.ChunkParams) int64 {
	return p.TotalSize%p.ChunkSize + p.ChunkSize
}
