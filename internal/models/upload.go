package models

import "time"

// ChunkParams — поля протокола, приходящие с каждым запросом на чанк.
type ChunkParams struct {
	ChunkNumber int64
	ChunkSize   int64
	TotalSize   int64
	Identifier  string
	Filename    string
}

// NumberOfChunks вычисляет число чанков сессии: max(floor(total/chunk), 1).
// Значение не кэшируется и пересчитывается на каждом запросе.
func (p ChunkParams) NumberOfChunks() int64 {
	if p.ChunkSize <= 0 {
		return 1
	}
	return max(p.TotalSize/p.ChunkSize, 1)
}

// FileHandle указывает на уже принятые транспортом байты чанка во временном файле.
type FileHandle struct {
	Path string
	Size int64
}

// ChunkResult возвращается ядром на чтение и запись.
type ChunkResult struct {
	Status     Status
	Filename   string
	Identifier string
	ChunkPath  string
}

// Upload — запись журнала о собранном файле.
type Upload struct {
	Identifier  string    `json:"identifier"`
	Filename    string    `json:"filename"`
	Destination string    `json:"destination"`
	TotalSize   int64     `json:"total_size"`
	ChunkSize   int64     `json:"chunk_size"`
	Chunks      int64     `json:"chunks"`
	CompletedAt time.Time `json:"completed_at"`
}
