package models

// Status — словарь результатов, которые ядро отдаёт транспортному слою.
type Status string

// Вердикты валидатора.
const (
	StatusValid                   Status = "VALID"
	StatusInvalidRequest          Status = "INVALID_REQUEST"
	StatusInvalidChunk            Status = "INVALID_CHUNK"
	StatusFileTooBig              Status = "FILE_TOO_BIG"
	StatusChunkSizeInvalid        Status = "CHUNK_SIZE_INVALID"
	StatusFinalChunkSizeInvalid   Status = "FINAL_CHUNK_SIZE_INVALID"
	StatusFileSizeInvalid         Status = "FILE_SIZE_INVALID"
	StatusInvalidResumableRequest Status = "INVALID_RESUMABLE_REQUEST"
)

// Результаты чтения и записи чанков.
const (
	StatusFound      Status = "found"
	StatusNotFound   Status = "not_found"
	StatusPartlyDone Status = "partly_done"
	StatusDone       Status = "done"
)

// Accepted сообщает, что запрос на запись принят и чанк сохранён.
func (s Status) Accepted() bool {
	return s == StatusPartlyDone || s == StatusDone
}

func (s Status) String() string { return string(s) }
