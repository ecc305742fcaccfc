package resthttp

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sir_venger/resumable/internal/models"
)

// Поля протокола, имена зафиксированы клиентом.
const (
	fieldChunkNumber = "resumableChunkNumber"
	fieldChunkSize   = "resumableChunkSize"
	fieldTotalSize   = "resumableTotalSize"
	fieldIdentifier  = "resumableIdentifier"
	fieldFilename    = "resumableFilename"
	fieldFile        = "file"

	maxFieldBytes = 4 << 10
	// multipartOverhead — запас на заголовки частей и текстовые поля сверх размера файла.
	multipartOverhead = 1 << 20
)

// chunkParams собирает параметры протокола; нечисловые значения превращаются в 0.
func chunkParams(get func(string) string) models.ChunkParams {
	return models.ChunkParams{
		ChunkNumber: parseInt(get(fieldChunkNumber)),
		ChunkSize:   parseInt(get(fieldChunkSize)),
		TotalSize:   parseInt(get(fieldTotalSize)),
		Identifier:  get(fieldIdentifier),
		Filename:    get(fieldFilename),
	}
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// readChunkForm потоково читает multipart-форму: текстовые поля в память, часть file — во временный
// файл каталога чанков. Недостающие поля берутся из query. Без multipart-тела file == nil.
func (s *Server) readChunkForm(w http.ResponseWriter, r *http.Request) (models.ChunkParams, *models.FileHandle, error) {
	query := r.URL.Query()
	if s.Cfg.MaxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(s.Cfg.MaxFileSize)+multipartOverhead)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return chunkParams(query.Get), nil, nil
	}

	values := url.Values{}
	var file *models.FileHandle
	fail := func(err error) (models.ChunkParams, *models.FileHandle, error) {
		if file != nil {
			s.Engine.Store().RemoveIncoming(file.Path)
		}
		return models.ChunkParams{}, nil, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(err)
		}

		if part.FormName() == fieldFile && file == nil {
			file, err = s.receiveFile(part)
			_ = part.Close()
			if err != nil {
				return fail(err)
			}
			continue
		}

		b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
		_ = part.Close()
		if err != nil {
			return fail(err)
		}
		values.Set(part.FormName(), string(b))
	}

	get := func(key string) string {
		if v := values.Get(key); v != "" {
			return v
		}
		return query.Get(key)
	}

	return chunkParams(get), file, nil
}

func (s *Server) receiveFile(src io.Reader) (*models.FileHandle, error) {
	f, err := s.Engine.Store().CreateIncoming()
	if err != nil {
		return nil, err
	}

	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.Engine.Store().RemoveIncoming(f.Name())
		return nil, err
	}

	return &models.FileHandle{Path: f.Name(), Size: n}, nil
}
