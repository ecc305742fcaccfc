package resthttp

import (
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sir_venger/resumable/pkg/httperrors"
)

type deleteUploadResp struct {
	Identifier string `json:"identifier"`
	Removed    int64  `json:"removed"`
}

// getUpload отдаёт запись журнала о собранном файле.
func (s *Server) getUpload(w http.ResponseWriter, r *http.Request) {
	up, err := s.Engine.Upload(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	writeJSON(w, http.StatusOK, up)
}

// getUploadContent стримит собранный файл прямо из чанков.
func (s *Server) getUploadContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identifier")
	up, err := s.Engine.Upload(r.Context(), id)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	out := &lazyHeaderWriter{w: w, header: func(h http.Header) {
		h.Set("Content-Type", "application/octet-stream")
		h.Set("Content-Length", strconv.FormatInt(up.TotalSize, 10))
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": filepath.Base(up.Filename),
		}))
	}}

	if err := s.Engine.Stream(r.Context(), id, out); err != nil {
		s.log.WithError(err).WithField("identifier", up.Identifier).Warn("stream upload failed")
		if !out.wrote {
			httperrors.Write(w, err)
		}
	}
}

// lazyHeaderWriter выставляет заголовки файла только при первой записи, чтобы ошибка до начала стрима
// ушла обычным ответом.
type lazyHeaderWriter struct {
	w      http.ResponseWriter
	header func(http.Header)
	wrote  bool
}

func (l *lazyHeaderWriter) Write(p []byte) (int, error) {
	if !l.wrote {
		l.wrote = true
		l.header(l.w.Header())
	}
	return l.w.Write(p)
}

// deleteUpload удаляет все чанки сессии.
func (s *Server) deleteUpload(w http.ResponseWriter, r *http.Request) {
	removed, err := s.Engine.Clean(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, deleteUploadResp{
		Identifier: chi.URLParam(r, "identifier"),
		Removed:    removed,
	})
}
