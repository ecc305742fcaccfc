package resthttp

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/sir_venger/resumable/internal/models"
	"github.com/sir_venger/resumable/pkg/httperrors"
)

// getChunk отвечает, загружен ли уже чанк.
func (s *Server) getChunk(w http.ResponseWriter, r *http.Request) {
	p := chunkParams(r.URL.Query().Get)
	res := s.Engine.Get(r.Context(), p)

	s.log.WithFields(logrus.Fields{
		"identifier": res.Identifier,
		"chunk":      p.ChunkNumber,
		"status":     res.Status,
	}).Debug("GET chunk")

	code := httperrors.StatusCode(res.Status)
	w.WriteHeader(code)
	if code != http.StatusNoContent {
		_, _ = w.Write([]byte(res.Status))
	}
}

// postChunk принимает чанк и делегирует обработку движку.
func (s *Server) postChunk(w http.ResponseWriter, r *http.Request) {
	p, file, err := s.readChunkForm(w, r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, string(models.StatusFileTooBig), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.Engine.Post(r.Context(), p, file)
	log := s.log.WithFields(logrus.Fields{
		"identifier": res.Identifier,
		"chunk":      p.ChunkNumber,
		"status":     res.Status,
	})
	if err != nil {
		log.WithError(err).Error("POST chunk failed")
		httperrors.Write(w, err)
		return
	}
	log.Info("POST chunk")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(httperrors.StatusCode(res.Status))
	_, _ = w.Write([]byte(res.Status))
}
