package resthttp

import (
	"net/http"
	"time"
)

// gcOnce вручную запускает сбор брошенных сессий. ttl можно переопределить query-параметром.
func (s *Server) gcOnce(w http.ResponseWriter, r *http.Request) {
	ttl := s.Cfg.GCTTL
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			http.Error(w, "invalid ttl", http.StatusBadRequest)
			return
		}
		ttl = d
	}

	stats, err := s.Engine.Sweep(r.Context(), ttl)
	if err != nil {
		s.log.WithError(err).Error("manual gc failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.WithField("sessions", stats.Sessions).Info("manual gc done")
	writeJSON(w, http.StatusOK, stats)
}
