package resthttp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/sir_venger/resumable/internal/config"
	meta "github.com/sir_venger/resumable/internal/repo"
	"github.com/sir_venger/resumable/internal/resumable"
)

type Server struct {
	Engine *resumable.Engine
	Ledger meta.Store
	Cfg    *config.Config
	log    logrus.FieldLogger
}

// NewServer конструктор
func NewServer(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (http.Handler, *Server, error) {
	ledger, err := meta.Open(ctx, cfg.MetaDSN)
	if err != nil {
		return nil, nil, err
	}

	engine, err := resumable.New(resumable.Config{
		TempDir:            cfg.TempDir,
		UploadDir:          cfg.UploadDir,
		MaxFileSize:        int64(cfg.MaxFileSize),
		ScanTimeout:        cfg.ScanTimeout,
		AssembleTimeout:    cfg.AssembleTimeout,
		CleanAfterAssemble: cfg.CleanAfterAssemble,
	}, ledger, log)
	if err != nil {
		_ = ledger.Close()
		return nil, nil, err
	}

	srv := &Server{
		Engine: engine,
		Ledger: ledger,
		Cfg:    cfg,
		log:    log,
	}

	return srv.routes(), srv, nil
}

// routes регистрирует обработчики чанков, журнала, здоровья и GC.
func (s *Server) routes() http.Handler {
	rtr := chi.NewRouter()
	rtr.Use(middleware.RequestID, middleware.Recoverer, s.logRequests, cors)

	rtr.Get("/status", s.status)
	rtr.Get("/health", s.health)

	rtr.Route("/chunks", func(cr chi.Router) {
		cr.Get("/", s.getChunk)
		cr.Post("/", s.postChunk)
	})

	rtr.Route("/uploads/{identifier}", func(ur chi.Router) {
		ur.Get("/", s.getUpload)
		ur.Get("/content", s.getUploadContent)
		ur.Delete("/", s.deleteUpload)
	})

	rtr.Post("/admin/gc", s.gcOnce)
	rtr.Get("/admin/config", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, http.StatusOK, s.Cfg) })

	if s.Cfg.PublicDir != "" {
		rtr.Handle("/*", http.FileServer(http.Dir(s.Cfg.PublicDir)))
	}

	return rtr
}

// Close освобождает журнал.
func (s *Server) Close() error {
	return s.Ledger.Close()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
