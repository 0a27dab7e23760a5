package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"dealflow-ingest/metrics"
	"dealflow-ingest/schema"
	"dealflow-ingest/services"
	"dealflow-ingest/storage"
	"dealflow-ingest/utils"
)

// Server exposes the ingestion pipeline over HTTP.
type Server struct {
	pipelines map[schema.ID]*services.Pipeline
	store     storage.Store
	metrics   *metrics.Registry
	limiter   *utils.Limiter
	opts      services.UploadOptions
	maxBytes  int64
	logger    *utils.Logger
}

// Options configures a Server.
type Options struct {
	Upload               services.UploadOptions
	MaxConcurrentUploads int
	MaxUploadBytes       int64
}

// NewServer builds a Server. store may be nil, making every upload a dry run.
func NewServer(pipelines map[schema.ID]*services.Pipeline, store storage.Store, reg *metrics.Registry, opts Options, logger *utils.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	return &Server{
		pipelines: pipelines,
		store:     store,
		metrics:   reg,
		limiter:   utils.NewLimiter(opts.MaxConcurrentUploads),
		opts:      opts.Upload,
		maxBytes:  opts.MaxUploadBytes,
		logger:    logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/ingest/{schema}", s.handleIngest)
	mux.HandleFunc("POST /v1/mapping/{schema}", s.handleMapping)
	mux.HandleFunc("GET /v1/export/{schema}", s.handleExport)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) pipeline(w http.ResponseWriter, r *http.Request) (*services.Pipeline, bool) {
	def, err := schema.Lookup(r.PathValue("schema"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	p, ok := s.pipelines[def.ID]
	if !ok {
		writeError(w, http.StatusNotFound, "schema not served: "+string(def.ID))
		return nil, false
	}
	return p, true
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}
	if !s.limiter.TryAcquire() {
		writeError(w, http.StatusTooManyRequests, "too many uploads in progress")
		return
	}
	defer s.limiter.Release()

	opts := s.opts
	if dry, _ := strconv.ParseBool(r.URL.Query().Get("dry_run")); dry {
		opts.DryRun = true
	}
	if v := r.URL.Query().Get("ignore_duplicates"); v != "" {
		opts.IgnoreDuplicates, _ = strconv.ParseBool(v)
	}

	uploader := services.NewUploader(p, s.store, s.metrics, opts, s.logger)
	summary, err := uploader.Upload(r.Context(), http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		var pe *services.ParseError
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.As(err, &pe):
			writeError(w, http.StatusUnprocessableEntity, pe.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleMapping(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}
	table, err := services.Parse(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p.ResolveMapping(r.Context(), table))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pipeline(w, r)
	if !ok {
		return
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}
	def := p.Definition()
	records, err := s.store.FetchAll(r.Context(), def)
	if err != nil {
		s.logger.Error("[api] Export %s failed: %v", def.Table, err)
		writeError(w, http.StatusInternalServerError, storage.FriendlyMessage(err))
		return
	}

	w.Header().Set("Content-Type", storage.CSVContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+def.Table+`.csv"`)
	cw := storage.NewCSVStreamWriter(w)
	if err := cw.WriteRecords(def, records); err != nil {
		s.logger.Error("[api] Export %s write failed: %v", def.Table, err)
	}
	_ = cw.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if sq, ok := s.store.(*storage.SQLStore); ok && sq != nil {
		if err := sq.DB().PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unreachable: "+err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"uploads": s.limiter.InFlight(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
