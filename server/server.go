package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmpvdesign/dsa-scrape/config"
	"github.com/mmpvdesign/dsa-scrape/districts"
	"github.com/mmpvdesign/dsa-scrape/models"
	"github.com/mmpvdesign/dsa-scrape/pipeline"
	"github.com/mmpvdesign/dsa-scrape/scraper"
)

// RunState is the lifecycle of the most recent scrape run.
type RunState string

const (
	StateIdle    RunState = "idle"
	StateRunning RunState = "running"
	StateDone    RunState = "done"
	StateFailed  RunState = "failed"
)

// RunStatus is the JSON shape reported by the run endpoints.
type RunStatus struct {
	State      RunState  `json:"state"`
	ClientIDs  []string  `json:"client_ids,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Records    int       `json:"records"`
	Districts  int       `json:"districts"`
	Retries    int       `json:"retries"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`

	ErrorsByType map[string]int `json:"errors_by_type,omitempty"`
	FailedLinks  []string       `json:"failed_links,omitempty"`
	DebugLog     []string       `json:"debug_log,omitempty"`
}

type runRequest struct {
	ClientIDs    []string `json:"client_ids"`
	Detailed     *bool    `json:"detailed,omitempty"`
	Format       string   `json:"format,omitempty"`
	DebugCapture bool     `json:"debug_capture,omitempty"`
}

// Server exposes scrape runs and their outputs over HTTP. At most one
// run is in flight at a time; a second trigger while one is running
// gets a 409.
type Server struct {
	cfg *config.Config

	mu      sync.Mutex
	status  RunStatus
	cancel  context.CancelFunc
	scraper *scraper.Scraper
}

func New(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		status: RunStatus{State: StateIdle},
	}
}

// Router wires the API routes. Metrics from the most recent run's
// scraper are served on /metrics.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/metrics", s.metricsHandler).Methods(http.MethodGet)

	apiV1 := router.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/runs", s.startRunHandler).Methods(http.MethodPost)
	apiV1.HandleFunc("/runs/current", s.runStatusHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/results", s.listResultsHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/results/{name}", s.downloadResultHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/districts", s.districtsHandler).Methods(http.MethodGet)

	return router
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) startRunHandler(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.ClientIDs) == 0 {
		respondWithError(w, http.StatusBadRequest, "client_ids is required")
		return
	}

	cfg := *s.cfg
	cfg.ClientIDs = req.ClientIDs
	if req.Detailed != nil {
		cfg.Detailed = *req.Detailed
	}
	if req.Format != "" {
		cfg.OutputFormat = req.Format
	}
	if req.DebugCapture {
		cfg.DebugCapture = true
	}
	if err := cfg.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	if s.status.State == StateRunning {
		s.mu.Unlock()
		respondWithError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.status = RunStatus{
		State:     StateRunning,
		ClientIDs: req.ClientIDs,
		StartedAt: time.Now(),
	}
	s.mu.Unlock()

	go s.execute(ctx, cancel, &cfg)

	respondWithJSON(w, http.StatusAccepted, s.snapshot())
}

func (s *Server) execute(ctx context.Context, cancel context.CancelFunc, cfg *config.Config) {
	defer cancel()

	sc, err := scraper.New(cfg)
	if err != nil {
		s.finish(RunStatus{State: StateFailed, Error: err.Error()}, nil)
		return
	}
	s.mu.Lock()
	s.scraper = sc
	s.mu.Unlock()

	result, err := sc.Run(ctx, cfg.ClientIDs)
	if cfg.DebugCapture {
		defer func() {
			s.mu.Lock()
			s.status.DebugLog = sc.Client().DebugLog()
			s.mu.Unlock()
		}()
	}
	if err != nil {
		s.finish(RunStatus{State: StateFailed, Error: err.Error()}, result)
		return
	}

	path, err := pipeline.Export(result, pipeline.ExportOptions{
		Dir:       cfg.OutputDir,
		Format:    cfg.OutputFormat,
		Detailed:  cfg.Detailed,
		ClientIDs: cfg.ClientIDs,
	})
	if err != nil {
		s.finish(RunStatus{State: StateFailed, Error: err.Error()}, result)
		return
	}

	s.finish(RunStatus{State: StateDone, OutputPath: path}, result)
}

func (s *Server) finish(final RunStatus, result *models.ScrapeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	final.ClientIDs = s.status.ClientIDs
	final.StartedAt = s.status.StartedAt
	final.FinishedAt = time.Now()
	if result != nil {
		final.Records = len(result.Projects)
		final.Districts = result.Districts
		final.Retries = result.RetryCount
		final.ErrorsByType = result.ErrorsByType
		final.FailedLinks = result.FailedLinks
	}
	s.status = final

	slog.Info("run finished",
		"state", final.State,
		"records", final.Records,
		"output", final.OutputPath,
		"error", final.Error)
}

func (s *Server) snapshot() RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Stop cancels any in-flight run.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Server) runStatusHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.snapshot())
}

type resultFile struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

func (s *Server) listResultsHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.cfg.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			respondWithJSON(w, http.StatusOK, []resultFile{})
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	files := make([]resultFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "dsa_projects_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, resultFile{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Modified.After(files[j].Modified)
	})
	respondWithJSON(w, http.StatusOK, files)
}

func (s *Server) downloadResultHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	// Reject anything that could escape the output directory.
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		respondWithError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	if !strings.HasPrefix(name, "dsa_projects_") {
		respondWithError(w, http.StatusNotFound, "no such result")
		return
	}

	path := filepath.Join(s.cfg.OutputDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		respondWithError(w, http.StatusNotFound, "no such result")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	http.ServeFile(w, r, path)
}

func (s *Server) districtsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := districts.LoadLatest(s.cfg.OutputDir)
	if err != nil {
		if errors.Is(err, districts.ErrNoCatalog) {
			respondWithError(w, http.StatusNotFound, "no district catalog available")
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if county := r.URL.Query().Get("county"); county != "" {
		filtered := list[:0:0]
		for _, d := range list {
			if d.CountyCode == county {
				filtered = append(filtered, d)
			}
		}
		list = filtered
	}
	respondWithJSON(w, http.StatusOK, list)
}

// metricsHandler exposes the prometheus registry of the most recent
// run's scraper, falling back to the default registry before the first
// run starts.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sc := s.scraper
	s.mu.Unlock()

	if sc != nil && sc.Metrics != nil && sc.Metrics.Registry != nil {
		promhttp.HandlerFor(sc.Metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
		return
	}
	promhttp.Handler().ServeHTTP(w, r)
}
