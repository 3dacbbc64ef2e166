package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"adacta/internal/api"
	"adacta/internal/config"
	"adacta/internal/index"
	"adacta/internal/logging"
	"adacta/internal/storage"
)

// maxUploadBytes caps multipart uploads. Scanned archives rarely exceed a
// few hundred megabytes per document.
const maxUploadBytes = 1 << 30

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/search", authMiddleware(token, srv.handleSearch))
	mux.HandleFunc("/api/inbox", authMiddleware(token, srv.handleInbox))
	mux.HandleFunc("/api/bundles", authMiddleware(token, srv.handleBundles))
	mux.HandleFunc("/api/bundles/", authMiddleware(token, srv.handleBundle))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       120 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())

	checks := make([]api.CheckResult, len(status.Checks))
	for i, check := range status.Checks {
		checks[i] = api.CheckResult{Name: check.Name, Passed: check.Passed, Detail: check.Detail}
	}
	stages := make([]api.StageHealth, len(status.Stages))
	for i, stage := range status.Stages {
		stages[i] = api.StageHealth{Name: stage.Name, Pending: stage.Pending, DeadLettered: stage.DeadLettered}
	}

	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		StorageDir:   status.StorageDir,
		IndexPath:    status.IndexPath,
		LockFilePath: status.LockFilePath,
		Documents:    status.Documents,
		Stages:       stages,
		Checks:       checks,
	})
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))

	entries, err := s.daemon.index.Search(r.Context(), index.Query{
		Text:  query.Get("q"),
		Tags:  query["tag"],
		Limit: limit,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SearchResponse{Results: entriesToAPI(entries)})
}

func (s *apiServer) handleInbox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries, err := s.daemon.index.Inbox(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SearchResponse{Results: entriesToAPI(entries)})
}

func (s *apiServer) handleBundles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listBundles(w, r)
	case http.MethodPost:
		s.uploadBundle(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listBundles(w http.ResponseWriter, r *http.Request) {
	ids, err := s.daemon.store.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	bundles := make([]api.Bundle, 0, len(ids))
	for _, id := range ids {
		bundle, err := s.daemon.store.Get(id)
		if err != nil {
			continue
		}
		payload, err := bundleToAPI(bundle, false)
		if err != nil {
			continue
		}
		bundles = append(bundles, payload)
	}
	s.writeJSON(w, http.StatusOK, api.BundleListResponse{Bundles: bundles})
}

func (s *apiServer) uploadBundle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("document")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "multipart field \"document\" is required")
		return
	}
	defer file.Close()

	tags := r.MultipartForm.Value["tag"]
	bundle, err := s.daemon.Upload(r.Context(), header.Filename, file, tags)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payload, err := bundleToAPI(bundle, true)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.BundleResponse{Bundle: payload})
}

// handleBundle routes /api/bundles/{id}[/manifest|/fragments[/{name}]|/requeue].
func (s *apiServer) handleBundle(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/bundles/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		s.writeError(w, http.StatusNotFound, "bundle not found")
		return
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid bundle id")
		return
	}

	switch {
	case len(parts) == 1:
		s.bundleByID(w, r, id)
	case len(parts) == 2 && parts[1] == "manifest":
		s.patchManifest(w, r, id)
	case len(parts) == 2 && parts[1] == "requeue":
		s.requeueBundle(w, r, id)
	case len(parts) == 2 && parts[1] == "fragments":
		s.listFragments(w, r, id)
	case len(parts) == 3 && parts[1] == "fragments":
		s.serveFragment(w, r, id, parts[2])
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) bundleByID(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	switch r.Method {
	case http.MethodGet:
		bundle, err := s.daemon.store.Get(id)
		if err != nil {
			s.bundleError(w, err)
			return
		}
		payload, err := bundleToAPI(bundle, true)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.BundleResponse{Bundle: payload})
	case http.MethodDelete:
		if err := s.daemon.Delete(r.Context(), id); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) patchManifest(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if r.Method != http.MethodPatch {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var patch api.ManifestPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid patch payload")
		return
	}

	bundle, err := s.daemon.store.Get(id)
	if err != nil {
		s.bundleError(w, err)
		return
	}

	if _, err := bundle.UpdateManifest(func(m *storage.Manifest) error {
		for _, tag := range patch.AddTags {
			m.AddTag(tag)
		}
		for _, tag := range patch.RemoveTags {
			m.RemoveTag(tag)
		}
		for key, value := range patch.SetProperties {
			m.SetProperty(key, value)
		}
		if patch.MarkReviewed {
			m.MarkReviewed(time.Now())
		}
		return nil
	}); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Keep the catalog in step with the manifest. Best effort: the index
	// stage rebuilds the entry on the next full processing run anyway.
	if err := s.daemon.index.Index(r.Context(), bundle); err != nil {
		s.log().Warn("catalog refresh failed", logging.Error(err))
	}

	payload, err := bundleToAPI(bundle, true)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.BundleResponse{Bundle: payload})
}

func (s *apiServer) requeueBundle(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	revived := s.daemon.Requeue(id)
	s.writeJSON(w, http.StatusOK, api.RequeueResponse{ID: id.String(), Revived: revived})
}

func (s *apiServer) listFragments(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	bundle, err := s.daemon.store.Get(id)
	if err != nil {
		s.bundleError(w, err)
		return
	}
	fragments, err := bundle.Fragments()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"fragments": fragments})
}

func (s *apiServer) serveFragment(w http.ResponseWriter, r *http.Request, id uuid.UUID, name string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	bundle, err := s.daemon.store.Get(id)
	if err != nil {
		s.bundleError(w, err)
		return
	}
	path, err := bundle.FragmentPath(name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !bundle.HasFragment(name) {
		s.writeError(w, http.StatusNotFound, "fragment not found")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *apiServer) bundleError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "bundle not found")
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
