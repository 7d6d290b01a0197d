package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"wikical/internal/config"
	"wikical/internal/ics"
	appLog "wikical/internal/log"
	"wikical/internal/model"
	"wikical/internal/wiki"
)

// SnapshotSource produces a fresh wiki snapshot. *wiki.Client satisfies it.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*wiki.Snapshot, error)
}

// Server exposes the resolved event list as JSON and iCalendar.
type Server struct {
	cfg    *config.Config
	source SnapshotSource
	mux    *http.ServeMux
	now    func() time.Time

	// refreshMu serializes upstream refreshes; coldGroup collapses
	// concurrent on-demand refreshes of a stale cache into one fetch.
	refreshMu sync.Mutex
	coldGroup singleflight.Group

	snapMu    sync.RWMutex
	snap      *wiki.Snapshot
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, source SnapshotSource) *Server {
	s := &Server{
		cfg:    cfg,
		source: source,
		mux:    http.NewServeMux(),
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="wikical", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/versions", s.handleVersions)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
	s.mux.HandleFunc("/calendar.ics", s.handleCalendar)
}

// Refresh fetches a new snapshot and replaces the cached one. On failure
// the previous snapshot is kept.
func (s *Server) Refresh(ctx context.Context) (*wiki.Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	s.snapMu.Lock()
	s.snap = snap
	s.updatedAt = s.now()
	s.snapMu.Unlock()

	return snap, nil
}

// current returns the cached snapshot when it is younger than the TTL,
// refreshing it otherwise.
func (s *Server) current(ctx context.Context) (*wiki.Snapshot, error) {
	if snap := s.fresh(); snap != nil {
		return snap, nil
	}

	v, err, _ := s.coldGroup.Do("snapshot", func() (any, error) {
		// A flight that finished just before this one may have filled it.
		if snap := s.fresh(); snap != nil {
			return snap, nil
		}
		return s.Refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*wiki.Snapshot), nil
}

// fresh returns the cached snapshot if it is younger than the TTL.
func (s *Server) fresh() *wiki.Snapshot {
	ttl := time.Duration(s.cfg.CacheTTLSeconds) * time.Second

	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	if s.snap != nil && s.now().Sub(s.updatedAt) < ttl {
		return s.snap
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events    []model.Event `json:"events"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// versionsResponse is the JSON response shape for /api/versions.
type versionsResponse struct {
	Versions  []model.VersionInterval `json:"versions"`
	FetchedAt time.Time               `json:"fetched_at"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	snap, err := s.current(r.Context())
	if err != nil {
		appLog.Error("api events: refresh failed", err)
		writeError(w, http.StatusBadGateway, "failed to load wiki events")
		return
	}
	events := snap.Events
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events, FetchedAt: snap.FetchedAt})
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	snap, err := s.current(r.Context())
	if err != nil {
		appLog.Error("api versions: refresh failed", err)
		writeError(w, http.StatusBadGateway, "failed to load wiki versions")
		return
	}
	versions := snap.Versions
	if versions == nil {
		versions = []model.VersionInterval{}
	}
	writeJSON(w, http.StatusOK, versionsResponse{Versions: versions, FetchedAt: snap.FetchedAt})
}

// handleRefresh forces an upstream fetch regardless of cache age.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	snap, err := s.Refresh(r.Context())
	if err != nil {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusBadGateway, "failed to refresh wiki events")
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: snap.Events, FetchedAt: snap.FetchedAt})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	snap, err := s.current(r.Context())
	if err != nil {
		appLog.Error("calendar: refresh failed", err)
		http.Error(w, "failed to load wiki events", http.StatusBadGateway)
		return
	}

	body := ics.Render(snap.Events, ics.RenderOptions{
		Domain: s.cfg.CalendarDomain,
		Name:   "wikical",
		Stamp:  snap.FetchedAt,
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method || (method == http.MethodGet && r.Method == http.MethodHead) {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
