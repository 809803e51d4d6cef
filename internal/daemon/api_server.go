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

	"github.com/gorilla/mux"

	"shikiwatch/internal/api"
	"shikiwatch/internal/logging"
	"shikiwatch/internal/matcher"
	"shikiwatch/internal/scrobble"
	"shikiwatch/internal/services"
)

const (
	maxRequestBody     = 64 << 10
	defaultSuggestions = matcher.DefaultSuggestionLimit
	defaultHistory     = 20
)

// backend is the daemon surface exposed over HTTP.
type backend interface {
	Status(ctx context.Context) api.DaemonStatus
	Scrobble(ctx context.Context, req api.ScrobbleRequest) (scrobble.Result, error)
	CancelScrobble() int
	Refresh(ctx context.Context) (int, error)
	InvalidateSynonyms(ctx context.Context) (int, error)
	Suggest(ctx context.Context, query string, limit int) ([]matcher.Match, error)
	History(ctx context.Context, limit int) (api.HistoryResponse, error)
	TestNotification(ctx context.Context) (bool, string, error)
}

type apiServer struct {
	bind    string
	logger  *slog.Logger
	backend backend
	router  *mux.Router

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind, token string, b backend, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:    strings.TrimSpace(bind),
		logger:  logger,
		backend: b,
	}

	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusNotFound, "not found")
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	router := mux.NewRouter()
	router.NotFoundHandler = notFound
	router.MethodNotAllowedHandler = notAllowed

	// Subrouters do not inherit the parent's error handlers.
	routes := router.PathPrefix("/api").Subrouter()
	routes.NotFoundHandler = notFound
	routes.MethodNotAllowedHandler = notAllowed
	routes.Use(authMiddleware(token))
	routes.HandleFunc("/status", srv.handleStatus).Methods(http.MethodGet)
	routes.HandleFunc("/scrobble", srv.handleScrobble).Methods(http.MethodPost)
	routes.HandleFunc("/cancel_scrobble", srv.handleCancel).Methods(http.MethodPost)
	routes.HandleFunc("/refresh", srv.handleRefresh).Methods(http.MethodPost)
	routes.HandleFunc("/synonyms/invalidate", srv.handleInvalidate).Methods(http.MethodPost)
	routes.HandleFunc("/suggest", srv.handleSuggest).Methods(http.MethodGet)
	routes.HandleFunc("/history", srv.handleHistory).Methods(http.MethodGet)
	routes.HandleFunc("/notifications/test", srv.handleTestNotification).Methods(http.MethodPost)
	srv.router = router

	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
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

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
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

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.backend.Status(r.Context()))
}

func (s *apiServer) handleScrobble(w http.ResponseWriter, r *http.Request) {
	var req api.ScrobbleRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Name) == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Episode <= 0 {
		s.writeError(w, http.StatusBadRequest, "episode is required")
		return
	}
	result, err := s.backend.Scrobble(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromResult(result))
}

func (s *apiServer) handleCancel(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.CancelResponse{Cancelled: s.backend.CancelScrobble()})
}

func (s *apiServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	n, err := s.backend.Refresh(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RefreshResponse{Entries: n})
}

func (s *apiServer) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	n, err := s.backend.InvalidateSynonyms(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.InvalidateResponse{Synonyms: n})
}

func (s *apiServer) handleSuggest(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, ok := s.limitParam(w, r, defaultSuggestions)
	if !ok {
		return
	}
	matches, err := s.backend.Suggest(r.Context(), query, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SuggestResponse{Query: query, Suggestions: api.FromMatches(matches)})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limitParam(w, r, defaultHistory)
	if !ok {
		return
	}
	resp, err := s.backend.History(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.backend.TestNotification(r.Context())
	if err != nil {
		s.log().Warn("test notification failed", logging.Error(err))
		message = message + ": " + err.Error()
	}
	s.writeJSON(w, http.StatusOK, api.NotificationTestResponse{Sent: sent, Message: message})
}

func (s *apiServer) limitParam(w http.ResponseWriter, r *http.Request, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusServiceUnavailable
	case errors.Is(err, services.ErrUnauthorized), errors.Is(err, services.ErrTransient):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.log().Warn("api request failed", logging.Error(err), logging.Int("status", status))
	}
	s.writeError(w, status, err.Error())
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
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
