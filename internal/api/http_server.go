package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tameer/internal/config"
	"tameer/internal/dashboard"
	"tameer/internal/intake"
	"tameer/internal/models"
	"tameer/internal/session"
	"tameer/internal/store"

	"github.com/rs/zerolog"
)

// HTTPServer is the JSON surface the intake form and the admin
// dashboard pages call.
type HTTPServer struct {
	cfg    config.ServerConfig
	intake *intake.Service
	dash   *dashboard.Dashboard
	gate   session.Gate
	reqs   requestReader
	logger *zerolog.Logger
	server *http.Server
}

// requestReader is the subset of the store the API touches directly
// (single-row reads and maintenance deletes that bypass the dashboard
// snapshot).
type requestReader interface {
	GetByRequestID(ctx context.Context, requestID string) (*models.ServiceRequest, error)
	Remove(ctx context.Context, requestID string) (bool, error)
	TestConnectivity(ctx context.Context) bool
}

func NewHTTPServer(
	cfg config.ServerConfig,
	rateCfg config.RateLimitConfig,
	intakeSvc *intake.Service,
	dash *dashboard.Dashboard,
	gate session.Gate,
	reqs requestReader,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:    cfg,
		intake: intakeSvc,
		dash:   dash,
		gate:   gate,
		reqs:   reqs,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", srv.handleHealth)
	mux.HandleFunc("/api/v1/catalog", srv.handleCatalog)
	mux.HandleFunc("/api/v1/requests", srv.handleRequests)
	mux.HandleFunc("/api/v1/requests/", srv.handleRequestByID)
	mux.HandleFunc("/api/v1/stats", srv.requireSession(srv.handleStats))
	mux.HandleFunc("/api/v1/login", srv.handleLogin)
	mux.HandleFunc("/api/v1/login/remembered", srv.handleRemembered)
	mux.HandleFunc("/api/v1/logout", srv.handleLogout)

	handler := requestIDMiddleware(loggingMiddleware(logger, newRateLimitMiddleware(rateCfg)(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// requireSession guards admin endpoints behind the session gate.
func (s *HTTPServer) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.gate.IsAuthenticated(r.Context()) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	connected := s.reqs.TestConnectivity(r.Context())
	status := http.StatusOK
	if !connected {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"connected": connected})
}

func (s *HTTPServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.intake.Catalog())
}

// handleRequests serves the public submit (POST) and the admin list
// (GET, session-gated, optional ?status= filter).
func (s *HTTPServer) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmit(w, r)
	case http.MethodGet:
		s.requireSession(s.handleList)(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var form intake.Form
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.intake.Submit(r.Context(), &form)
	if err != nil {
		var vErr *store.ValidationError
		if errors.As(err, &vErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": vErr.Fields})
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"request_id":          created.RequestID,
		"status":              created.Status,
		"reset_after_seconds": int(intake.ConfirmationDisplay.Seconds()),
	})
}

func (s *HTTPServer) handleList(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.Initialize(r.Context()); err != nil {
		s.writeDashError(w, err)
		return
	}

	statusFilter := strings.TrimSpace(r.URL.Query().Get("status"))
	if statusFilter == "" {
		statusFilter = dashboard.FilterAll
	}

	requests := s.dash.FilterByStatus(statusFilter)
	writeJSON(w, http.StatusOK, map[string]any{
		"requests": requests,
		"count":    len(requests),
	})
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.dash.Initialize(r.Context()); err != nil {
		s.writeDashError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.Stats())
}

// handleRequestByID routes /api/v1/requests/{id}, .../{id}/action and
// .../{id}/print. All are admin-only.
func (s *HTTPServer) handleRequestByID(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/requests/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	requestID := parts[0]
	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.requireSession(func(w http.ResponseWriter, r *http.Request) {
			s.handleDelete(w, r, requestID)
		})(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.requireSession(func(w http.ResponseWriter, r *http.Request) {
			s.handleGet(w, r, requestID)
		})(w, r)
	case len(parts) == 2 && parts[1] == "action" && r.Method == http.MethodPost:
		s.requireSession(func(w http.ResponseWriter, r *http.Request) {
			s.handleAction(w, r, requestID)
		})(w, r)
	case len(parts) == 2 && parts[1] == "print" && r.Method == http.MethodGet:
		s.requireSession(func(w http.ResponseWriter, r *http.Request) {
			s.handlePrint(w, r, requestID)
		})(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleGet(w http.ResponseWriter, r *http.Request, requestID string) {
	req, err := s.reqs.GetByRequestID(r.Context(), requestID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request, requestID string) {
	removed, err := s.reqs.Remove(r.Context(), requestID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *HTTPServer) handleAction(w http.ResponseWriter, r *http.Request, requestID string) {
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.dash.Initialize(r.Context()); err != nil {
		s.writeDashError(w, err)
		return
	}

	updated, err := s.dash.ApplyAction(r.Context(), requestID, models.Action(body.Action))
	if err != nil {
		var invalid *models.ErrInvalidTransition
		if errors.As(err, &invalid) {
			writeError(w, http.StatusConflict, invalid.Error())
			return
		}
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handlePrint(w http.ResponseWriter, r *http.Request, requestID string) {
	req, err := s.reqs.GetByRequestID(r.Context(), requestID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	doc, err := dashboard.ExportPrintView(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not render print view")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Remember bool   `json:"remember"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ok, err := s.gate.Login(r.Context(), body.Username, body.Password, body.Remember)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "اسم المستخدم أو كلمة المرور غير صحيحة")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleRemembered returns the stored auto-fill record so the login
// form can pre-populate. It never logs the visitor in by itself.
func (s *HTTPServer) handleRemembered(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	creds, err := s.gate.Remembered(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if creds == nil {
		writeJSON(w, http.StatusOK, map[string]any{"remembered": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"remembered": true,
		"username":   creds.Username,
		"password":   creds.Password,
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Logout releases the dashboard change subscription as well.
	s.dash.Release()
	if err := s.gate.Logout(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) writeDashError(w http.ResponseWriter, err error) {
	if errors.Is(err, dashboard.ErrNotAuthenticated) {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeError(w, http.StatusServiceUnavailable, err.Error())
}

func (s *HTTPServer) writeStoreError(w http.ResponseWriter, err error) {
	var notFound *store.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, notFound.Error())
		return
	}
	writeError(w, http.StatusServiceUnavailable, err.Error())
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
