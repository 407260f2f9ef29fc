package registry

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/requestid"
	"github.com/dmitrymomot/pushkit/pkg/useragent"
)

// Server exposes any Registry over the REST API understood by Client.
type Server struct {
	backend   Registry
	token     string
	logger    *slog.Logger
	testLimit func(http.Handler) http.Handler
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerToken requires "Authorization: Bearer <token>" on every request.
func WithServerToken(token string) ServerOption {
	return func(s *Server) { s.token = token }
}

// WithServerLogger sets the logger. Default is slog.Default().
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTestLimiter wraps the send-test endpoint, which triggers real pushes,
// in mw. It runs after authentication.
func WithTestLimiter(mw func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.testLimit = mw }
}

// NewServer wraps backend.
func NewServer(backend Registry, opts ...ServerOption) *Server {
	s := &Server{backend: backend, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(s.authenticate)

	r.Route("/push", func(r chi.Router) {
		r.Get("/vapid-key", s.vapidKey)
		r.Post("/subscriptions", s.registerDevice)
		r.Delete("/subscriptions/{endpoint}", s.unregisterDevice)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", s.listNotifications)
		r.Get("/preferences", s.preferences)
		r.Patch("/preferences", s.updatePreferences)
		r.Post("/read-all", s.markAllRead)
		if s.testLimit != nil {
			r.With(s.testLimit).Post("/test", s.sendTest)
		} else {
			r.Post("/test", s.sendTest)
		}
		r.Post("/{id}/read", s.markRead)
		r.Delete("/{id}", s.deleteNotification)
	})

	return r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) vapidKey(w http.ResponseWriter, r *http.Request) {
	info, err := s.backend.VAPIDKey(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) registerDevice(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Subscription.Endpoint == "" || req.Subscription.Keys.P256dh == "" || req.Subscription.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "subscription endpoint and keys are required")
		return
	}
	label := NormalizeLabel(req.DeviceLabel)
	if label == UnknownDeviceLabel {
		if ua := useragent.Label(r.UserAgent()); ua != "" {
			label = ua
		}
	}
	if err := s.backend.RegisterDevice(r.Context(), req.Subscription, label); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.LogAttrs(r.Context(), slog.LevelInfo, "device registered",
		logger.Endpoint(req.Subscription.Endpoint),
		logger.DeviceLabel(label),
	)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) unregisterDevice(w http.ResponseWriter, r *http.Request) {
	endpoint, err := url.PathUnescape(chi.URLParam(r, "endpoint"))
	if err != nil || endpoint == "" {
		writeError(w, http.StatusBadRequest, "invalid endpoint")
		return
	}
	if err := s.backend.UnregisterDevice(r.Context(), endpoint); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) preferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.backend.Preferences(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) updatePreferences(w http.ResponseWriter, r *http.Request) {
	var patch PreferencesPatch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var seq uint64
	if raw := r.Header.Get(HeaderClientSeq); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+HeaderClientSeq)
			return
		}
		seq = v
	}

	if err := s.backend.UpdatePreferences(r.Context(), patch, seq); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(v, 500)
	}

	items, err := s.backend.ListNotifications(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if items == nil {
		items = []Notification{}
	}
	writeJSON(w, http.StatusOK, listResponse{Notifications: items})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.MarkAllRead(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.DeleteNotification(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendTest(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.SendTest(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// fail maps backend errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, ErrServiceUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= 500 {
		s.logger.LogAttrs(r.Context(), slog.LevelError, "registry request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
		)
	}
	writeError(w, status, strings.TrimPrefix(err.Error(), "registry: "))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
