package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"transcriptcleaner/internal/app"
	"transcriptcleaner/internal/ratelimit"
	"transcriptcleaner/internal/util"
	"transcriptcleaner/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                       *app.App
	Redis                     *redis.Client
	AuthRateLimitPerMinute    int
	ProcessRateLimitPerMinute int
	TrustedProxyCIDRs         []string
}

// Server exposes the JSON API.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	authLimiter    *ratelimit.FixedWindowLimiter
	processLimiter *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
}

// New constructs the server with routes configured. Rate limiting requires a
// Redis client; without one the limiters are disabled.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		trustedProxies: trusted,
	}
	if cfg.Redis != nil {
		authLimit := cfg.AuthRateLimitPerMinute
		if authLimit <= 0 {
			authLimit = 10
		}
		processLimit := cfg.ProcessRateLimitPerMinute
		if processLimit <= 0 {
			processLimit = 10
		}
		s.authLimiter, err = ratelimit.NewFixedWindowLimiter(cfg.Redis, "transcriptcleaner:ratelimit:auth", authLimit, time.Minute)
		if err != nil {
			return nil, err
		}
		s.processLimiter, err = ratelimit.NewFixedWindowLimiter(cfg.Redis, "transcriptcleaner:ratelimit:process", processLimit, time.Minute)
		if err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware stack applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("api", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.Handle("/api/auth/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// budget
	s.mux.Handle("/api/usage", s.authenticated(s.handleUsage))
	s.mux.Handle("/api/usage/reset", s.authenticated(s.handleUsageReset))

	// transcripts
	s.mux.Handle("/api/transcripts", s.authenticated(s.handleTranscripts))
	s.mux.Handle("/api/transcripts/", s.authenticated(s.handleTranscriptByID))

	// word lists
	s.mux.Handle("/api/wordlists", s.authenticated(s.handleWordLists))
	s.mux.Handle("/api/wordlists/", s.authenticated(s.handleWordListByID))

	// correction jobs
	s.mux.Handle("/api/process", s.authenticated(s.handleProcess))
	s.mux.Handle("/api/jobs", s.authenticated(s.handleJobs))
	s.mux.Handle("/api/jobs/", s.authenticated(s.handleJobByID))

	// admin
	s.mux.Handle("/api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/api/admin/users/", s.adminOnly(s.handleAdminUserByID))
	s.mux.Handle("/api/admin/jobs/", s.adminOnly(s.handleAdminJobByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if user.Role != domain.RoleAdmin {
			s.audit(r, "admin.authorize", "fail", "user_id", user.ID)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	return s.app.UserFromToken(token)
}

type registerRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Organization string `json:"organization"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.authLimiter, "too many signup attempts") {
		s.audit(r, "auth.register", "rate_limited")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Register(req.Username, req.Email, req.Password, req.FirstName, req.LastName, req.Organization)
	if err != nil {
		s.audit(r, "auth.register", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "auth.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.authLimiter, "too many login attempts") {
		s.audit(r, "auth.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.login", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "auth.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, _ := bearerToken(r)
	if err := s.app.Logout(token); err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "auth.logout", "success", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	summary, err := s.app.Usage(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleUsageReset(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.ResetSpend(user.ID); err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "usage.reset", "success", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

// admin handlers

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type adminUserUpdateRequest struct {
	Role       string `json:"role"`
	UsageLimit string `json:"usageLimit"`
}

func (s *Server) handleAdminUserByID(w http.ResponseWriter, r *http.Request, admin domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch {
	case action == "" && r.Method == http.MethodPatch:
		var req adminUserUpdateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Role != "" {
			if err := s.app.UpdateUserRole(id, domain.UserRole(req.Role)); err != nil {
				writeAppError(w, err)
				return
			}
		}
		if req.UsageLimit != "" {
			limit, err := decimal.NewFromString(req.UsageLimit)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid usageLimit")
				return
			}
			if err := s.app.SetUsageLimit(id, limit); err != nil {
				writeAppError(w, err)
				return
			}
		}
		s.audit(r, "admin.user.update", "success", "admin_id", admin.ID, "user_id", id)
		w.WriteHeader(http.StatusNoContent)
	case action == "reset-spend" && r.Method == http.MethodPost:
		if err := s.app.ResetSpend(id); err != nil {
			writeAppError(w, err)
			return
		}
		s.audit(r, "admin.user.reset_spend", "success", "admin_id", admin.ID, "user_id", id)
		w.WriteHeader(http.StatusNoContent)
	case action == "" && r.Method == http.MethodDelete:
		if err := s.app.DeleteUser(id); err != nil {
			writeAppError(w, err)
			return
		}
		s.audit(r, "admin.user.delete", "success", "admin_id", admin.ID, "user_id", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAdminJobByID(w http.ResponseWriter, r *http.Request, admin domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/jobs/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" || action != "cancel" || r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	job, err := s.app.CancelJob(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "admin.job.cancel", "success", "admin_id", admin.ID, "job_id", id)
	writeJSON(w, http.StatusOK, job)
}

// helpers

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps application errors onto HTTP statuses. Unrecognized
// errors surface as 400 with the message, matching how validation failures
// bubble up from the app layer.
func writeAppError(w http.ResponseWriter, err error) {
	var verr *app.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "invalid csv",
			"problems": verr.Problems,
		})
		return
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, app.ErrEmailTaken),
		errors.Is(err, app.ErrDuplicateName),
		errors.Is(err, app.ErrVersionConflict),
		errors.Is(err, app.ErrNotRetryable),
		errors.Is(err, app.ErrNotCancellable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrBudgetExceeded):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, app.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
