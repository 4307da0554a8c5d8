// Package server exposes the platform over HTTP. Route guards check
// the caller's effective roles; the application layer re-checks them
// at the data boundary, so a guard miss here can never widen access.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"storyconnect/internal/app"
	"storyconnect/internal/ratelimit"
	"storyconnect/internal/util"
	"storyconnect/pkg/auth"
	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
	"storyconnect/pkg/store"
)

// Config wires required dependencies for the HTTP server. The
// limiters are optional; nil means the route runs unthrottled.
type Config struct {
	App *app.App

	SignupLimiter    *ratelimit.FixedWindowLimiter
	LoginLimiter     *ratelimit.FixedWindowLimiter
	AssistantLimiter *ratelimit.FixedWindowLimiter

	TrustedProxies *util.TrustedProxies
	AllowedOrigins []string
}

// Server exposes HTTP endpoints for the platform.
type Server struct {
	app *app.App
	mux *http.ServeMux

	signupLimiter    *ratelimit.FixedWindowLimiter
	loginLimiter     *ratelimit.FixedWindowLimiter
	assistantLimiter *ratelimit.FixedWindowLimiter

	trustedProxies *util.TrustedProxies
	allowedOrigins []string
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:              cfg.App,
		mux:              http.NewServeMux(),
		signupLimiter:    cfg.SignupLimiter,
		loginLimiter:     cfg.LoginLimiter,
		assistantLimiter: cfg.AssistantLimiter,
		trustedProxies:   cfg.TrustedProxies,
		allowedOrigins:   cfg.AllowedOrigins,
	}
	s.routes()
	return s
}

// Router returns the configured handler with the ambient middleware
// applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithRequestLog("api", h)
	h = util.WithRequestID(h)
	h = util.WithCORS(s.allowedOrigins, h)
	return util.WithSecurityHeaders(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/.well-known/jwks.json", s.handleJWKS)

	// auth
	s.mux.HandleFunc("/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.HandleFunc("/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("/auth/logout", s.handleLogout)
	s.mux.Handle("/auth/me", s.authenticated(s.handleMe))
	s.mux.Handle("/auth/me/password", s.authenticated(s.handleChangePassword))
	s.mux.Handle("/auth/me/avatar", s.authenticated(s.handleAvatar))

	// catalog and gated reading
	s.mux.Handle("/books", s.maybeAuthenticated(s.handleBooks))
	s.mux.Handle("/books/", s.maybeAuthenticated(s.handleBookSubtree))

	// writer workspace
	s.mux.Handle("/my/books", s.requireRole(domain.RoleWriter, s.handleMyBooks))
	s.mux.Handle("/my/books/", s.requireRole(domain.RoleWriter, s.handleMyBookSubtree))

	// reader shelf
	s.mux.Handle("/me/progress", s.authenticated(s.handleProgress))
	s.mux.Handle("/me/bookmarks", s.authenticated(s.handleBookmarks))
	s.mux.Handle("/me/bookmarks/", s.authenticated(s.handleBookmarkByID))
	s.mux.Handle("/me/favorites", s.authenticated(s.handleFavorites))
	s.mux.Handle("/me/favorites/", s.authenticated(s.handleFavoriteByID))
	s.mux.Handle("/me/follows", s.authenticated(s.handleFollows))
	s.mux.Handle("/me/follows/", s.authenticated(s.handleFollowByID))
	s.mux.Handle("/me/purchases", s.authenticated(s.handlePurchases))
	s.mux.Handle("/me/notifications", s.authenticated(s.handleNotifications))
	s.mux.Handle("/me/notifications/", s.authenticated(s.handleNotificationByID))

	// writing assistant
	s.mux.Handle("/assistant", s.requireRole(domain.RoleWriter, s.handleAssistant))

	// community
	s.mux.Handle("/blog", s.maybeAuthenticated(s.handleBlog))
	s.mux.Handle("/blog/", s.maybeAuthenticated(s.handleBlogByID))
	s.mux.Handle("/discussions", s.maybeAuthenticated(s.handleDiscussions))
	s.mux.Handle("/discussions/", s.maybeAuthenticated(s.handleDiscussionSubtree))
	s.mux.Handle("/founders", s.maybeAuthenticated(s.handleFounders))
	s.mux.Handle("/founders/", s.requireRole(domain.RoleAdmin, s.handleFounderByID))

	// admin
	s.mux.Handle("/admin/users", s.requireRole(domain.RoleAdmin, s.handleAdminUsers))
	s.mux.Handle("/admin/users/", s.requireRole(domain.RoleAdmin, s.handleAdminUserSubtree))
	s.mux.Handle("/admin/writer-requests", s.requireRole(domain.RoleAdmin, s.handleWriterRequests))
	s.mux.Handle("/admin/writer-requests/", s.requireRole(domain.RoleAdmin, s.handleWriterRequestSubtree))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	provider, ok := s.app.Sessions().(store.JWKSProvider)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": provider.JWKS()})
}

// identHandler receives the resolved caller identity. For
// maybeAuthenticated routes the identity may be zero.
type identHandler func(http.ResponseWriter, *http.Request, authz.Identity)

func (s *Server) authenticated(next identHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, identity)
	})
}

func (s *Server) requireRole(role domain.Role, next identHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
		if !identity.HasRole(role) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, identity)
	})
}

// maybeAuthenticated resolves the identity when a valid token is
// present and passes a zero identity otherwise. A malformed or stale
// token is treated as anonymous, not rejected, so public pages keep
// rendering for signed-out visitors.
func (s *Server) maybeAuthenticated(next identHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := s.authorize(r)
		next(w, r, identity)
	})
}

func (s *Server) authorize(r *http.Request) (authz.Identity, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return authz.Identity{}, false
	}
	return s.app.IdentityFromToken(r.Context(), token)
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

// auth handlers

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         domain.User `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		return
	}
	var req signupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, access, refresh, err := s.app.SignUp(r.Context(), req.Email, req.Password, req.FullName, req.Role)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: access, RefreshToken: refresh, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		return
	}
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, access, refresh, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, RefreshToken: refresh, User: user})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many refresh attempts") {
		return
	}
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, access, refresh, err := s.app.Refresh(req.RefreshToken)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, RefreshToken: refresh, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req refreshRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	if err := s.app.Logout(token, req.RefreshToken); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	User      domain.User    `json:"user"`
	Roles     []domain.Role  `json:"roles"`
	Profile   domain.Profile `json:"profile"`
	AvatarURL string         `json:"avatarUrl,omitempty"`
}

type updateProfileRequest struct {
	FullName string `json:"fullName"`
	Bio      string `json:"bio"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	switch r.Method {
	case http.MethodGet:
		profile, err := s.app.GetProfile(identity.User.ID)
		if err != nil && !errors.Is(err, app.ErrNotFound) {
			s.writeAppError(w, r, err)
			return
		}
		avatarURL, err := s.app.AvatarURL(r.Context(), profile)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, meResponse{
			User:      identity.User,
			Roles:     identity.Roles.Roles(),
			Profile:   profile,
			AvatarURL: avatarURL,
		})
	case http.MethodPatch:
		var req updateProfileRequest
		if !decodeBody(w, r, &req) {
			return
		}
		profile, err := s.app.UpdateProfile(identity.User.ID, req.FullName, req.Bio)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	default:
		methodNotAllowed(w)
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, identity authz.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many password change attempts") {
		return
	}
	var req changePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "currentPassword and newPassword are required")
		return
	}
	if err := s.app.ChangePassword(identity.User.ID, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// helpers

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrUserDisabled):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "try again shortly")
	case errors.Is(err, app.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, authz.ErrDuplicateRole):
		writeError(w, http.StatusConflict, "user already has this role")
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrEmailAndPasswordRequired),
		errors.Is(err, app.ErrRefreshTokenRequired),
		errors.Is(err, app.ErrRoleNotSelfAssignable),
		errors.Is(err, app.ErrFreePreviewTooLarge),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed",
			"path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		slog.Warn("empty bearer token", "path", r.URL.Path)
		return "", false
	}
	return token, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
