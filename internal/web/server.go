package web

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"github.com/gorilla/schema"

	"github.com/capabusiness/verification/internal/auth"
	"github.com/capabusiness/verification/internal/errorz"
	"github.com/capabusiness/verification/internal/krypto"
	"github.com/capabusiness/verification/internal/logging"
	"github.com/capabusiness/verification/internal/observability"
	"github.com/capabusiness/verification/internal/web/sessions"
)

const (
	csrfTokenCookieName = "capa-csrf"
	csrfTokenField      = "csrf_token"
)

// ViewRenderer renders named views with the given data.
type ViewRenderer interface {
	Render(w io.Writer, name string, data any) error
}

// ServerDeps are the dependencies for the server.
type ServerDeps struct {
	Logger       *slog.Logger
	ViewRenderer ViewRenderer
	AuthService  *auth.Service
	SessionStore *sessions.Store
	DistFS       http.FileSystem
	// Metrics is optional.
	Metrics *observability.Metrics
}

// ServerConfig is the configuration for the server.
type ServerConfig struct {
	CSRFKey krypto.Key
	// SecureCookie marks cookies as secure. Without it the server is
	// assumed to be reached over plain HTTP, which the CSRF origin checks
	// need to know about.
	SecureCookie bool
}

type Server struct {
	deps    *ServerDeps
	router  chi.Router
	decoder *schema.Decoder
}

func NewServer(deps *ServerDeps, cfg ServerConfig) *Server {
	decoder := schema.NewDecoder()
	// The CSRF token is part of every form.
	decoder.IgnoreUnknownKeys(true)

	s := &Server{
		deps:    deps,
		router:  chi.NewRouter(),
		decoder: decoder,
	}

	csrfMW := csrf.Protect(
		cfg.CSRFKey.SecretValue(),
		csrf.CookieName(csrfTokenCookieName),
		csrf.FieldName(csrfTokenField),
		csrf.Path("/"),
		csrf.Secure(cfg.SecureCookie),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(s.csrfFailure)),
	)

	s.router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.StripSlashes,
	)
	if !cfg.SecureCookie {
		s.router.Use(plaintextHTTP)
	}
	s.router.Use(
		csrfMW,
		s.session,
	)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.handleError(w, r, errorz.ErrNotFound)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	// Most form endpoints below are created using the map functions.
	// These return handlers that map between HTTP requests, target functions and HTTP responses.
	// The request mapping, response writing and failure handling are customizable.

	// Homepage endpoint.
	s.router.Get("/", s.staticHandler("home"))

	s.router.Group(func(r chi.Router) {
		r.Use(s.publicOnly)

		// Login endpoints.
		r.Get("/login", s.staticHandler("login-user"))
		{
			h := mapBoth(s, deps.AuthService.Login)
			h.request(formRequest[auth.Credentials, auth.CredentialsForm](s))
			h.response(s.loginSuccess)
			h.failure(s.loginFailure)
			r.Post("/login", h.ServeHTTP)
		}

		// Register endpoints.
		r.Get("/register", s.staticHandler("register-user"))
		{
			h := mapRequest(s, deps.AuthService.Register)
			h.request(formRequest[auth.Credentials, auth.CredentialsForm](s))
			h.response(func(res result[auth.Credentials, struct{}]) error {
				s.deps.Metrics.RecordRegistration()
				return res.redirectWithFlash("/login", "Thank you for registering. Verify your email address before logging in.")
			})
			h.failure(s.invalidInputView("register-user"))
			r.Post("/register", h.ServeHTTP)
		}

		// Password reset endpoints.
		r.Get("/reset-password", s.staticHandler("reset-password"))
		{
			h := mapRequest(s, deps.AuthService.RequestPasswordReset)
			h.request(formRequest[string, auth.EmailForm](s))
			h.response(func(res result[string, struct{}]) error {
				s.deps.Metrics.RecordPasswordReset()
				return res.redirectWithFlash("/reset-password", "If an account exists for this address, a password reset link is on its way.")
			})
			h.failure(s.invalidInputView("reset-password"))
			r.Post("/reset-password", h.ServeHTTP)
		}
	})

	s.router.Group(func(r chi.Router) {
		r.Use(s.loggedIn)
		r.Post("/logout", s.logout)
	})

	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(deps.DistFS)))

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) staticHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vd, err := s.prepViewData(r, nil)
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		err = s.writeView(w, r, http.StatusOK, name, vd)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
	}
}

// writeView saves the session when needed and renders the view. The view
// is rendered to a buffer first, so a failing template results in a clean
// error response.
func (s *Server) writeView(w http.ResponseWriter, r *http.Request, status int, name string, vd *viewData) error {
	sess, err := sessionFromCtx(r.Context())
	if err != nil {
		return err
	}

	buf := &bytes.Buffer{}
	err = s.deps.ViewRenderer.Render(buf, name, vd)
	if err != nil {
		return err
	}

	if sess.NeedsSave() {
		err = s.deps.SessionStore.Save(r, w, sess)
		if err != nil {
			return err
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	if err != nil {
		s.deps.Logger.Warn("failed to write view", "view", name, "error", err)
	}
	return nil
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errorz.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var invalidInput errorz.InvalidInput
	if errors.As(err, &invalidInput) {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	logging.LogError(s.deps.Logger, "internal server error", err,
		"url", r.URL.String(),
		"request_id", middleware.GetReqID(r.Context()),
	)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// plaintextHTTP marks requests as served over plain HTTP. The CSRF
// middleware then checks the Origin header against http://host and
// does not require a Referer.
func plaintextHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

func (s *Server) csrfFailure(w http.ResponseWriter, r *http.Request) {
	s.deps.Logger.Warn("csrf check failed",
		"url", r.URL.String(),
		"reason", csrf.FailureReason(r),
		"request_id", middleware.GetReqID(r.Context()),
	)
	http.Error(w, "forbidden", http.StatusForbidden)
}
