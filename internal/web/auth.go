package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/capabusiness/verification/internal/auth"
	"github.com/capabusiness/verification/internal/errorz"
	"github.com/capabusiness/verification/internal/logging"
	"github.com/capabusiness/verification/internal/observability"
)

// Notices shown on the login view when the identity provider turns down a login.
const (
	NoticeVerifyEmail        = "Verify email before login"
	NoticeInvalidCredentials = "Invalid email or password"
	NoticeAccountDisabled    = "This account has been disabled"
	NoticeTooManyAttempts    = "Too many login attempts, please try again later"
	NoticeLoginFailed        = "Login failed, please try again later"
)

// publicOnly redirects signed in visitors to the home page.
func (s *Server) publicOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isLoggedIn(r) {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggedIn hides the route from visitors that are not signed in.
func (s *Server) loggedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoggedIn(r) {
			s.handleError(w, r, errorz.ErrNotFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) loginSuccess(res result[auth.Credentials, auth.Account]) error {
	// If we get here, the account has been authenticated and its email is verified.

	// Clear the CSRF token so a token obtained before the login is worthless after it.
	// A new CSRF token will be generated on the next GET request after the redirect.
	http.SetCookie(res.w, &http.Cookie{
		Name:   csrfTokenCookieName,
		Path:   "/",
		MaxAge: -1,
	})

	res.sess.SetAccount(res.out.ID, res.out.Email)

	s.deps.Metrics.RecordLogin(observability.LoginVerified)
	s.deps.Logger.Info("account logged in",
		"account_id", res.out.ID,
		"request_id", middleware.GetReqID(res.r.Context()),
	)

	return res.redirect("/")
}

// loginFailure renders the login view again, explaining why the login
// did not succeed. Nothing is retried.
func (s *Server) loginFailure(w http.ResponseWriter, r *http.Request, err error) error {
	vd, vdErr := s.prepViewData(r, nil)
	if vdErr != nil {
		return vdErr
	}

	reqID := middleware.GetReqID(r.Context())

	var (
		status  int
		outcome string
		invalid errorz.InvalidInput
	)

	switch {
	case errors.As(err, &invalid):
		status, outcome = http.StatusUnprocessableEntity, observability.LoginInvalidInput
		vd.setInputErrors(invalid)
	case errors.Is(err, auth.ErrEmailNotVerified):
		status, outcome = http.StatusForbidden, observability.LoginUnverified
		vd.Notice = NoticeVerifyEmail
		s.deps.Logger.Info("login blocked, email not verified", "request_id", reqID)
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, outcome = http.StatusUnauthorized, observability.LoginRejected
		vd.Notice = NoticeInvalidCredentials
		logging.LogWarn(s.deps.Logger, "login rejected", err, "request_id", reqID)
	case errors.Is(err, auth.ErrAccountDisabled):
		status, outcome = http.StatusUnauthorized, observability.LoginRejected
		vd.Notice = NoticeAccountDisabled
		logging.LogWarn(s.deps.Logger, "login rejected", err, "request_id", reqID)
	case errors.Is(err, auth.ErrTooManyAttempts):
		status, outcome = http.StatusTooManyRequests, observability.LoginThrottled
		vd.Notice = NoticeTooManyAttempts
		logging.LogWarn(s.deps.Logger, "login throttled", err, "request_id", reqID)
	default:
		status, outcome = http.StatusBadGateway, observability.LoginError
		vd.Notice = NoticeLoginFailed
		logging.LogError(s.deps.Logger, "login failed", err, "request_id", reqID)
	}

	s.deps.Metrics.RecordLogin(outcome)

	return s.writeView(w, r, status, "login-user", vd)
}

// invalidInputView returns a failure func that renders view name with the
// field errors when the input is invalid. Other errors are returned.
func (s *Server) invalidInputView(name string) func(http.ResponseWriter, *http.Request, error) error {
	return func(w http.ResponseWriter, r *http.Request, err error) error {
		var invalid errorz.InvalidInput
		if !errors.As(err, &invalid) {
			return err
		}

		vd, vdErr := s.prepViewData(r, nil)
		if vdErr != nil {
			return vdErr
		}
		vd.setInputErrors(invalid)

		return s.writeView(w, r, http.StatusUnprocessableEntity, name, vd)
	}
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromCtx(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	sess.DeleteAccount()
	err = s.deps.SessionStore.Save(r, w, sess)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}
