package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/capabusiness/verification/internal/web/sessions"
)

// session is a middleware that loads the session and injects it in the context.
func (s *Server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.deps.SessionStore.Get(r)
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		ctx := ctxWithSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type ctxKey string

const sessionCtxKey ctxKey = "_session"

func ctxWithSession(ctx context.Context, sess *sessions.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, sess)
}

func sessionFromCtx(ctx context.Context) (*sessions.Session, error) {
	sess, ok := ctx.Value(sessionCtxKey).(*sessions.Session)
	if !ok {
		return nil, errors.New("could not get session from context")
	}

	return sess, nil
}

func isLoggedIn(r *http.Request) bool {
	sess, err := sessionFromCtx(r.Context())
	if err != nil {
		return false
	}

	_, _, ok := sess.Account()
	return ok
}
