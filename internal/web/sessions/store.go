// Package sessions stores the signed in account and flash messages in a
// signed cookie.
package sessions

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/capabusiness/verification/internal/krypto"
)

const CookieName = "capa-session"

// Store loads and saves sessions using a gorilla session store.
type Store struct {
	store sessions.Store
}

func NewStore(store sessions.Store) *Store {
	return &Store{store: store}
}

// CookieConfig configures the session cookie.
type CookieConfig struct {
	// Keys are used in pairs of an authentication and an encryption key.
	// Pairs after the first are only used to decode existing cookies.
	Keys   []krypto.Key
	Secure bool
	MaxAge int
}

// NewCookieStore creates a gorilla cookie store for cfg.
func NewCookieStore(cfg CookieConfig) *sessions.CookieStore {
	keyPairs := make([][]byte, 0, len(cfg.Keys))
	for _, k := range cfg.Keys {
		keyPairs = append(keyPairs, k.SecretValue())
	}

	store := sessions.NewCookieStore(keyPairs...)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return store
}

// Get returns the session of the request. A cookie that can't be decoded,
// for example after the keys were rotated, results in a new session.
func (s *Store) Get(r *http.Request) (*Session, error) {
	base, err := s.store.Get(r, CookieName)
	if base == nil {
		return nil, err
	}

	return &Session{base: base, needsSave: err != nil}, nil
}

func (s *Store) Save(r *http.Request, w http.ResponseWriter, sess *Session) error {
	err := s.store.Save(r, w, sess.base)
	if err != nil {
		return err
	}

	sess.needsSave = false
	return nil
}
