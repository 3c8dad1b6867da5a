package sessions

import (
	"github.com/gorilla/sessions"
)

const (
	accountIDKey    = "accountID"
	accountEmailKey = "accountEmail"
)

// Session wraps a gorilla session and keeps track of whether it was
// modified since it was loaded or saved.
type Session struct {
	base      *sessions.Session
	needsSave bool
}

func (s *Session) NeedsSave() bool {
	return s.needsSave
}

// Account returns the ID and email of the signed in account.
func (s *Session) Account() (id, email string, ok bool) {
	id, ok = s.base.Values[accountIDKey].(string)
	if !ok || id == "" {
		return "", "", false
	}

	email, _ = s.base.Values[accountEmailKey].(string)
	return id, email, true
}

func (s *Session) SetAccount(id, email string) {
	s.needsSave = true
	s.base.Values[accountIDKey] = id
	s.base.Values[accountEmailKey] = email
}

func (s *Session) DeleteAccount() {
	s.needsSave = true
	delete(s.base.Values, accountIDKey)
	delete(s.base.Values, accountEmailKey)
}

func (s *Session) AddFlash(flash string) {
	s.needsSave = true
	s.base.AddFlash(flash)
}

// ConsumeFlashes returns the flash messages and removes them from the session.
func (s *Session) ConsumeFlashes() []string {
	raw := s.base.Flashes()
	if len(raw) == 0 {
		return nil
	}

	s.needsSave = true
	flashes := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			flashes = append(flashes, msg)
		}
	}
	return flashes
}
