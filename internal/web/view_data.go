package web

import (
	"net/http"
	"net/url"

	"github.com/gorilla/csrf"

	"github.com/capabusiness/verification/internal"
	"github.com/capabusiness/verification/internal/errorz"
)

// NoticeInvalidForm is shown when a submitted form could not be read at all.
const NoticeInvalidForm = "The form could not be read, please try again"

type viewData struct {
	Version      string
	CSRFField    string
	CSRFToken    string
	IsLoggedIn   bool
	AccountEmail string
	Flashes      []string
	Notice       string
	InputForm    url.Values
	InputErrors  errorz.InvalidInput
	Data         any
}

// prepViewData prepares the data that will be passed to the view.
// Should be called before writeView, because it consumes the flashes of the session.
func (s *Server) prepViewData(r *http.Request, data any) (*viewData, error) {
	sess, err := sessionFromCtx(r.Context())
	if err != nil {
		return nil, err
	}

	_, email, loggedIn := sess.Account()

	return &viewData{
		Version:      internal.BuildRevision,
		CSRFField:    csrfTokenField,
		CSRFToken:    csrf.Token(r),
		IsLoggedIn:   loggedIn,
		AccountEmail: email,
		Flashes:      sess.ConsumeFlashes(),
		InputForm:    inputForm(r),
		Data:         data,
	}, nil
}

// inputForm returns the submitted form values that may be shown back to
// the user. Passwords and the CSRF token are never echoed.
func inputForm(r *http.Request) url.Values {
	if r.PostForm == nil {
		return url.Values{}
	}

	form := make(url.Values, len(r.PostForm))
	for key, vals := range r.PostForm {
		if key == "password" || key == csrfTokenField {
			continue
		}
		form[key] = vals
	}
	return form
}

// setInputErrors shows the input errors next to their fields. Errors that
// belong to no field are summarized in a notice.
func (vd *viewData) setInputErrors(invalid errorz.InvalidInput) {
	vd.InputErrors = invalid
	if len(invalid.Unkeyed()) > 0 {
		vd.Notice = NoticeInvalidForm
	}
}
