package web

import (
	"context"
	"net/http"

	"github.com/capabusiness/verification/internal/errorz"
	"github.com/capabusiness/verification/internal/web/sessions"
)

// mapper is a generic HTTP handler that maps requests to target
// function calls and writes the output to the response.
type mapper[IN, OUT any] struct {
	s      *Server
	req    func(*http.Request) (IN, error)
	target func(context.Context, IN) (OUT, error)
	res    func(result[IN, OUT]) error
	fail   func(http.ResponseWriter, *http.Request, error) error
}

// result is the result of a successful request.
// it contains all relevant data because we can't know
// in advance what we will need to construct a response.
type result[IN, OUT any] struct {
	s    *Server
	r    *http.Request
	w    http.ResponseWriter
	sess *sessions.Session
	in   IN
	out  OUT
}

// mapBoth creates a HTTP Handler that:
// 1. Maps the request to a value of input type IN.
// 2. Calls the target func with that value.
// 3. Writes the output of type OUT to the response.
//
// Errors are written using the failure func, which defaults to the server error handler.
func mapBoth[IN, OUT any](s *Server, targetFunc func(context.Context, IN) (OUT, error)) *mapper[IN, OUT] {
	return &mapper[IN, OUT]{
		s: s,
		req: func(r *http.Request) (IN, error) {
			return defaultRequest[IN](s, r)
		},
		target: targetFunc,
		res: func(r result[IN, OUT]) error {
			return r.redirect("/")
		},
		fail: defaultFailure,
	}
}

// mapRequest creates a HTTP Handler that:
// 1. Maps the request to a value of type IN.
// 2. Calls the target func with that value.
// 3. Writes a response if the target func was successful.
//
// Errors are written using the failure func, which defaults to the server error handler.
func mapRequest[IN any](s *Server, targetFunc func(context.Context, IN) error) *mapper[IN, struct{}] {
	return mapBoth(s, func(ctx context.Context, in IN) (struct{}, error) {
		return struct{}{}, targetFunc(ctx, in)
	})
}

// request overwrites the function that maps the request to the input type.
func (e *mapper[IN, OUT]) request(fn func(r *http.Request) (IN, error)) *mapper[IN, OUT] {
	e.req = fn
	return e
}

// response overwrites the function that writes the output to the response.
func (e *mapper[IN, OUT]) response(fn func(result[IN, OUT]) error) *mapper[IN, OUT] {
	e.res = fn
	return e
}

// failure overwrites the function that writes request and target errors
// to the response. Errors it returns go to the server error handler.
func (e *mapper[IN, OUT]) failure(fn func(http.ResponseWriter, *http.Request, error) error) *mapper[IN, OUT] {
	e.fail = fn
	return e
}

func (e *mapper[IN, OUT]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromCtx(r.Context())
	if err != nil {
		e.s.handleError(w, r, err)
		return
	}

	in, err := e.req(r)
	if err != nil {
		e.failed(w, r, err)
		return
	}

	out, err := e.target(r.Context(), in)
	if err != nil {
		e.failed(w, r, err)
		return
	}

	result := result[IN, OUT]{
		s:    e.s,
		r:    r,
		w:    w,
		sess: sess,
		in:   in,
		out:  out,
	}

	err = e.res(result)
	if err != nil {
		e.s.handleError(w, r, err)
		return
	}
}

func (e *mapper[IN, OUT]) failed(w http.ResponseWriter, r *http.Request, err error) {
	err = e.fail(w, r, err)
	if err != nil {
		e.s.handleError(w, r, err)
	}
}

func defaultFailure(_ http.ResponseWriter, _ *http.Request, err error) error {
	return err
}

// defaultRequest is the default way to map a request to a struct.
func defaultRequest[IN any](s *Server, r *http.Request) (IN, error) {
	var in IN
	err := r.ParseForm()
	if err != nil {
		return in, errorz.InvalidInput{err}
	}

	err = s.decoder.Decode(&in, r.PostForm)
	if err != nil {
		return in, errorz.InvalidInput{err}
	}

	return in, nil
}

// formRequest decodes the posted form into a FORM and parses it into IN.
func formRequest[IN any, FORM interface{ Parse() (IN, error) }](s *Server) func(*http.Request) (IN, error) {
	return func(r *http.Request) (IN, error) {
		form, err := defaultRequest[FORM](s, r)
		if err != nil {
			var in IN
			return in, err
		}

		return form.Parse()
	}
}

func (r result[IN, OUT]) redirect(url string) error {
	if r.sess.NeedsSave() {
		err := r.s.deps.SessionStore.Save(r.r, r.w, r.sess)
		if err != nil {
			return err
		}
	}

	http.Redirect(r.w, r.r, url, http.StatusFound)
	return nil
}

func (r result[IN, OUT]) redirectWithFlash(url, flash string) error {
	r.sess.AddFlash(flash)
	return r.redirect(url)
}
