package view

import (
	"io"
	"io/fs"
)

// FSRenderer parses the view on every render, so changes to the
// templates show up without a restart.
type FSRenderer struct {
	fs fs.FS
}

// NewFSRenderer returns a new FSRenderer.
func NewFSRenderer(viewFS fs.FS) *FSRenderer {
	return &FSRenderer{fs: viewFS}
}

func (r *FSRenderer) Render(w io.Writer, name string, data any) error {
	v, err := Parse(r.fs, name)
	if err != nil {
		return err
	}
	return v.Render(w, data)
}
