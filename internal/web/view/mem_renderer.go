package view

import (
	"fmt"
	"io"
	"io/fs"
)

// MemRenderer renders views parsed once at startup.
type MemRenderer struct {
	views map[string]*View
}

// NewMemRenderer parses all the views in the given fs and stores the results in memory.
func NewMemRenderer(viewFS fs.FS) (*MemRenderer, error) {
	names, err := Names(viewFS)
	if err != nil {
		return nil, err
	}

	views := make(map[string]*View, len(names))
	for _, name := range names {
		v, err := Parse(viewFS, name)
		if err != nil {
			return nil, err
		}

		views[name] = v
	}

	return &MemRenderer{
		views: views,
	}, nil
}

func (r *MemRenderer) Render(w io.Writer, name string, data any) error {
	v, ok := r.views[name]
	if !ok {
		return fmt.Errorf("view %q not found", name)
	}

	return v.Render(w, data)
}
