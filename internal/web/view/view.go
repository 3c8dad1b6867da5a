// Package view renders the HTML pages of the server from html/template files.
package view

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"
)

const (
	baseFilename    = "base.html"
	partialsPattern = "partials/*.html"
)

// View is a collection of templates used to render data. Every
// view has an unique name.
//
// A view combines the following templates to render a HTML page:
// - base.html (required)
// - {name}.html (optional)
// - partials/*.html (optional)
type View struct {
	name     string
	template *template.Template
}

// Parse parses the file system and returns a view for the given name.
func Parse(viewFS fs.FS, name string) (*View, error) {
	// Names are hardcoded by the server, but we never want a name to
	// give access to other parts of the file system.
	if err := validateName(name); err != nil {
		return nil, err
	}

	files := []string{baseFilename}

	if name != "" && name != strings.TrimSuffix(baseFilename, ".html") {
		files = append(files, name+".html")
	}

	partials, err := fs.Glob(viewFS, partialsPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob for partials: %w", err)
	}

	files = append(files, partials...)

	templ, err := template.New(baseFilename).ParseFS(viewFS, files...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse view %q: %w", name, err)
	}

	return &View{
		name:     name,
		template: templ,
	}, nil
}

// Name returns the name of the view.
func (v *View) Name() string {
	return v.name
}

// Render renders data using the view and writes the result to w.
func (v *View) Render(w io.Writer, data any) error {
	return v.template.Execute(w, data)
}

// Names returns the names of all views in viewFS.
func Names(viewFS fs.FS) ([]string, error) {
	files, err := fs.Glob(viewFS, "*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob for views: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		if file == baseFilename {
			continue
		}
		names = append(names, strings.TrimSuffix(file, ".html"))
	}

	return names, nil
}

// validateName checks if all characters are alphanumeric, dashes or underscores.
func validateName(name string) error {
	for _, c := range name {
		if !validViewRune(c) {
			return fmt.Errorf("invalid character %q in view name: %s", c, name)
		}
	}
	return nil
}

func validViewRune(r rune) bool {
	return r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
