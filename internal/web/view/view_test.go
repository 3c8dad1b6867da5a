package view_test

import (
	"bytes"
	"io"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capabusiness/verification/internal/web/view"
)

func TestView_ParseAndRender(t *testing.T) {
	okTests := map[string]struct {
		files map[string]string
		name  string
		data  any
		want  string
	}{
		"base only": {
			files: map[string]string{
				"base.html": `<html>Hello {{ . }}</html>`,
			},
			name: "",
			data: "World!",
			want: `<html>Hello World!</html>`,
		},
		"base only w base name": {
			files: map[string]string{
				"base.html": `<html>Hello {{ . }}</html>`,
			},
			name: "base",
			data: "World!",
			want: `<html>Hello World!</html>`,
		},
		"base and home": {
			files: map[string]string{
				"base.html": `<html>{{template "content" . }}</html>`,
				"home.html": `{{define "content"}}<h1>Hello {{ . }}</h1>{{end}}`,
			},
			name: "home",
			data: "World!",
			want: `<html><h1>Hello World!</h1></html>`,
		},
		"base, login and field error partial": {
			files: map[string]string{
				"base.html":                 `<html>{{template "content" . }}</html>`,
				"login-user.html":           `{{define "content"}}<form>{{template "field-error" . }}</form>{{end}}`,
				"partials/field-error.html": `{{define "field-error"}}<p>{{ . }}</p>{{end}}`,
			},
			name: "login-user",
			data: "Must be a valid email",
			want: `<html><form><p>Must be a valid email</p></form></html>`,
		},
		"name with all allowed characters": {
			files: map[string]string{
				"base.html": `<html>{{template "content" . }}</html>`,
				"abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_.html": `{{define "content"}}<h1>Hello {{ . }}</h1>{{end}}`,
			},
			name: "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_",
			data: "World!",
			want: `<html><h1>Hello World!</h1></html>`,
		},
		"check data is escaped": {
			files: map[string]string{
				"base.html": `<html>{{ . }}</html>`,
			},
			name: "",
			data: "<script>alert('xss')</script>",
			want: `<html>&lt;script&gt;alert(&#39;xss&#39;)&lt;/script&gt;</html>`,
		},
	}

	for name, tc := range okTests {
		t.Run(name, func(t *testing.T) {
			v, err := view.Parse(mapFS(tc.files), tc.name)
			require.NoError(t, err)

			buf := &bytes.Buffer{}
			err = v.Render(buf, tc.data)
			require.NoError(t, err)

			assert.Equal(t, tc.want, buf.String())
		})
	}

	parseFails := map[string]struct {
		files map[string]string
		name  string
	}{
		"no views": {
			files: map[string]string{},
			name:  "",
		},
		"no base": {
			files: map[string]string{
				"home.html": `<h1>Hello {{ . }}</h1>`,
			},
			name: "",
		},
		"no home": {
			files: map[string]string{
				"base.html":  `<html>{{template "content" . }}</html>`,
				"other.html": `<h1>Hello {{ . }}</h1>`,
			},
			name: "home",
		},
		"filename with disallowed rune": {
			files: map[string]string{
				"base.html": `<html>{{template "content" . }}</html>`,
				"#.html":    `<h1>Hello {{ . }}</h1>`,
			},
			name: "#",
		},
		"path traversal": {
			files: map[string]string{
				"base.html": `<html>{{template "content" . }}</html>`,
			},
			name: "../secrets",
		},
		"broken template": {
			files: map[string]string{
				"base.html": `<html>{{template "content" . }</html>`,
			},
			name: "",
		},
	}

	for name, tc := range parseFails {
		t.Run(name, func(t *testing.T) {
			_, err := view.Parse(mapFS(tc.files), tc.name)
			assert.Error(t, err)
		})
	}
}

func TestNames(t *testing.T) {
	names, err := view.Names(mapFS(map[string]string{
		"base.html":             `base`,
		"home.html":             `home`,
		"login-user.html":       `login`,
		"partials/flashes.html": `flashes`,
		"not-a-template.txt":    `txt`,
	}))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"home", "login-user"}, names)
}

func TestRenderers(t *testing.T) {
	files := map[string]string{
		"base.html":  `<html>{{template "content" . }}</html>`,
		"home.html":  `{{define "content"}}<h1>Home {{ . }}</h1>{{end}}`,
		"login.html": `{{define "content"}}<h1>Login {{ . }}</h1>{{end}}`,
	}

	memRenderer, err := view.NewMemRenderer(mapFS(files))
	require.NoError(t, err)

	renderers := map[string]interface {
		Render(w io.Writer, name string, data any) error
	}{
		"mem": memRenderer,
		"fs":  view.NewFSRenderer(mapFS(files)),
	}

	for name, r := range renderers {
		t.Run(name+", ok", func(t *testing.T) {
			buf := &bytes.Buffer{}
			require.NoError(t, r.Render(buf, "login", "page"))
			assert.Equal(t, `<html><h1>Login page</h1></html>`, buf.String())
		})

		t.Run(name+", fail, unknown view", func(t *testing.T) {
			buf := &bytes.Buffer{}
			assert.Error(t, r.Render(buf, "dashboard", nil))
		})
	}

	t.Run("mem, fail, broken view", func(t *testing.T) {
		_, err := view.NewMemRenderer(mapFS(map[string]string{
			"base.html": `<html>{{template "content" . }}</html>`,
			"home.html": `{{define "content"}}{{ .Missing </h1>{{end}}`,
		}))
		assert.Error(t, err)
	})
}

func mapFS(files map[string]string) fs.FS {
	m := fstest.MapFS{}
	for name, content := range files {
		m[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return m
}
