// Package templates renders the page shell and the HTML fragments patched by Datastar.
package templates

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io"
)

//go:embed html/*.html
var files embed.FS

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// json embeds a value as a JavaScript literal
	"json": func(v any) (template.JS, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return template.JS(b), nil
	},
}

// Renderer manages HTML templates.
type Renderer struct {
	templates *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(files, "html/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderTo(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTo renders a named template to w.
func (r *Renderer) RenderTo(w io.Writer, name string, data any) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
