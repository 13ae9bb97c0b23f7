package view

import (
	"fmt"
	"html/template"
	"io"

	"github.com/polarline/hvacdesk/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// NewEngine parses the embedded templates matching patterns with funcs
// available to every template.
func NewEngine(funcs template.FuncMap, patterns ...string) (*Engine, error) {
	if len(patterns) == 0 {
		patterns = []string{"templates/documents/*.html"}
	}
	tpl, err := template.New("root").Funcs(funcs).ParseFS(web.Templates, patterns...)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Execute writes the named template to w.
func (e *Engine) Execute(w io.Writer, name string, data any) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	return e.templates.ExecuteTemplate(w, name, data)
}
