package view

import (
	"fmt"
	"html/template"
	"maps"
	"net/http"
	"time"

	"github.com/odyssey-erp/odyssey-site/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	CurrentPath string
	// Subject is the authorization view of the current client, consumed by the `can` template func.
	Subject any
	Data    any
}

// NewEngine parses the embedded templates. extra registers additional template funcs
// (the rbac package contributes `can` and `canAll`).
func NewEngine(extra ...template.FuncMap) (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		// Deny by default until an authorizer contributes real checks.
		"can":    func(subject any, perms ...string) bool { return false },
		"canAll": func(subject any, perms ...string) bool { return false },
	}
	for _, fm := range extra {
		maps.Copy(funcMap, fm)
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// RenderStatus writes status before executing the template.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return e.templates.ExecuteTemplate(w, name, data)
}
