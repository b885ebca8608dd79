package view

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubFuncs() template.FuncMap {
	return template.FuncMap{
		"can":    func(subject any, perms ...string) bool { return true },
		"canAll": func(subject any, perms ...string) bool { return true },
	}
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(stubFuncs())
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderStatusWritesStatus(t *testing.T) {
	engine, err := NewEngine(stubFuncs())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.RenderStatus(rec, http.StatusForbidden, "pages/access_denied.html", TemplateData{
		Title: "Access denied",
		Data:  map[string]any{"Missing": []string{"content.edit"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "content.edit")
}

func TestRenderNilEngine(t *testing.T) {
	var engine *Engine
	assert.Error(t, engine.Render(httptest.NewRecorder(), "pages/login.html", TemplateData{}))
}
