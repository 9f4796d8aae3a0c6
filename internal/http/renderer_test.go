package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTemplateRenderer_RequiresFS(t *testing.T) {
	_, err := NewTemplateRenderer(TemplateRendererConfig{})
	require.Error(t, err)
}

func TestNewTemplateRenderer_ParseError(t *testing.T) {
	fsys := fstest.MapFS{
		"layout.tmpl":    {Data: []byte(`{{define "layout"}}{{end}}`)},
		"pages/bad.tmpl": {Data: []byte(`{{define "x"}}{{if}}{{end}}`)},
	}
	_, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: fsys, Logger: discardLogger()})
	require.Error(t, err)
}

func TestRenderPage_GlobalsDoNotOverrideHandlerData(t *testing.T) {
	fsys := fstest.MapFS{
		"layout.tmpl":     {Data: []byte(`{{define "layout"}}{{.LoginPath}}|{{.Title}}{{end}}{{define "content"}}partial{{end}}`)},
		"pages/home.tmpl": {Data: []byte(`{{define "home-content"}}home{{end}}`)},
	}
	r, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: fsys,
		Globals:    map[string]any{"LoginPath": "/signin", "Title": "global"},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.RenderPage(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusAccepted, map[string]any{"Title": "mine"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/signin|mine", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Hx-Request", "true")
	rec = httptest.NewRecorder()
	r.RenderPage(rec, req, http.StatusOK, nil)
	assert.Equal(t, "partial", rec.Body.String())
}

func TestRenderPage_ExecutionErrorIs500(t *testing.T) {
	fsys := fstest.MapFS{
		"layout.tmpl": {Data: []byte(`{{define "layout"}}{{template "missing" .}}{{end}}`)},
		"pages/x.tmpl": {Data: []byte(`{{define "content"}}{{end}}`)},
	}
	r, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: fsys, Logger: discardLogger()})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.RenderPage(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestContentTemplateFor(t *testing.T) {
	assert.Equal(t, "login-content", ContentTemplateFor(PageLogin))
	assert.Equal(t, "not-found-content", ContentTemplateFor("unknown"))
}

func TestEmbeddedTemplatesRenderEveryPage(t *testing.T) {
	r := newTestRenderer(t)
	for page := range contentTemplates {
		t.Run(page, func(t *testing.T) {
			rec := httptest.NewRecorder()
			data := NewTemplateData(httptest.NewRequest(http.MethodGet, "/", nil), PageMeta{Title: page, CurrentPage: page}).Build()
			r.RenderPage(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, data)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), "<title>"+page)
		})
	}
}
