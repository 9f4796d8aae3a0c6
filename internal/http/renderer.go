package httpx

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/target/mmk-ui-web/internal/http/templates/core"
)

// TemplateRenderer renders HTML templates for page responses.
type TemplateRenderer struct {
	t       *template.Template
	globals map[string]any
	logger  *slog.Logger
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS // required; holds *.tmpl and pages/*.tmpl
	// Globals are merged into every page's data unless the handler set the key itself.
	Globals map[string]any
	Logger  *slog.Logger
}

// NewTemplateRenderer parses every template in cfg.TemplateFS.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var t *template.Template
	funcs := core.Funcs(core.Deps{Template: &t, ContentTemplateFor: ContentTemplateFor})

	var err error
	t, err = template.New("root").Funcs(funcs).ParseFS(cfg.TemplateFS, "*.tmpl", "pages/*.tmpl")
	if err != nil {
		logger.Error("template parsing failed", slog.Any("error", err), slog.String("phase", "initialization"))
		return nil, err
	}
	return &TemplateRenderer{t: t, globals: cfg.Globals, logger: logger}, nil
}

// RenderPage writes the layout (or only the content fragment for htmx requests) with status.
func (r *TemplateRenderer) RenderPage(w http.ResponseWriter, req *http.Request, status int, data map[string]any) {
	name := "layout"
	if WantsPartial(req) {
		name = "content"
	}

	if data == nil {
		data = make(map[string]any, len(r.globals))
	}
	for k, v := range r.globals {
		if _, ok := data[k]; !ok {
			data[k] = v
		}
	}

	var buf bytes.Buffer
	if err := r.t.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.ErrorContext(req.Context(), "template execution failed",
			slog.String("template", name),
			slog.Any("error", err),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.DebugContext(req.Context(), "failed to write rendered template", slog.Any("error", err))
	}
}
