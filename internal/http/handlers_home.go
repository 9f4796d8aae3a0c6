package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/mmk-ui-web/internal/apiclient"
)

// HomeHandler renders the landing page for logged-in users. When AccountPath is set
// it loads the account through the API client, so a rejected token sends the
// browser to the login page like any other API call would.
type HomeHandler struct {
	API *apiclient.Client
	// AccountPath is relative to the API root; empty skips the account lookup.
	AccountPath string
	Renderer    *TemplateRenderer
	Cookies     CookieConfig
	Logger      *slog.Logger
}

func (h *HomeHandler) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// ServeHTTP handles GET /.
func (h *HomeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b := NewTemplateData(r, PageMeta{Title: "Home", CurrentPage: PageHome}).
		WithNotice(h.Cookies.popFlash(w, r))

	if h.API != nil && h.AccountPath != "" {
		nav := newResponseNavigator(w, r, h.Cookies)
		resp, err := h.API.WithNavigator(nav).Get(r.Context(), h.AccountPath, nil)
		if nav.Navigated() {
			return
		}
		switch {
		case err != nil:
			h.logger().WarnContext(r.Context(), "load account failed", "error", err)
			b.With("AccountError", "Account details are unavailable right now.")
		default:
			var account map[string]any
			if decErr := resp.DecodeJSON(&account); decErr != nil {
				h.logger().DebugContext(r.Context(), "account response is not an object", "error", decErr)
			} else {
				b.With("Account", account)
			}
		}
	}

	h.Renderer.RenderPage(w, r, http.StatusOK, b.Build())
}

// NotFound renders the not-found page for unknown routes.
func NotFound(renderer *TemplateRenderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := NewTemplateData(r, PageMeta{Title: "Not found", CurrentPage: PageNotFound}).Build()
		renderer.RenderPage(w, r, http.StatusNotFound, data)
	}
}
