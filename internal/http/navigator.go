package httpx

import (
	"context"
	"net/http"
	"sync"

	"github.com/target/mmk-ui-web/internal/apiclient"
)

// responseNavigator turns the API client's "go to login" request into a redirect on
// the response being written. Only the first navigation takes effect.
type responseNavigator struct {
	w       http.ResponseWriter
	r       *http.Request
	cookies CookieConfig

	once      sync.Once
	navigated bool
}

var _ apiclient.Navigator = (*responseNavigator)(nil)

func newResponseNavigator(w http.ResponseWriter, r *http.Request, cookies CookieConfig) *responseNavigator {
	return &responseNavigator{w: w, r: r, cookies: cookies}
}

// NavigateTo drops the rejected token and redirects the browser to location.
func (n *responseNavigator) NavigateTo(_ context.Context, location string) error {
	n.once.Do(func() {
		n.cookies.clearToken(n.w, n.r)
		redirect(n.w, n.r, location)
		n.navigated = true
	})
	return nil
}

// Navigated reports whether a redirect has already been written.
func (n *responseNavigator) Navigated() bool { return n.navigated }
