// Package guard decides whether a page navigation may proceed for the current auth state.
package guard

// DefaultLoginPath is where unauthenticated navigations are sent.
const DefaultLoginPath = "/login"

// DefaultPublicPaths returns the pages reachable without a session.
func DefaultPublicPaths() []string {
	return []string{"/login", "/register", "/reset-password"}
}

// Decision is the outcome of a navigation check.
type Decision struct {
	Redirect bool
	Location string
}

// Proceed lets the navigation continue untouched.
func Proceed() Decision { return Decision{} }

// RedirectTo sends the navigation elsewhere.
func RedirectTo(location string) Decision {
	return Decision{Redirect: true, Location: location}
}

// Guard holds the public allow-list and the login location.
// Matching is exact string equality on the full path (path plus query):
// "/login/" and "/login?next=/" are not public.
type Guard struct {
	public    map[string]struct{}
	loginPath string
}

// Options configures a Guard. Zero values fall back to the defaults.
type Options struct {
	PublicPaths []string
	LoginPath   string
}

// New builds a Guard.
func New(opts Options) *Guard {
	paths := opts.PublicPaths
	if len(paths) == 0 {
		paths = DefaultPublicPaths()
	}
	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}

	public := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		public[p] = struct{}{}
	}
	return &Guard{public: public, loginPath: loginPath}
}

// IsPublic reports whether fullPath is on the allow-list.
func (g *Guard) IsPublic(fullPath string) bool {
	_, ok := g.public[fullPath]
	return ok
}

// LoginPath returns the redirect target for unauthenticated navigations.
func (g *Guard) LoginPath() string { return g.loginPath }

// Decide returns a redirect to the login page when fullPath is private and
// the caller is not logged in; every other combination proceeds.
func (g *Guard) Decide(fullPath string, loggedIn bool) Decision {
	if loggedIn || g.IsPublic(fullPath) {
		return Proceed()
	}
	return RedirectTo(g.loginPath)
}
