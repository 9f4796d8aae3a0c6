package httpx

// Page identifiers used in templates and navigation.
const (
	PageHome          = "home"
	PageLogin         = "login"
	PageRegister      = "register"
	PageResetPassword = "reset-password"
	PageNotFound      = "not-found"
)

// Routes that exist regardless of configuration.
const (
	PathRegister      = "/register"
	PathResetPassword = "/reset-password"
	PathAuthStatus    = "/auth/status"
	PathOAuthLogin    = "/auth/oauth/login"
	PathOAuthCallback = "/auth/callback"
	PathHealth        = "/healthz"
)

//nolint:gochecknoglobals // static read-only lookup for templates
var contentTemplates = map[string]string{
	PageHome:          "home-content",
	PageLogin:         "login-content",
	PageRegister:      "register-content",
	PageResetPassword: "reset-password-content",
	PageNotFound:      "not-found-content",
}

// ContentTemplateFor returns the content template for the given CurrentPage.
// Unknown pages render the not-found section.
func ContentTemplateFor(currentPage string) string {
	if name, ok := contentTemplates[currentPage]; ok {
		return name
	}
	return contentTemplates[PageNotFound]
}
