package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// APIConfig describes the upstream backend that /api/* is proxied to.
type APIConfig struct {
	// URL is the upstream backend base URL (e.g. "https://backend.example.com").
	// NUXT_API_URL is honoured for parity with existing deployments; API_URL is the fallback.
	URL string `env:"NUXT_API_URL"`

	// Prefix is the same-origin path prefix that is stripped before forwarding.
	Prefix string `env:"API_PREFIX" envDefault:"/api/"`
}

// Sanitize trims values and applies the API_URL fallback.
func (a *APIConfig) Sanitize() {
	a.URL = strings.TrimSpace(a.URL)
	if a.URL == "" {
		a.URL = strings.TrimSpace(os.Getenv("API_URL"))
	}

	a.Prefix = strings.TrimSpace(a.Prefix)
	if a.Prefix == "" {
		a.Prefix = "/api/"
	}
	if !strings.HasPrefix(a.Prefix, "/") {
		a.Prefix = "/" + a.Prefix
	}
	if !strings.HasSuffix(a.Prefix, "/") {
		a.Prefix += "/"
	}
}

// Validate reports whether the upstream URL is usable.
func (a *APIConfig) Validate() error {
	if a.URL == "" {
		return errors.New("NUXT_API_URL (or API_URL) is required")
	}
	u, err := url.Parse(a.URL)
	if err != nil {
		return fmt.Errorf("invalid API URL %q: %w", a.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid API URL %q: must use http or https scheme", a.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid API URL %q: must have a valid host", a.URL)
	}
	return nil
}
