//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are installed globally via `go install` and are not tracked in go.mod
// since they are development tools, not runtime dependencies.
package tools

// Development tools:
//
// Air - Live reload while editing handlers and templates (run with DEV=true so
// templates are read from web/templates)
//   Install: go install github.com/air-verse/air@v1.63.0
//   Docs: https://github.com/air-verse/air
//
// mockgen - Regenerates internal/mocks from the auth ports
//   Run: go generate ./internal/mocks
//   Version: pinned in internal/mocks/generate.go (go.uber.org/mock v0.6.0)
