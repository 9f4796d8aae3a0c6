// Package mmkweb provides the embedded page templates.
package mmkweb

import (
	"embed"
	"io/fs"
)

// TemplateFS holds web/templates. In dev mode templates are read from disk instead.
//
//go:embed web/templates
var TemplateFS embed.FS

// Templates returns the template tree rooted at web/templates.
func Templates() (fs.FS, error) { return fs.Sub(TemplateFS, "web/templates") }
