// Package web holds the dashboard page and its assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Templates parses the dashboard templates.
func Templates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html")
}

// Static returns the assets served under /static/, rooted at the static
// directory.
func Static() (fs.FS, error) {
	return fs.Sub(staticFS, "static")
}
