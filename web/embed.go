// Package web embeds the page templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var assets embed.FS

// Templates returns the layout and page templates.
func Templates() (fs.FS, error) {
	return fs.Sub(assets, "templates")
}

// Static returns the files served under /static.
func Static() (fs.FS, error) {
	return fs.Sub(assets, "static")
}
