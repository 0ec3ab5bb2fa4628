// Package web embeds the browser overlay served by the API server at "/".
//
// The page subscribes to /api/v1/ws and renders every prices, alert and
// error message it receives.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:static
var dist embed.FS

// DistFS returns a filesystem rooted at the embedded static/ directory.
// This is ready to use with http.FileServerFS or http.FS.
func DistFS() fs.FS {
	sub, err := fs.Sub(dist, "static")
	if err != nil {
		// static/ is embedded at compile time; Sub only fails on a bad path.
		panic(err)
	}
	return sub
}
