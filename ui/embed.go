// Package ui embeds the phone capture page.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:capture
var captureFS embed.FS

// Handler returns an http.Handler that serves the embedded capture page.
func Handler() (http.Handler, error) {
	fsys, err := fs.Sub(captureFS, "capture")
	if err != nil {
		return nil, err
	}

	fileServer := http.FileServer(http.FS(fsys))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean(r.URL.Path)

		f, openErr := fsys.Open(strings.TrimPrefix(p, "/"))
		if openErr == nil {
			defer func() { _ = f.Close() }()
			stat, statErr := f.Stat()
			if statErr == nil && !stat.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		// Extensionless paths, including the stream path, get the page itself
		if !strings.Contains(path.Base(p), ".") {
			r2 := r.Clone(r.Context())
			r2.URL.Path = "/"
			fileServer.ServeHTTP(w, r2)
			return
		}

		http.NotFound(w, r)
	}), nil
}
