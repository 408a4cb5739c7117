package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#1a1a2e"/><circle cx="100" cy="80" r="30" fill="#e2c275"/><path d="M100 125c-28 0-50 14-50 35v40h100v-40c0-21-22-35-50-35z" fill="#e2c275"/><text x="100" y="190" text-anchor="middle" font-family="Arial" font-size="13" fill="#aaa">ASTROLOGER</text></svg>`

// StaticFileServer serves astrologer profile images, falling back to a
// placeholder avatar when the file is missing.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
