// Package mimetype classifies a file path into a MIME type and the
// compressible/templatable/cache-policy flags that follow from it.
package mimetype

import (
	"path/filepath"
	"strings"
)

// DefaultMime is returned for extensions absent from the table.
const DefaultMime = "application/octet-stream"

// Config is the classification result for a single path (spec's
// MimeConfig).
type Config struct {
	Mime         string
	Compressible bool
	Templatable  bool
}

// byExt maps a lowercase extension (including the leading dot) to its MIME
// type. Kept as an explicit table rather than the stdlib mime package's
// OS-dependent /etc/mime.types lookup, so classification is deterministic
// across hosts.
var byExt = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".mjs":  "text/javascript",
	".json": "application/json",
	".map":  "application/json",

	".txt": "text/plain",
	".csv": "text/csv",
	".md":  "text/markdown",

	".xml":  "application/xml",
	".rss":  "application/rss+xml",
	".atom": "application/atom+xml",
	".svg":  "image/svg+xml",

	".webmanifest": "application/manifest+json",

	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".ico":  "image/x-icon",
	".avif": "image/avif",

	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",

	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".mp4":  "video/mp4",
	".webm": "video/webm",

	".wasm": "application/wasm",
	".pdf":  "application/pdf",
}

// compressibleMimes is the fixed allow-list from spec.md §3.
var compressibleMimes = map[string]bool{
	"text/html":                 true,
	"text/css":                  true,
	"text/javascript":           true,
	"text/plain":                true,
	"text/csv":                  true,
	"text/markdown":             true,
	"text/cache-manifest":       true,
	"application/json":          true,
	"application/ld+json":       true,
	"application/manifest+json": true,
	"text/xml":                  true,
	"application/xml":           true,
	"application/rss+xml":       true,
	"application/atom+xml":      true,
	"image/svg+xml":             true,
}

// Classify never fails: unknown extensions yield DefaultMime and are
// treated as non-compressible, non-templatable (spec.md §4.A).
func Classify(path string) Config {
	ext := strings.ToLower(filepath.Ext(path))
	m, ok := byExt[ext]
	if !ok {
		m = DefaultMime
	}
	return Config{
		Mime:         m,
		Compressible: compressibleMimes[m],
		Templatable:  m == "text/html",
	}
}

// isAsset reports whether mime belongs to the CSS/JS/image/font/audio/video
// class that receives year-long immutable caching.
func isAsset(mime string) bool {
	switch {
	case mime == "text/css", mime == "text/javascript":
		return true
	case strings.HasPrefix(mime, "image/"):
		return true
	case strings.HasPrefix(mime, "font/"), mime == "application/vnd.ms-fontobject":
		return true
	case strings.HasPrefix(mime, "audio/"), strings.HasPrefix(mime, "video/"):
		return true
	default:
		return false
	}
}

// CachePolicy derives the Cache-Control value for mime per spec.md §3.
func CachePolicy(mime string) string {
	switch {
	case isAsset(mime):
		return "public, max-age=31536000, immutable"
	case mime == "text/html":
		return "public, max-age=900"
	default:
		return "public, max-age=3600"
	}
}
