package mimetype

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		path         string
		mime         string
		compressible bool
		templatable  bool
	}{
		{"index.html", "text/html", true, true},
		{"assets/app.js", "text/javascript", true, false},
		{"assets/style.css", "text/css", true, false},
		{"data.json", "application/json", true, false},
		{"logo.svg", "image/svg+xml", true, false},
		{"photo.png", "image/png", false, false},
		{"font.woff2", "font/woff2", false, false},
		{"unknown.xyz123", DefaultMime, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := Classify(tt.path)
			if got.Mime != tt.mime {
				t.Errorf("Mime = %q, want %q", got.Mime, tt.mime)
			}
			if got.Compressible != tt.compressible {
				t.Errorf("Compressible = %v, want %v", got.Compressible, tt.compressible)
			}
			if got.Templatable != tt.templatable {
				t.Errorf("Templatable = %v, want %v", got.Templatable, tt.templatable)
			}
		})
	}
}

func TestCachePolicy(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"text/css", "public, max-age=31536000, immutable"},
		{"image/png", "public, max-age=31536000, immutable"},
		{"text/html", "public, max-age=900"},
		{"application/json", "public, max-age=3600"},
		{DefaultMime, "public, max-age=3600"},
	}
	for _, tt := range tests {
		if got := CachePolicy(tt.mime); got != tt.want {
			t.Errorf("CachePolicy(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}
