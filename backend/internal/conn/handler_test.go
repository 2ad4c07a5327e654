package conn

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caic-xyz/staticd/backend/internal/config"
	"github.com/caic-xyz/staticd/backend/internal/route"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startTestServer(t *testing.T, files map[string]string, cfg config.Config) (addr string, stop func()) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	idx, err := route.Boot(route.Options{PublicDir: dir, ConfigPrefix: "VITE_"}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	cfg.PublicDir = dir

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	srv := NewServer(idx, cfg, map[string]string{}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx, ln)

	return ln.Addr().String(), func() {
		cancel()
		ln.Close()
	}
}

func rawRequest(t *testing.T, addr, req string) string {
	t.Helper()
	c, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	c.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.Write([]byte(req)); err != nil {
		t.Fatal(err)
	}
	out, err := io.ReadAll(c)
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}
	return string(out)
}

func TestServeBasicGet(t *testing.T) {
	addr, stop := startTestServer(t, map[string]string{
		"test.html": "<html><body>Hello</body></html>",
	}, config.Default())
	defer stop()

	resp := rawRequest(t, addr, "GET /test.html HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", firstLine(resp))
	}
	if !strings.Contains(resp, "Content-Length: 31") {
		t.Errorf("expected Content-Length: 31, got %q", resp)
	}
	if !strings.HasSuffix(resp, "<html><body>Hello</body></html>") {
		t.Errorf("unexpected body: %q", resp)
	}
}

func TestServeHeadTruncatesBody(t *testing.T) {
	addr, stop := startTestServer(t, map[string]string{
		"test.html": "<html><body>Hello</body></html>",
	}, config.Default())
	defer stop()

	resp := rawRequest(t, addr, "HEAD /test.html HTTP/1.1\r\nConnection: close\r\n\r\n")
	if !strings.Contains(resp, "Content-Length: 31") {
		t.Errorf("expected Content-Length: 31, got %q", resp)
	}
	if strings.Contains(resp, "<html>") {
		t.Errorf("HEAD response must not include body, got %q", resp)
	}
}

func TestServeNotFound(t *testing.T) {
	addr, stop := startTestServer(t, map[string]string{"a.html": "x"}, config.Default())
	defer stop()

	resp := rawRequest(t, addr, "GET /missing HTTP/1.1\r\nConnection: close\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 404") {
		t.Errorf("expected 404, got %q", firstLine(resp))
	}
}

func TestServeMethodNotAllowed(t *testing.T) {
	addr, stop := startTestServer(t, map[string]string{"a.html": "x"}, config.Default())
	defer stop()

	resp := rawRequest(t, addr, "POST /a.html HTTP/1.1\r\nConnection: close\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 405") {
		t.Errorf("expected 405, got %q", firstLine(resp))
	}
}

func TestServePathTraversalRejected(t *testing.T) {
	addr, stop := startTestServer(t, map[string]string{"a.html": "x"}, config.Default())
	defer stop()

	resp := rawRequest(t, addr, "GET /../../../etc/passwd HTTP/1.1\r\nConnection: close\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 400") {
		t.Errorf("expected 400, got %q", firstLine(resp))
	}
}

func TestServeHealthEndpoint(t *testing.T) {
	addr, stop := startTestServer(t, map[string]string{"a.html": "x"}, config.Default())
	defer stop()

	resp := rawRequest(t, addr, "GET /_health HTTP/1.1\r\nConnection: close\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status: %q", firstLine(resp))
	}
	if !strings.Contains(resp, `"status":"ok"`) {
		t.Errorf("expected status:ok in health body, got %q", resp)
	}
}

func TestServeConditionalGetReturns304(t *testing.T) {
	addr, stop := startTestServer(t, map[string]string{"a.html": "hello"}, config.Default())
	defer stop()

	first := rawRequest(t, addr, "GET /a.html HTTP/1.1\r\nConnection: close\r\n\r\n")
	etag := extractHeader(first, "ETag")
	if etag == "" {
		t.Fatal("first response missing ETag")
	}

	second := rawRequest(t, addr, "GET /a.html HTTP/1.1\r\nIf-None-Match: "+etag+"\r\nConnection: close\r\n\r\n")
	if !strings.HasPrefix(second, "HTTP/1.1 304 Not Modified\r\n") {
		t.Fatalf("expected 304, got %q", firstLine(second))
	}
}

func TestServeSPAFallback(t *testing.T) {
	cfg := config.Default()
	cfg.SPA = true
	addr, stop := startTestServer(t, map[string]string{
		"index.html": "<html>root</html>",
	}, cfg)
	defer stop()

	resp := rawRequest(t, addr, "GET /some/client/route HTTP/1.1\r\nConnection: close\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("expected SPA fallback to 200, got %q", firstLine(resp))
	}
	if !strings.Contains(resp, "<html>root</html>") {
		t.Errorf("expected root index body, got %q", resp)
	}
}

func firstLine(s string) string {
	line, _, _ := bufio.NewReader(strings.NewReader(s)).ReadLine()
	return string(line)
}

func extractHeader(resp, name string) string {
	for _, line := range strings.Split(resp, "\r\n") {
		if strings.HasPrefix(line, name+": ") {
			return strings.TrimPrefix(line, name+": ")
		}
	}
	return ""
}
