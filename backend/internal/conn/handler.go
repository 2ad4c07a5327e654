// Package conn implements the accept loop and per-connection request
// handling (spec.md §4.H). It never uses net/http: each connection is
// driven by a hand-rolled read → parse → validate → lookup → write
// loop over the raw net.Conn, matching the teacher's graceful-shutdown
// idiom (context cancellation closes the listener) but not its
// http.Server-based transport.
package conn

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/caic-xyz/staticd/backend/internal/codec"
	"github.com/caic-xyz/staticd/backend/internal/config"
	"github.com/caic-xyz/staticd/backend/internal/httpparse"
	"github.com/caic-xyz/staticd/backend/internal/pathvalidate"
	"github.com/caic-xyz/staticd/backend/internal/route"
)

// nowFunc is overridden in tests so /_health timestamps are deterministic.
var nowFunc = time.Now

const healthPath = "/_health"

// Server accepts connections and serves pre-built responses out of an
// Index. Config, Env, and Logger are read-only after construction
// (spec.md §9 "Global state"); the index itself is held behind an
// atomic pointer because dev mode may swap it wholesale when
// internal/devwatch detects the served directory was replaced.
type Server struct {
	idx    atomic.Pointer[route.Index]
	Config config.Config
	Env    map[string]string
	Logger *slog.Logger
}

// NewServer constructs a Server serving out of idx.
func NewServer(idx *route.Index, cfg config.Config, env map[string]string, logger *slog.Logger) *Server {
	s := &Server{Config: cfg, Env: env, Logger: logger}
	s.idx.Store(idx)
	return s
}

// SetIndex atomically swaps the index a Server serves out of. Safe to
// call concurrently with Serve.
func (s *Server) SetIndex(idx *route.Index) {
	s.idx.Store(idx)
}

func (s *Server) index() *route.Index {
	return s.idx.Load()
}

// Serve runs the accept loop until ctx is canceled or Accept fails.
// Each accepted connection is handled in its own goroutine.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.Logger.Info("listening", "addr", ln.Addr().String())
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, c)
	}
}

// handleConn drives one connection through Idle → Reading → Dispatching
// → Writing → (Idle | Closed), per spec.md §4.H.
func (s *Server) handleConn(ctx context.Context, c net.Conn) {
	defer c.Close()

	buf := make([]byte, 0, httpparse.MaxRequestSize)
	r := bufio.NewReaderSize(c, httpparse.MaxRequestSize)

	for {
		req, raw, ok := s.readRequest(c, r, buf)
		if !ok {
			return
		}

		if req == nil {
			// raw carries the parse failure classification via sentinel
			// lengths; see readRequest. Write the appropriate error and
			// close — parse/oversize failures are always terminal.
			if len(raw) == 1 && raw[0] == oversizeMarker {
				s.writeStatus(c, 413, "Payload Too Large", true)
			} else {
				s.writeStatus(c, 400, "Bad Request", true)
			}
			return
		}

		keepAlive := s.dispatch(ctx, c, req)
		if !keepAlive {
			return
		}
		buf = buf[:0]
	}
}

const oversizeMarker = 1

// readRequest fills r until httpparse.Parse reports Parsed or Invalid.
// On success it returns the parsed request. On failure it returns a nil
// request; the caller distinguishes 400 vs 413 via the sentinel byte
// slice returned as raw (length 1 containing oversizeMarker means 413).
func (s *Server) readRequest(c net.Conn, r *bufio.Reader, buf []byte) (*httpparse.Request, []byte, bool) {
	for {
		n, err := r.Read(buf[len(buf):cap(buf)])
		if n > 0 {
			buf = buf[:len(buf)+n]
			req, state, reason := httpparse.Parse(buf)
			switch state {
			case httpparse.Parsed:
				return &req, nil, true
			case httpparse.Invalid:
				if len(buf) >= httpparse.MaxRequestSize {
					return nil, []byte{oversizeMarker}, true
				}
				s.Logger.Debug("parse error", "reason", reason)
				return nil, nil, true
			case httpparse.Reading:
				if len(buf) >= cap(buf) {
					return nil, []byte{oversizeMarker}, true
				}
				continue
			}
		}
		if err != nil {
			return nil, nil, false
		}
	}
}

// dispatch executes steps 2-9 of spec.md §4.H for one parsed request and
// reports whether the connection should remain open.
func (s *Server) dispatch(ctx context.Context, c net.Conn, req *httpparse.Request) bool {
	if s.Config.LogRequests {
		s.Logger.Info("request", "method", req.Method, "path", req.Path)
	}

	if req.Method != "GET" && req.Method != "HEAD" {
		keepAlive := s.wantsKeepAlive(req)
		s.writeStatus(c, 405, "Method Not Allowed", !keepAlive)
		return keepAlive
	}

	if req.Path == healthPath {
		keepAlive := s.wantsKeepAlive(req)
		if !s.writeHealth(c, keepAlive) {
			return false
		}
		return keepAlive
	}

	validPath, err := pathvalidate.Validate(req.Path)
	if err != nil {
		s.writeStatus(c, 400, "Bad Request", true)
		return false
	}

	idx := s.index()
	if s.Config.Dev {
		idx.RefreshIfModified(validPath, s.Env, s.Logger)
	}

	enc := codec.SelectEncoding(headerValue(req, "Accept-Encoding"))
	entry, ok := s.lookup(idx, validPath, enc)
	if !ok {
		keepAlive := s.wantsKeepAlive(req)
		s.writeStatus(c, 404, "Not Found", !keepAlive)
		return keepAlive
	}

	if inm := headerValue(req, "If-None-Match"); inm != "" && inm == entry.Meta.ETag {
		notModified := buildNotModified(entry.Meta.ETag, entry.Meta.CacheControl)
		if _, err := c.Write(notModified); err != nil {
			return false
		}
		return s.wantsKeepAlive(req)
	}

	payload := entry.Buffer
	if req.Method == "HEAD" {
		payload = entry.Buffer[:entry.BodyOffset]
	}
	if _, err := c.Write(payload); err != nil {
		s.Logger.Debug("write error", "err", err)
		return false
	}

	return s.wantsKeepAlive(req)
}

// lookup implements the route-resolution fallback chain from spec.md
// §4.H step 6: exact path, then path+"/", then (SPA mode) "/".
func (s *Server) lookup(idx *route.Index, path string, enc codec.Encoding) (route.Entry, bool) {
	if e, ok := idx.Get(path, enc); ok {
		return e, true
	}
	if !strings.HasSuffix(path, "/") {
		if e, ok := idx.Get(path+"/", enc); ok {
			return e, true
		}
	}
	if s.Config.SPA {
		if e, ok := idx.Get("/", enc); ok {
			return e, true
		}
	}
	return route.Entry{}, false
}

// wantsKeepAlive reports whether the connection should stay open after
// this response, per spec.md §4.H step 9.
func (s *Server) wantsKeepAlive(req *httpparse.Request) bool {
	return !strings.EqualFold(headerValue(req, "Connection"), "close")
}

func headerValue(req *httpparse.Request, name string) string {
	v, _ := req.Get(name)
	return v
}

// writeStatus writes a short, plain-text, non-HTML error body (spec.md
// §7: "bodies ... contain no server internals"). The Connection header is
// only emitted when closing is true, matching the 200/304 paths which
// send no Connection header at all when the socket stays open.
func (s *Server) writeStatus(c net.Conn, status int, reason string, closing bool) {
	body := reason + "\n"
	connHeader := ""
	if closing {
		connHeader = "Connection: close\r\n"
	}
	resp := fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nContent-Type: text/plain; charset=utf-8\r\nContent-Length: %d\r\n%s\r\n%s",
		status, reason, len(body), connHeader, body,
	)
	_, _ = c.Write([]byte(resp))
}

type healthBody struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// writeHealth writes the /_health response. keepAlive is whether the
// caller intends to keep the connection open; writeHealth reports
// whether the connection is actually still open, which is false when
// marshaling fails and it falls back to a closing 500.
func (s *Server) writeHealth(c net.Conn, keepAlive bool) bool {
	body, err := json.Marshal(healthBody{Status: "ok", Timestamp: nowFunc().UTC().Format(time.RFC3339)})
	if err != nil {
		s.writeStatus(c, 500, "Internal Server Error", true)
		return false
	}
	resp := fmt.Sprintf(
		"HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: %d\r\nCache-Control: no-store\r\n\r\n%s",
		len(body), body,
	)
	if _, err := c.Write([]byte(resp)); err != nil {
		s.Logger.Debug("write error", "err", err)
		return false
	}
	return keepAlive
}

func buildNotModified(etag, cacheControl string) []byte {
	return []byte(fmt.Sprintf("HTTP/1.1 304 Not Modified\r\nETag: %s\r\nCache-Control: %s\r\n\r\n", etag, cacheControl))
}
