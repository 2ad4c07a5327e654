// Package response assembles the immutable, pre-baked HTTP/1.1 response
// buffers served on the hot path (spec.md §4.D, §6).
package response

import (
	"strconv"

	"github.com/caic-xyz/staticd/backend/internal/codec"
)

// Meta is the per-route metadata shared across every encoding variant of
// a route (spec.md §3 RouteMetadata; invariant 4).
type Meta struct {
	ContentType  string
	ETag         string
	LastModified string
	CacheControl string
}

const securityHeaders = "" +
	"X-Content-Type-Options: nosniff\r\n" +
	"X-Frame-Options: SAMEORIGIN\r\n" +
	"Referrer-Policy: strict-origin-when-cross-origin\r\n" +
	"Strict-Transport-Security: max-age=63072000; includeSubDomains\r\n" +
	"Permissions-Policy: camera=(), microphone=(), geolocation=()\r\n" +
	"X-DNS-Prefetch-Control: off\r\n"

// Built is a pre-assembled response: the complete wire bytes plus the
// offset where the body begins, so the connection handler can serve HEAD
// requests by writing only the header section.
type Built struct {
	Buffer     []byte
	BodyOffset int
}

// Build assembles the exact byte sequence in spec.md §6 for a 200 OK
// response: status line, headers in fixed order, blank line, body.
// Content-Encoding is emitted iff enc is non-identity; Vary: Accept-Encoding
// is emitted iff vary is true (the route has at least one non-identity
// variant).
func Build(meta Meta, enc codec.Encoding, body []byte, vary bool) Built {
	buf := make([]byte, 0, 320+len(body))

	buf = append(buf, "HTTP/1.1 200 OK\r\n"...)
	buf = append(buf, "Content-Type: "...)
	buf = append(buf, meta.ContentType...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "Content-Length: "...)
	buf = strconv.AppendInt(buf, int64(len(body)), 10)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "ETag: "...)
	buf = append(buf, meta.ETag...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "Last-Modified: "...)
	buf = append(buf, meta.LastModified...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "Cache-Control: "...)
	buf = append(buf, meta.CacheControl...)
	buf = append(buf, "\r\n"...)

	if tok := enc.Token(); tok != "" {
		buf = append(buf, "Content-Encoding: "...)
		buf = append(buf, tok...)
		buf = append(buf, "\r\n"...)
	}
	if vary {
		buf = append(buf, "Vary: Accept-Encoding\r\n"...)
	}

	buf = append(buf, securityHeaders...)
	buf = append(buf, "\r\n"...)

	bodyOffset := len(buf)
	buf = append(buf, body...)

	return Built{Buffer: buf, BodyOffset: bodyOffset}
}

// BuildNotModified assembles a 304 response carrying only ETag and
// Cache-Control, with no body (spec.md §4.H.7).
func BuildNotModified(etag, cacheControl string) []byte {
	buf := make([]byte, 0, 96)
	buf = append(buf, "HTTP/1.1 304 Not Modified\r\n"...)
	buf = append(buf, "ETag: "...)
	buf = append(buf, etag...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "Cache-Control: "...)
	buf = append(buf, cacheControl...)
	buf = append(buf, "\r\n\r\n"...)
	return buf
}
