// Package httpparse implements a minimal HTTP/1.1 request-line-and-headers
// parser over a fixed-size buffer (spec.md §4.G). It never touches
// net/http: the server speaks raw TCP. It is not zero-copy: a parse copies
// the header section into a string and allocates the split lines and the
// Headers slice.
package httpparse

import (
	"strings"
	"unicode/utf8"
)

// MaxRequestSize bounds the read buffer; a request that doesn't complete
// its header section within this many bytes is oversize (spec.md §4.G/§8).
const MaxRequestSize = 8 * 1024

// State is the parser's progress against the buffer filled so far.
type State int

const (
	Reading State = iota
	Parsed
	Invalid
)

// Header is a single trimmed (name, value) pair from the header section.
type Header struct {
	Name  string
	Value string
}

// Request is the result of successfully parsing a request line and its
// headers out of a buffer.
type Request struct {
	Method  string
	Path    string
	Version string
	Headers []Header
}

// Get returns the value of the first header matching name, compared
// ASCII-case-insensitively (spec.md §4.G).
func (r *Request) Get(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Parse attempts to parse a request out of buf, the bytes read from a
// connection so far. It returns the parsed Request, the parser's state,
// and (on Invalid) a human-readable reason.
//
// Reading means the terminating "\r\n\r\n" has not yet appeared and the
// buffer has not yet reached MaxRequestSize; the caller should read more.
// Invalid covers a malformed request line, invalid header syntax,
// non-UTF-8 content, or an unterminated header section that has reached
// MaxRequestSize (the last case is distinguished by the caller via
// len(buf) so it can respond 413 instead of 400).
func Parse(buf []byte) (Request, State, string) {
	if !utf8.Valid(buf) {
		return Request{}, Invalid, "request is not valid UTF-8"
	}

	idx := indexHeaderEnd(buf)
	if idx < 0 {
		if len(buf) >= MaxRequestSize {
			return Request{}, Invalid, "request exceeds maximum size"
		}
		return Request{}, Reading, ""
	}

	head := string(buf[:idx])
	lines := strings.Split(head, "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return Request{}, Invalid, "missing request line"
	}

	method, path, version, ok := parseRequestLine(lines[0])
	if !ok {
		return Request{}, Invalid, "malformed request line"
	}

	headers := make([]Header, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return Request{}, Invalid, "malformed header line"
		}
		headers = append(headers, Header{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}

	return Request{Method: method, Path: path, Version: version, Headers: headers}, Parsed, ""
}

// indexHeaderEnd finds the offset of "\r\n\r\n" in buf, or -1.
func indexHeaderEnd(buf []byte) int {
	return strings.Index(string(buf), "\r\n\r\n")
}

func parseRequestLine(line string) (method, path, version string, ok bool) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return "", "", "", false
	}
	method, path, version = parts[0], parts[1], parts[2]
	if version != "HTTP/1.0" && version != "HTTP/1.1" {
		return "", "", "", false
	}
	return method, path, version, true
}
