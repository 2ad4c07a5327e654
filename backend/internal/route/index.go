// Package route implements the lock-free (path, encoding) -> pre-built
// response index and the boot/refresh pipelines that populate it
// (spec.md §3 RouteIndex, §4.E, §4.I).
package route

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/caic-xyz/staticd/backend/internal/codec"
	"github.com/caic-xyz/staticd/backend/internal/response"
)

// variant is one encoding's pre-built buffer, body-offset pair.
type variant struct {
	buffer     []byte
	bodyOffset int
}

// snapshot is everything needed to answer requests for one route. It is
// immutable after construction (spec.md §3 invariant 5); updates replace
// the *snapshot a route's atomic.Pointer holds, never mutate one in place.
type snapshot struct {
	identity variant
	gzip     *variant
	brotli   *variant
	zstd     *variant

	meta response.Meta

	// urlPath is the canonical (non-alias) URL path this snapshot was
	// built from, e.g. "/foo/index.html" even when also published under
	// the "/foo/" directory alias. Needed to re-classify on refresh.
	urlPath     string
	sourcePath  string
	sourceMTime time.Time
}

func (s *snapshot) get(enc codec.Encoding) variant {
	switch enc {
	case codec.Gzip:
		if s.gzip != nil {
			return *s.gzip
		}
	case codec.Brotli:
		if s.brotli != nil {
			return *s.brotli
		}
	case codec.Zstd:
		if s.zstd != nil {
			return *s.zstd
		}
	}
	return s.identity
}

// Entry is what callers (the connection handler) receive from a lookup.
type Entry struct {
	Buffer     []byte
	BodyOffset int
	Meta       response.Meta
}

// Index maps (url_path, encoding) to pre-built responses. Two URL keys
// that alias the same route (e.g. "/" and "/index.html") share the same
// *atomic.Pointer[snapshot] instance, so a refresh through either key
// publishes to both atomically (spec.md §3 invariant 2).
type Index struct {
	routes sync.Map // map[string]*atomic.Pointer[snapshot]
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{}
}

// Get returns the pre-built response for (path, encoding), falling back
// to Identity when the requested encoding has no variant (spec.md §4.E
// "Lookup operation").
func (idx *Index) Get(path string, enc codec.Encoding) (Entry, bool) {
	ptr, ok := idx.loadPointer(path)
	if !ok {
		return Entry{}, false
	}
	snap := ptr.Load()
	if snap == nil {
		return Entry{}, false
	}
	v := snap.get(enc)
	return Entry{Buffer: v.buffer, BodyOffset: v.bodyOffset, Meta: snap.meta}, true
}

func (idx *Index) loadPointer(path string) (*atomic.Pointer[snapshot], bool) {
	v, ok := idx.routes.Load(path)
	if !ok {
		return nil, false
	}
	return v.(*atomic.Pointer[snapshot]), true
}

// publish installs ptr under path, replacing whatever was previously
// registered there. Used only at boot; refresh instead stores a new
// snapshot into the existing pointer so aliases stay in sync.
func (idx *Index) publish(path string, ptr *atomic.Pointer[snapshot]) {
	idx.routes.Store(path, ptr)
}

// Len returns the number of registered route keys, including aliases.
// Used only for boot-completion logging.
func (idx *Index) Len() int {
	n := 0
	idx.routes.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
