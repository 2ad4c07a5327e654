// Package codec implements encoding negotiation and the parallel
// gzip/brotli/zstd compression fan-out (spec.md §4.C, §3 Encoding).
package codec

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

// Encoding is the tagged variant from spec.md §3. Priority order for
// negotiation is Brotli > Zstd > Gzip > Identity.
type Encoding int

const (
	Identity Encoding = iota
	Gzip
	Brotli
	Zstd
)

// Token returns the wire token used in the Content-Encoding header, or ""
// for Identity.
func (e Encoding) Token() string {
	switch e {
	case Gzip:
		return "gzip"
	case Brotli:
		return "br"
	case Zstd:
		return "zstd"
	default:
		return ""
	}
}

func (e Encoding) String() string {
	if t := e.Token(); t != "" {
		return t
	}
	return "identity"
}

// MinCompressSize is the byte threshold below which compression is
// skipped: the overhead of the codec dominates any savings.
const MinCompressSize = 1024

// SelectEncoding implements the negotiation law from spec.md §4.E/§8:
// tokenize on ",", strip ";"-parameters, and prefer br > zstd > gzip.
// Substring matching is explicitly disallowed (e.g. "br" must not match
// inside "vibrant").
func SelectEncoding(acceptEncoding string) Encoding {
	sawZstd := false
	sawGzip := false
	for _, tok := range strings.Split(acceptEncoding, ",") {
		tok = strings.TrimSpace(tok)
		if i := strings.IndexByte(tok, ';'); i >= 0 {
			tok = strings.TrimSpace(tok[:i])
		}
		switch tok {
		case "br":
			return Brotli
		case "zstd":
			sawZstd = true
		case "gzip":
			sawGzip = true
		}
	}
	if sawZstd {
		return Zstd
	}
	if sawGzip {
		return Gzip
	}
	return Identity
}

// Variants holds the plain body and whichever compressed variants were
// built (spec.md §3 CompressedContent).
type Variants struct {
	Plain  []byte
	Gzip   []byte
	Brotli []byte
	Zstd   []byte
}

// Get returns the body for enc, falling back to Plain when the variant is
// absent (e.g. non-compressible content).
func (v *Variants) Get(enc Encoding) []byte {
	switch enc {
	case Gzip:
		if v.Gzip != nil {
			return v.Gzip
		}
	case Brotli:
		if v.Brotli != nil {
			return v.Brotli
		}
	case Zstd:
		if v.Zstd != nil {
			return v.Zstd
		}
	}
	return v.Plain
}

// HasAnyCompressed reports whether at least one compressed buffer was
// built (used to decide whether to emit Vary: Accept-Encoding).
func (v *Variants) HasAnyCompressed() bool {
	return v.Gzip != nil || v.Brotli != nil || v.Zstd != nil
}

// BuildVariants runs gzip, brotli, and zstd concurrently over body when
// compressible and large enough; the three codecs must not be serialized
// (spec.md §4.C, §9). A single codec failure fails the whole call.
func BuildVariants(body []byte, compressible bool) (Variants, error) {
	if !compressible || len(body) < MinCompressSize {
		return Variants{Plain: body}, nil
	}

	var g errgroup.Group
	var gz, br, zs []byte

	g.Go(func() error {
		out, err := compressGzip(body)
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
		gz = out
		return nil
	})
	g.Go(func() error {
		out, err := compressBrotli(body)
		if err != nil {
			return fmt.Errorf("brotli: %w", err)
		}
		br = out
		return nil
	})
	g.Go(func() error {
		out, err := compressZstd(body)
		if err != nil {
			return fmt.Errorf("zstd: %w", err)
		}
		zs = out
		return nil
	})

	if err := g.Wait(); err != nil {
		return Variants{}, err
	}
	return Variants{Plain: body, Gzip: gz, Brotli: br, Zstd: zs}, nil
}

func compressGzip(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compressBrotli(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compressZstd(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
