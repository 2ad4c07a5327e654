package route

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/caic-xyz/staticd/backend/internal/codec"
	"github.com/caic-xyz/staticd/backend/internal/mimetype"
	"github.com/caic-xyz/staticd/backend/internal/response"
	"github.com/caic-xyz/staticd/backend/internal/template"
)

// httpDateLayout formats a time.Time as an RFC 7231 HTTP-date.
const httpDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// Options configures the boot walk.
type Options struct {
	PublicDir    string
	ConfigPrefix string
}

type fileJob struct {
	fullPath string
	urlPath  string
	mtime    time.Time
}

// Boot walks PublicDir, classifies/templates/compresses every regular
// file in parallel, and returns a populated Index (spec.md §4.E boot
// algorithm). A per-file failure is logged and skipped; it never aborts
// the walk.
func Boot(opts Options, logger *slog.Logger) (*Index, error) {
	env := template.CollectEnv(opts.ConfigPrefix)
	idx := NewIndex()

	var jobs []fileJob
	err := filepath.WalkDir(opts.PublicDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("walk error, skipping", "path", p, "err", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			logger.Warn("stat failed, skipping file", "path", p, "err", err)
			return nil
		}
		rel, err := filepath.Rel(opts.PublicDir, p)
		if err != nil {
			logger.Warn("relative path failed, skipping file", "path", p, "err", err)
			return nil
		}
		jobs = append(jobs, fileJob{
			fullPath: p,
			urlPath:  "/" + filepath.ToSlash(rel),
			mtime:    info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", opts.PublicDir, err)
	}

	var g errgroup.Group
	g.SetLimit(max(runtime.GOMAXPROCS(0), 1))
	for _, job := range jobs {
		g.Go(func() error {
			snap, err := buildSnapshot(job.fullPath, job.urlPath, job.mtime, env, logger)
			if err != nil {
				logger.Warn("skipping file", "path", job.fullPath, "err", err)
				return nil
			}
			ptr := &atomic.Pointer[snapshot]{}
			ptr.Store(snap)
			idx.publish(job.urlPath, ptr)
			if strings.HasSuffix(job.urlPath, "/index.html") {
				idx.publish(dirAlias(job.urlPath), ptr)
			}
			return nil
		})
	}
	_ = g.Wait() // buildSnapshot errors are contained above; never propagated.

	logger.Info("route index built", "routes", idx.Len(), "files", len(jobs))
	return idx, nil
}

// dirAlias returns the directory-index alias for a "/…/index.html" path:
// "/" for the root index, else the parent path with a trailing slash.
func dirAlias(urlPath string) string {
	if urlPath == "/index.html" {
		return "/"
	}
	return strings.TrimSuffix(urlPath, "index.html")
}

// buildSnapshot reads, classifies, optionally templates, compresses, and
// bakes the full set of response buffers for one file.
func buildSnapshot(fullPath, urlPath string, mtime time.Time, env map[string]string, logger *slog.Logger) (*snapshot, error) {
	data, err := os.ReadFile(fullPath) //nolint:gosec // fullPath comes from a walk rooted at the configured public dir
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	cfg := mimetype.Classify(urlPath)
	body := data
	if cfg.Templatable {
		rendered, err := template.Render(string(data), env)
		if err != nil {
			// TemplateError: serve the original body verbatim (spec.md §4.B).
			logger.Warn("template render failed, serving original body", "path", fullPath, "err", err)
		} else {
			body = []byte(rendered)
		}
	}
	return buildFromBody(urlPath, fullPath, mtime, cfg, body)
}

func buildFromBody(urlPath, fullPath string, mtime time.Time, cfg mimetype.Config, body []byte) (*snapshot, error) {
	variants, err := codec.BuildVariants(body, cfg.Compressible)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}

	etag := fmt.Sprintf("%x-%x", mtime.Unix(), len(variants.Plain))
	meta := response.Meta{
		ContentType:  cfg.Mime,
		ETag:         `"` + etag + `"`,
		LastModified: mtime.UTC().Format(httpDateLayout),
		CacheControl: mimetype.CachePolicy(cfg.Mime),
	}
	vary := variants.HasAnyCompressed()

	snap := &snapshot{
		meta:        meta,
		urlPath:     urlPath,
		sourcePath:  fullPath,
		sourceMTime: mtime,
	}
	snap.identity = toVariant(response.Build(meta, codec.Identity, variants.Plain, vary))
	if variants.Gzip != nil {
		v := toVariant(response.Build(meta, codec.Gzip, variants.Gzip, vary))
		snap.gzip = &v
	}
	if variants.Brotli != nil {
		v := toVariant(response.Build(meta, codec.Brotli, variants.Brotli, vary))
		snap.brotli = &v
	}
	if variants.Zstd != nil {
		v := toVariant(response.Build(meta, codec.Zstd, variants.Zstd, vary))
		snap.zstd = &v
	}
	return snap, nil
}

func toVariant(b response.Built) variant {
	return variant{buffer: b.Buffer, bodyOffset: b.BodyOffset}
}
