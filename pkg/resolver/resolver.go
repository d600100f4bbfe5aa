// Package resolver turns a release asset into a bundle identifier, a
// genre and an icon.
//
// Each asset goes through the same stages: download, archive validation,
// tamper check, descriptor parse, catalog lookup and, on a catalog miss,
// icon extraction from the archive itself. Only an invalid archive, a
// tampered archive or a missing bundle identifier reject the asset; every
// other failure is recorded as a warning on an otherwise successful result.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aluedeke/go-appfeed/pkg/cache"
	"github.com/aluedeke/go-appfeed/pkg/catalog"
	"github.com/aluedeke/go-appfeed/pkg/icons"
	"github.com/aluedeke/go-appfeed/pkg/ipa"
	"github.com/aluedeke/go-appfeed/pkg/metrics"
)

// Catalog is the remote lookup the resolver needs
type Catalog interface {
	Lookup(ctx context.Context, bundleID string) (*catalog.Entry, error)
	FetchIcon(ctx context.Context, artworkURL string) ([]byte, error)
}

// Options configures a Resolver
type Options struct {
	Catalog    Catalog
	Icons      icons.Store
	Cache      *cache.Cache
	Rules      ipa.TamperRules
	HTTPClient *http.Client
	TempDir    string // where downloads are staged, os.TempDir() when empty
	MaxSize    int64  // download size cap, unlimited when zero
	Metrics    metrics.Metrics
	Logger     *log.Logger
}

// Resolver runs the resolution pipeline. It is meant to be driven by one
// goroutine; the cache it shares is safe for concurrent use regardless.
type Resolver struct {
	catalog Catalog
	icons   icons.Store
	cache   *cache.Cache
	rules   ipa.TamperRules
	http    *http.Client
	tempDir string
	maxSize int64
	metrics metrics.Metrics
	log     *log.Logger
}

// New creates a resolver. Catalog and Icons are required.
func New(opts Options) *Resolver {
	r := &Resolver{
		catalog: opts.Catalog,
		icons:   opts.Icons,
		cache:   opts.Cache,
		rules:   opts.Rules,
		http:    opts.HTTPClient,
		tempDir: opts.TempDir,
		maxSize: opts.MaxSize,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
	if r.cache == nil {
		r.cache = cache.New()
	}
	if r.http == nil {
		r.http = &http.Client{Timeout: 30 * time.Minute}
	}
	if r.metrics == nil {
		r.metrics = metrics.Noop{}
	}
	if r.log == nil {
		r.log = log.Default()
	}
	return r
}

// Resolve returns the identity for the application called name, whose
// archive can be downloaded from downloadURL. A cached name is answered
// without any network or archive work. Successful resolutions are cached;
// rejections are not, so a re-uploaded asset gets another chance.
func (r *Resolver) Resolve(ctx context.Context, name, downloadURL string) Result {
	if e, ok := r.cache.Lookup(name); ok {
		res := Result{Outcome: Resolved, BundleID: e.BundleID, Genre: e.Genre, Cached: true}
		r.metrics.IncResolution(res.metricLabel())
		return res
	}

	res := r.download(ctx, name, downloadURL)
	if res.OK() {
		r.cache.Insert(name, res.BundleID, res.Genre)
	}
	r.metrics.IncResolution(res.metricLabel())
	return res
}

// ResolveFile runs the pipeline on a local archive, bypassing the cache
func (r *Resolver) ResolveFile(ctx context.Context, path string) Result {
	res := r.resolveArchive(ctx, path)
	r.metrics.IncResolution(res.metricLabel())
	return res
}

func (r *Resolver) download(ctx context.Context, name, downloadURL string) Result {
	tmp, err := os.CreateTemp(r.tempDir, "appfeed-*.ipa")
	if err != nil {
		return rejected(ReasonDownload, fmt.Errorf("failed to create temp file: %w", err))
	}
	defer os.Remove(tmp.Name())

	err = r.fetch(ctx, downloadURL, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		r.log.Printf("[resolver] download failed for %s (%s): %v", name, downloadURL, err)
		return rejected(ReasonDownload, fmt.Errorf("failed to download %s: %w", downloadURL, err))
	}

	res := r.resolveArchive(ctx, tmp.Name())
	if !res.OK() {
		r.log.Printf("[resolver] %s rejected (%s): %v", name, res.Reason, res.Err)
	}
	return res
}

func (r *Resolver) fetch(ctx context.Context, rawURL string, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	var src io.Reader = resp.Body
	if r.maxSize > 0 {
		src = io.LimitReader(resp.Body, r.maxSize+1)
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		return err
	}
	if r.maxSize > 0 && n > r.maxSize {
		return fmt.Errorf("asset exceeds %d bytes", r.maxSize)
	}
	return nil
}

func (r *Resolver) resolveArchive(ctx context.Context, path string) Result {
	archive, err := ipa.Open(path)
	if err != nil {
		return rejected(ReasonBadArchive, err)
	}
	defer archive.Close()

	insp, err := ipa.Inspect(archive, r.rules)
	switch {
	case errors.Is(err, ipa.ErrUnsafeArchive):
		return rejected(ReasonUnsafe, err)
	case err != nil:
		return rejected(ReasonNoBundleID, err)
	}
	bundleID := insp.Descriptor.BundleID

	res := Result{Outcome: Unclassified, BundleID: bundleID, Genre: catalog.GenreApp}

	entry, err := r.catalog.Lookup(ctx, bundleID)
	if err != nil {
		r.metrics.IncCatalogLookup("miss")
		if !errors.Is(err, catalog.ErrNotFound) {
			res.Warnings = append(res.Warnings, fmt.Errorf("%w: %v", ErrCatalogLookup, err))
		}
	} else {
		r.metrics.IncCatalogLookup("hit")
		res.Outcome = Resolved
		res.Genre = entry.Genre()
		if err := r.saveCatalogIcon(ctx, bundleID, entry); err != nil {
			res.Warnings = append(res.Warnings, err)
		} else {
			res.IconSource = IconFromCatalog
			return res
		}
	}

	if err := r.saveArchiveIcon(ctx, archive, insp); err != nil {
		res.Warnings = append(res.Warnings, err)
		r.log.Printf("[resolver] no icon for %s: %v", bundleID, err)
	} else {
		res.IconSource = IconFromArchive
	}
	return res
}

func (r *Resolver) saveCatalogIcon(ctx context.Context, bundleID string, entry *catalog.Entry) error {
	data, err := r.catalog.FetchIcon(ctx, entry.ArtworkURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogLookup, err)
	}
	if err := r.icons.Put(ctx, bundleID, data); err != nil {
		return fmt.Errorf("%w: %v", ErrIconExtraction, err)
	}
	r.metrics.IncIconWritten(IconFromCatalog)
	return nil
}

// saveArchiveIcon copies the descriptor's icon out of the archive verbatim
func (r *Resolver) saveArchiveIcon(ctx context.Context, archive *ipa.Archive, insp *ipa.Inspection) error {
	ref, ok := insp.Descriptor.IconRef()
	if !ok {
		return fmt.Errorf("%w: descriptor names no icon", ErrIconExtraction)
	}
	name, ok := ipa.IconEntry(insp.Names, insp.Root, ref)
	if !ok {
		return fmt.Errorf("%w: %s (%s) not in archive", ErrIconExtraction, ref.Name, ref.Source)
	}
	data, err := archive.ReadFile(name, ipa.MaxIconSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIconExtraction, err)
	}
	if err := r.icons.Put(ctx, insp.Descriptor.BundleID, data); err != nil {
		return fmt.Errorf("%w: %v", ErrIconExtraction, err)
	}
	r.metrics.IncIconWritten(IconFromArchive)
	return nil
}
