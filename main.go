package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/google/uuid"

	"github.com/aluedeke/go-appfeed/pkg/cache"
	"github.com/aluedeke/go-appfeed/pkg/catalog"
	"github.com/aluedeke/go-appfeed/pkg/config"
	"github.com/aluedeke/go-appfeed/pkg/feed"
	"github.com/aluedeke/go-appfeed/pkg/icons"
	"github.com/aluedeke/go-appfeed/pkg/ipa"
	"github.com/aluedeke/go-appfeed/pkg/metrics"
	"github.com/aluedeke/go-appfeed/pkg/releases"
	"github.com/aluedeke/go-appfeed/pkg/resolver"
)

const version = "1.0.0"

const usage = `go-appfeed - IPA Release Feed Generator

Builds an app source feed from the .ipa assets attached to the releases of a
GitHub repository. Each archive is checked for tampering, its bundle identifier
is read from Info.plist, and the App Store catalog supplies genre and icon.

Usage:
  go-appfeed generate [--config=<path>] [--token=<token>] [--repo=<repo>] [--delete=<policy>] [--output=<path>]
  go-appfeed resolve (--ipa=<path> | --url=<url>) [--name=<name>] [--config=<path>]
  go-appfeed inspect --ipa=<path> [--config=<path>]
  go-appfeed -h | --help
  go-appfeed --version

Commands:
  generate  Resolve every release asset and write the feed document
  resolve   Run the resolution pipeline on a single archive
  inspect   Show what an archive reveals: descriptor, tamper markers, binary, profile

Options:
  --config=<path>    Path to the YAML config file [default: appfeed.yaml]
  --token=<token>    GitHub token (or GITHUB_TOKEN env var)
  --repo=<repo>      Release repository as owner/name (or APPFEED_REPO env var)
  --delete=<policy>  What to do with unsafe assets: never, auto or confirm
  --output=<path>    Feed document to write (overrides the config)
  --ipa=<path>       Path to a local .ipa file
  --url=<url>        Download URL of an .ipa file
  --name=<name>      Cache key for --url, defaults to the file name
  -h --help          Show this help message
  --version          Show version

Environment Variables:
  GITHUB_TOKEN           GitHub token (overridden by --token)
  APPFEED_REPO           Release repository (overridden by --repo)
  APPFEED_REDIS_URL      Redis URL for the redis cache backend
  APPFEED_DELETE_POLICY  Deletion policy (overridden by --delete)
  APPFEED_S3_ENDPOINT    S3 endpoint for the s3 icons backend
  APPFEED_S3_ACCESS_KEY  S3 access key
  APPFEED_S3_SECRET_KEY  S3 secret key
  APPFEED_S3_BUCKET      S3 bucket

Examples:
  # Regenerate apps.json from the configured repository
  go-appfeed generate

  # Generate for another repository and ask before deleting unsafe assets
  go-appfeed generate --repo=someone/ipas --delete=confirm

  # Resolve one local archive
  go-appfeed resolve --ipa=MyApp.ipa

  # Inspect an archive without touching the cache or icon store
  go-appfeed inspect --ipa=MyApp.ipa
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	if generate, _ := opts.Bool("generate"); generate {
		runErr = runGenerate(ctx, opts)
	} else if resolve, _ := opts.Bool("resolve"); resolve {
		runErr = runResolve(ctx, opts)
	} else if inspect, _ := opts.Bool("inspect"); inspect {
		runErr = runInspect(opts)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command-line overrides
func loadConfig(opts docopt.Opts) (*config.Config, error) {
	cfgPath, _ := opts.String("--config")
	if cfgPath == config.DefaultPath {
		cfgPath = ""
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	if v, _ := opts.String("--token"); v != "" {
		cfg.Token = v
	}
	if v, _ := opts.String("--repo"); v != "" {
		cfg.Repository = v
	}
	if v, _ := opts.String("--delete"); v != "" {
		cfg.Deletion.Policy = v
	}
	if v, _ := opts.String("--output"); v != "" {
		cfg.FeedPath = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// pipeline holds everything the resolver needs, built from config
type pipeline struct {
	cache    *cache.Cache
	storage  cache.Storage
	metrics  *metrics.Prom
	resolver *resolver.Resolver
	closers  []io.Closer
}

func (p *pipeline) Close() {
	for _, c := range p.closers {
		c.Close()
	}
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *log.Logger) (*pipeline, error) {
	p := &pipeline{metrics: metrics.NewProm(cfg.Metrics.Namespace)}

	switch cfg.Cache.Backend {
	case "redis":
		rs, err := cache.NewRedisStorage(cfg.Cache.RedisURL, cfg.Cache.RedisKey)
		if err != nil {
			return nil, err
		}
		p.storage = rs
		p.closers = append(p.closers, rs)
	default:
		p.storage = cache.NewCSVStorage(cfg.Cache.Path)
	}
	c, err := cache.Load(ctx, p.storage)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	p.cache = c

	var store icons.Store
	switch cfg.Icons.Backend {
	case "s3":
		s3, err := icons.NewS3Store(cfg.Icons.S3)
		if err != nil {
			p.Close()
			return nil, err
		}
		store = s3
	default:
		store = icons.NewDirStore(cfg.Icons.Dir)
	}

	cat, err := catalog.NewClient(cfg.Catalog)
	if err != nil {
		p.Close()
		return nil, err
	}

	p.resolver = resolver.New(resolver.Options{
		Catalog: cat,
		Icons:   store,
		Cache:   p.cache,
		Rules:   cfg.Tamper,
		TempDir: cfg.TempDir,
		MaxSize: cfg.MaxAssetSize,
		Metrics: p.metrics,
		Logger:  logger,
	})
	return p, nil
}

func runGenerate(ctx context.Context, opts docopt.Opts) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	logger := log.New(os.Stderr, "", log.LstdFlags)
	logger.Printf("[generate] run %s: repository %s, feed %s", runID, cfg.Repository, cfg.FeedPath)

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()
	logger.Printf("[generate] run %s: %d cached names (%s)", runID, p.cache.Len(), cfg.Cache.Backend)

	source, err := releases.NewGitHubSource(cfg.Repository, cfg.Token)
	if err != nil {
		return err
	}

	policy, err := releases.ParsePolicy(cfg.Deletion.Policy)
	if err != nil {
		return err
	}
	var confirmer releases.Confirmer
	if policy == releases.PolicyConfirm {
		confirmer = releases.NewPromptConfirmer(os.Stdin, os.Stderr)
	}
	pruner, err := releases.NewPruner(source, policy, cfg.Deletion.Reasons, confirmer)
	if err != nil {
		return err
	}

	doc, err := feed.Load(cfg.FeedPath)
	if err != nil {
		return err
	}

	gen := &feed.Generator{
		Source:     source,
		Resolver:   p.resolver,
		Pruner:     pruner,
		Repository: source.Repository(),
		IconURL:    cfg.IconURL,
		Logger:     logger,
	}
	apps, stats, buildErr := gen.Build(ctx)

	// The cache is saved even when listing failed part way so that work
	// already done is not repeated on the next run.
	if err := p.cache.Save(ctx, p.storage); err != nil {
		logger.Printf("[generate] run %s: %v", runID, err)
	}
	if cfg.Metrics.Textfile != "" {
		if err := p.metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Printf("[generate] run %s: %v", runID, err)
		}
	}
	if buildErr != nil {
		return fmt.Errorf("failed to list release assets: %w", buildErr)
	}

	doc.Apps = apps
	if err := doc.Save(cfg.FeedPath); err != nil {
		return err
	}

	logger.Printf("[generate] run %s: %d assets, %d skipped, %d resolved (%d cached), %d rejected, %d deleted",
		runID, stats.Assets, stats.Skipped, stats.Resolved, stats.Cached, stats.Rejected, stats.Deleted)
	fmt.Printf("Wrote %d apps to %s\n", len(apps), cfg.FeedPath)
	return nil
}

func runResolve(ctx context.Context, opts docopt.Opts) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	var res resolver.Result
	if ipaPath, _ := opts.String("--ipa"); ipaPath != "" {
		res = p.resolver.ResolveFile(ctx, ipaPath)
	} else {
		rawURL, _ := opts.String("--url")
		name, _ := opts.String("--name")
		if name == "" {
			if name, err = assetNameFromURL(rawURL); err != nil {
				return err
			}
		}
		res = p.resolver.Resolve(ctx, name, rawURL)
		if res.OK() {
			if err := p.cache.Save(ctx, p.storage); err != nil {
				logger.Printf("[resolve] %v", err)
			}
		}
	}

	printResult(os.Stdout, res)
	if !res.OK() {
		return fmt.Errorf("rejected (%s): %w", res.Reason, res.Err)
	}
	return nil
}

// assetNameFromURL derives the cache key from the file name in a download
// URL, ignoring any query string or fragment.
func assetNameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid --url: %w", err)
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return "", fmt.Errorf("--url %s names no file, pass --name", rawURL)
	}
	return releases.ParseAssetName(base).Name, nil
}

func printResult(w io.Writer, res resolver.Result) {
	fmt.Fprintln(w, "Resolution")
	fmt.Fprintln(w, "==========")
	fmt.Fprintf(w, "Outcome:     %s\n", res.Outcome)
	if !res.OK() {
		fmt.Fprintf(w, "Reason:      %s\n", res.Reason)
		return
	}
	fmt.Fprintf(w, "Bundle ID:   %s\n", res.BundleID)
	fmt.Fprintf(w, "Type:        %s (%d)\n", res.Genre, int(res.Genre))
	fmt.Fprintf(w, "Cached:      %v\n", res.Cached)
	if res.IconSource != "" {
		fmt.Fprintf(w, "Icon:        %s\n", res.IconSource)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "Warning:     %v\n", warn)
	}
}

func runInspect(opts docopt.Opts) error {
	ipaPath, _ := opts.String("--ipa")
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	archive, err := ipa.Open(ipaPath)
	if err != nil {
		return err
	}
	defer archive.Close()

	fmt.Println("IPA Information")
	fmt.Println("===============")
	fmt.Printf("File:        %s\n", ipaPath)
	fmt.Printf("Entries:     %d\n", len(archive.Names()))

	insp, err := ipa.Inspect(archive, cfg.Tamper)
	switch {
	case errors.Is(err, ipa.ErrUnsafeArchive):
		fmt.Printf("Tampered:    yes (%v)\n", err)
		return nil
	case err != nil:
		return err
	}
	fmt.Printf("Tampered:    no\n")

	d := insp.Descriptor
	fmt.Printf("App Root:    %s\n", insp.Root)
	fmt.Printf("Bundle ID:   %s\n", d.BundleID)
	fmt.Printf("Name:        %s\n", d.DisplayName)
	fmt.Printf("Version:     %s (%s)\n", d.ShortVersion, d.BundleVersion)
	fmt.Printf("Executable:  %s\n", d.Executable)
	if d.MinimumOS != "" {
		fmt.Printf("Minimum OS:  %s\n", d.MinimumOS)
	}
	if ref, ok := d.IconRef(); ok {
		entry, found := ipa.IconEntry(insp.Names, insp.Root, ref)
		if !found {
			entry = "not found"
		}
		fmt.Printf("Icon:        %s via %s (%s)\n", ref.Name, ref.Source, entry)
	} else {
		fmt.Printf("Icon:        none declared\n")
	}

	if bin, err := ipa.InspectBinary(archive, insp); err == nil {
		fmt.Println()
		fmt.Println("Main Executable")
		fmt.Println("---------------")
		fmt.Printf("Path:           %s\n", bin.Path)
		fmt.Printf("Architectures:  %s\n", strings.Join(bin.Architectures, ", "))
		fmt.Printf("Encrypted:      %v\n", bin.Encrypted)
		fmt.Printf("Libraries:      %d\n", len(bin.Libraries))
		if len(bin.Injected) > 0 {
			fmt.Println("Bundled libraries:")
			for _, lib := range bin.Injected {
				fmt.Printf("  - %s\n", lib)
			}
		}
	} else {
		fmt.Printf("\nMain executable: %v\n", err)
	}

	profile, found, err := ipa.EmbeddedProfile(archive, insp)
	switch {
	case err != nil:
		fmt.Printf("\nEmbedded profile: %v\n", err)
	case found:
		fmt.Println()
		fmt.Println("Embedded Provisioning Profile")
		fmt.Println("-----------------------------")
		fmt.Printf("Name:           %s\n", profile.Name)
		fmt.Printf("Team ID:        %s\n", profile.TeamID)
		fmt.Printf("App ID:         %s\n", profile.AppID)
		fmt.Printf("Covers bundle:  %v\n", profile.Covers(d.BundleID))
		fmt.Printf("Expired:        %v\n", profile.Expired(time.Now()))
		fmt.Printf("Expiration:     %s\n", profile.Expires.Format("2006-01-02"))
		if profile.Devices > 0 {
			fmt.Printf("Devices:        %d\n", profile.Devices)
		}
		fmt.Printf("Certificates:   %d\n", len(profile.Certificates))
		for i, cert := range profile.Certificates {
			fmt.Printf("  [%d] %s\n", i+1, cert.CommonName)
			fmt.Printf("      Expires: %s\n", cert.Expires.Format("2006-01-02"))
		}
		if keys := profile.EntitlementKeys(); len(keys) > 0 {
			fmt.Println("Entitlements:")
			for _, k := range keys {
				fmt.Printf("  %s: %v\n", k, profile.Entitlements[k])
			}
		}
	}
	return nil
}
