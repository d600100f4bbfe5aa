package feed

import (
	"context"
	"log"
	"strings"

	"github.com/aluedeke/go-appfeed/pkg/releases"
	"github.com/aluedeke/go-appfeed/pkg/resolver"
)

// DefaultIconURL is expanded with {repo} and {bundleId}
const DefaultIconURL = "https://raw.githubusercontent.com/{repo}/main/icons/{bundleId}.png"

// Resolver resolves one asset
type Resolver interface {
	Resolve(ctx context.Context, name, downloadURL string) resolver.Result
}

// Stats summarises a run
type Stats struct {
	Assets   int
	Skipped  int
	Resolved int
	Cached   int
	Rejected int
	Deleted  int
}

// Generator turns release assets into feed entries
type Generator struct {
	Source     releases.Source
	Resolver   Resolver
	Pruner     *releases.Pruner // optional
	Repository string
	IconURL    string // template, DefaultIconURL when empty
	Logger     *log.Logger
}

// Build lists every asset and resolves each .ipa in order. A failure on one
// asset never stops the run; only the listing itself can fail.
func (g *Generator) Build(ctx context.Context) ([]App, Stats, error) {
	logger := g.Logger
	if logger == nil {
		logger = log.Default()
	}
	var stats Stats

	assets, err := g.Source.Assets(ctx)
	if err != nil {
		return nil, stats, err
	}

	apps := make([]App, 0, len(assets))
	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		stats.Assets++
		if !asset.IsIPA() {
			stats.Skipped++
			continue
		}

		name := releases.ParseAssetName(asset.Name)
		res := g.Resolver.Resolve(ctx, name.Name, asset.DownloadURL)
		if !res.OK() {
			stats.Rejected++
			logger.Printf("[feed] %s: rejected (%s): %v", asset.Name, res.Reason, res.Err)
			deleted, err := g.Pruner.Handle(ctx, asset, string(res.Reason))
			if err != nil {
				logger.Printf("[feed] %s: %v", asset.Name, err)
			}
			if deleted {
				stats.Deleted++
				logger.Printf("[feed] %s: deleted from %s", asset.Name, asset.Release)
			}
			continue
		}

		stats.Resolved++
		if res.Cached {
			stats.Cached++
		}
		for _, w := range res.Warnings {
			logger.Printf("[feed] %s: %v", asset.Name, w)
		}

		apps = append(apps, App{
			Name:                 name.Name,
			BundleIdentifier:     res.BundleID,
			Version:              name.Version,
			VersionDate:          asset.CreatedAt.UTC().Format("2006-01-02"),
			Size:                 asset.Size,
			DownloadURL:          asset.DownloadURL,
			DeveloperName:        "",
			LocalizedDescription: name.Description,
			IconURL:              g.iconURL(res.BundleID),
			Type:                 int(res.Genre),
		})
	}
	return apps, stats, nil
}

func (g *Generator) iconURL(bundleID string) string {
	tmpl := g.IconURL
	if tmpl == "" {
		tmpl = DefaultIconURL
	}
	return strings.NewReplacer("{repo}", g.Repository, "{bundleId}", bundleID).Replace(tmpl)
}
