// Package releases lists .ipa assets published on GitHub releases.
package releases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

const perPage = 100

// Asset is one downloadable release file
type Asset struct {
	ID          int64
	Release     string
	Name        string
	CreatedAt   time.Time
	Size        int64
	DownloadURL string
}

// IsIPA reports whether the asset is an application archive
func (a Asset) IsIPA() bool {
	return strings.HasSuffix(a.Name, ".ipa")
}

// Source enumerates assets and can remove one
type Source interface {
	Assets(ctx context.Context) ([]Asset, error)
	DeleteAsset(ctx context.Context, id int64) error
}

// GitHubSource reads assets from every release of one repository
type GitHubSource struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubSource creates a source for "owner/repo". The token is
// optional; without it the unauthenticated rate limit applies and
// DeleteAsset fails.
func NewGitHubSource(repository, token string) (*GitHubSource, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("repository must be owner/name, got %q", repository)
	}
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubSource{client: client, owner: owner, repo: repo}, nil
}

// Repository returns owner/name
func (s *GitHubSource) Repository() string {
	return s.owner + "/" + s.repo
}

// Assets returns every asset of every release, newest release first
func (s *GitHubSource) Assets(ctx context.Context) ([]Asset, error) {
	var out []Asset
	opts := &github.ListOptions{PerPage: perPage}
	for {
		rels, resp, err := s.client.Repositories.ListReleases(ctx, s.owner, s.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list releases: %w", err)
		}
		for _, rel := range rels {
			assets, err := s.releaseAssets(ctx, rel)
			if err != nil {
				return nil, err
			}
			out = append(out, assets...)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (s *GitHubSource) releaseAssets(ctx context.Context, rel *github.RepositoryRelease) ([]Asset, error) {
	title := rel.GetName()
	if title == "" {
		title = rel.GetTagName()
	}

	var out []Asset
	opts := &github.ListOptions{PerPage: perPage}
	for {
		assets, resp, err := s.client.Repositories.ListReleaseAssets(ctx, s.owner, s.repo, rel.GetID(), opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list assets of %s: %w", title, err)
		}
		for _, a := range assets {
			out = append(out, Asset{
				ID:          a.GetID(),
				Release:     title,
				Name:        a.GetName(),
				CreatedAt:   a.GetCreatedAt().Time,
				Size:        int64(a.GetSize()),
				DownloadURL: a.GetBrowserDownloadURL(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// DeleteAsset removes a release asset
func (s *GitHubSource) DeleteAsset(ctx context.Context, id int64) error {
	if _, err := s.client.Repositories.DeleteReleaseAsset(ctx, s.owner, s.repo, id); err != nil {
		return fmt.Errorf("failed to delete asset %d: %w", id, err)
	}
	return nil
}
