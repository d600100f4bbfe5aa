// Package catalog looks applications up in the public iTunes catalog.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/webp"
)

const (
	DefaultBaseURL   = "https://itunes.apple.com"
	DefaultCountry   = "US"
	DefaultCacheSize = 1024

	maxLookupSize = 4 << 20
	maxIconSize   = 16 << 20
)

// ErrNotFound means the catalog has no entry for the bundle identifier.
var ErrNotFound = errors.New("not found in catalog")

// Entry is the subset of a lookup result the feed needs
type Entry struct {
	BundleID   string
	TrackName  string
	SellerName string
	ArtworkURL string
	GenreIDs   []string
}

// Genre classifies the entry from its genre IDs
func (e *Entry) Genre() Genre {
	return Classify(e.GenreIDs)
}

// Config configures a Client
type Config struct {
	BaseURL   string        `yaml:"base_url"`
	Country   string        `yaml:"country"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
}

// Client queries the iTunes lookup API. Results, including misses, are
// memoised for the lifetime of the client.
type Client struct {
	baseURL string
	country string
	http    *http.Client
	memo    *lru.Cache[string, *Entry]
}

// NewClient creates a catalog client, filling unset fields with defaults
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Country == "" {
		cfg.Country = DefaultCountry
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	memo, err := lru.New[string, *Entry](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup cache: %w", err)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		country: cfg.Country,
		http:    &http.Client{Timeout: cfg.Timeout},
		memo:    memo,
	}, nil
}

type lookupResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []lookupResult `json:"results"`
}

type lookupResult struct {
	BundleID      string   `json:"bundleId"`
	TrackName     string   `json:"trackName"`
	SellerName    string   `json:"sellerName"`
	ArtworkURL512 string   `json:"artworkUrl512"`
	ArtworkURL100 string   `json:"artworkUrl100"`
	GenreIDs      []string `json:"genreIds"`
}

// Lookup returns the catalog entry for bundleID. A result without
// artwork counts as not found since there is no icon to take from it.
func (c *Client) Lookup(ctx context.Context, bundleID string) (*Entry, error) {
	if e, ok := c.memo.Get(bundleID); ok {
		if e == nil {
			return nil, fmt.Errorf("%s: %w", bundleID, ErrNotFound)
		}
		return e, nil
	}

	q := url.Values{}
	q.Set("bundleId", bundleID)
	q.Set("limit", "1")
	q.Set("country", c.country)

	body, err := c.get(ctx, c.baseURL+"/lookup?"+q.Encode(), maxLookupSize)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", bundleID, err)
	}

	var resp lookupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}

	if len(resp.Results) == 0 {
		c.memo.Add(bundleID, nil)
		return nil, fmt.Errorf("%s: %w", bundleID, ErrNotFound)
	}
	r := resp.Results[0]
	artwork := r.ArtworkURL512
	if artwork == "" {
		artwork = r.ArtworkURL100
	}
	if artwork == "" {
		c.memo.Add(bundleID, nil)
		return nil, fmt.Errorf("%s has no artwork: %w", bundleID, ErrNotFound)
	}

	e := &Entry{
		BundleID:   bundleID,
		TrackName:  r.TrackName,
		SellerName: r.SellerName,
		ArtworkURL: artwork,
		GenreIDs:   r.GenreIDs,
	}
	c.memo.Add(bundleID, e)
	return e, nil
}

// FetchIcon downloads artwork and re-encodes it as PNG
func (c *Client) FetchIcon(ctx context.Context, artworkURL string) ([]byte, error) {
	body, err := c.get(ctx, artworkURL, maxIconSize)
	if err != nil {
		return nil, fmt.Errorf("failed to download artwork: %w", err)
	}
	return ToPNG(body)
}

// ToPNG decodes a JPEG, PNG, GIF or WebP image and encodes it as PNG
func ToPNG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Client) get(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", limit)
	}
	return data, nil
}
