// Package config loads go-appfeed settings from a YAML file, a .env file
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aluedeke/go-appfeed/pkg/catalog"
	"github.com/aluedeke/go-appfeed/pkg/icons"
	"github.com/aluedeke/go-appfeed/pkg/ipa"
	"github.com/aluedeke/go-appfeed/pkg/releases"
)

// DefaultPath is read when no config file is named
const DefaultPath = "appfeed.yaml"

type Config struct {
	Repository   string          `yaml:"repository"`
	Token        string          `yaml:"-"`
	FeedPath     string          `yaml:"feed"`
	IconURL      string          `yaml:"icon_url"`
	TempDir      string          `yaml:"temp_dir"`
	MaxAssetSize int64           `yaml:"max_asset_size"`
	Cache        CacheConfig     `yaml:"cache"`
	Icons        IconsConfig     `yaml:"icons"`
	Catalog      catalog.Config  `yaml:"catalog"`
	Tamper       ipa.TamperRules `yaml:"tamper"`
	Deletion     DeletionConfig  `yaml:"deletion"`
	Metrics      MetricsConfig   `yaml:"metrics"`
}

type CacheConfig struct {
	Backend  string `yaml:"backend"` // csv or redis
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	RedisKey string `yaml:"redis_key"`
}

type IconsConfig struct {
	Backend string         `yaml:"backend"` // dir or s3
	Dir     string         `yaml:"dir"`
	S3      icons.S3Config `yaml:"s3"`
}

type DeletionConfig struct {
	Policy  string   `yaml:"policy"` // never, auto or confirm
	Reasons []string `yaml:"reasons"`
}

type MetricsConfig struct {
	Textfile  string `yaml:"textfile"`
	Namespace string `yaml:"namespace"`
}

// Load reads path (DefaultPath when empty). A missing default file is not
// an error; a missing file that was asked for by name is.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Token = firstNonEmpty(env("GITHUB_TOKEN"), env("APPFEED_TOKEN"), c.Token)
	c.Repository = firstNonEmpty(env("APPFEED_REPO"), c.Repository)
	c.Cache.RedisURL = firstNonEmpty(env("APPFEED_REDIS_URL"), c.Cache.RedisURL)
	c.Deletion.Policy = firstNonEmpty(env("APPFEED_DELETE_POLICY"), c.Deletion.Policy)

	s3 := &c.Icons.S3
	s3.Endpoint = firstNonEmpty(env("APPFEED_S3_ENDPOINT"), s3.Endpoint)
	s3.AccessKey = firstNonEmpty(env("APPFEED_S3_ACCESS_KEY"), s3.AccessKey)
	s3.SecretKey = firstNonEmpty(env("APPFEED_S3_SECRET_KEY"), s3.SecretKey)
	s3.Bucket = firstNonEmpty(env("APPFEED_S3_BUCKET"), s3.Bucket)
	if raw := env("APPFEED_S3_USE_SSL"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			s3.UseSSL = v
		}
	}
}

func (c *Config) applyDefaults() {
	c.Repository = firstNonEmpty(c.Repository, "apptesters-org/Repo")
	c.FeedPath = firstNonEmpty(c.FeedPath, "apps.json")
	c.Cache.Backend = firstNonEmpty(c.Cache.Backend, "csv")
	c.Cache.Path = firstNonEmpty(c.Cache.Path, "bundleId.csv")
	c.Icons.Backend = firstNonEmpty(c.Icons.Backend, "dir")
	c.Icons.Dir = firstNonEmpty(c.Icons.Dir, "icons")
	c.Metrics.Namespace = firstNonEmpty(c.Metrics.Namespace, "appfeed")
	c.Deletion.Policy = firstNonEmpty(c.Deletion.Policy, string(releases.PolicyNever))
	if len(c.Deletion.Reasons) == 0 {
		c.Deletion.Reasons = []string{"unsafe"}
	}
	// an explicit empty list turns a check off; an absent one gets the default
	defaults := ipa.DefaultTamperRules()
	if c.Tamper.MarkerFiles == nil {
		c.Tamper.MarkerFiles = defaults.MarkerFiles
	}
	if c.Tamper.SignatureKeys == nil {
		c.Tamper.SignatureKeys = defaults.SignatureKeys
	}
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	if _, _, ok := strings.Cut(c.Repository, "/"); !ok {
		return fmt.Errorf("repository must be owner/name, got %q", c.Repository)
	}
	switch c.Cache.Backend {
	case "csv", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Icons.Backend {
	case "dir", "s3":
	default:
		return fmt.Errorf("unknown icons backend %q", c.Icons.Backend)
	}
	if _, err := releases.ParsePolicy(c.Deletion.Policy); err != nil {
		return err
	}
	if c.MaxAssetSize < 0 {
		return fmt.Errorf("max_asset_size must not be negative")
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
