package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aluedeke/go-appfeed/pkg/catalog"
)

const (
	defaultRedisURL = "redis://localhost:6379"
	defaultRedisKey = "appfeed:bundles"
)

// RedisStorage keeps records in one hash: field = name, value = bundleId|genre
type RedisStorage struct {
	client *redis.Client
	key    string
}

// NewRedisStorage connects to url and stores records under key
func NewRedisStorage(url, key string) (*RedisStorage, error) {
	if url == "" {
		url = defaultRedisURL
	}
	if key == "" {
		key = defaultRedisKey
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStorage{client: client, key: key}, nil
}

// Close closes the underlying Redis client.
func (s *RedisStorage) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Load reads every record, sorted by name
func (s *RedisStorage) Load(ctx context.Context) ([]Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	records := make([]Record, 0, len(fields))
	for name, value := range fields {
		bundleID, genreStr, _ := strings.Cut(value, "|")
		genre, err := catalog.ParseGenre(genreStr)
		if err != nil {
			return nil, fmt.Errorf("cache field %s: %w", name, err)
		}
		records = append(records, Record{Name: name, BundleID: bundleID, Genre: genre})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// Save writes all records in one transaction
func (s *RedisStorage) Save(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	values := make([]interface{}, 0, 2*len(records))
	for _, r := range records {
		values = append(values, r.Name, r.BundleID+"|"+strconv.Itoa(int(r.Genre)))
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key, values...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save cache: %w", err)
	}
	return nil
}
