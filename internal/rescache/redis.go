package rescache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStorage keeps caches in Redis. Each cache is a sorted set of URLs
// scored by insertion sequence plus one hash per entry.
type RedisStorage struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisClient parses url, connects and pings.
func NewRedisClient(ctx context.Context, url string, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Redis connected")

	return rdb, nil
}

// NewRedisStorage returns a Storage whose keys all start with prefix.
func NewRedisStorage(rdb *redis.Client, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = "prawko"
	}
	return &RedisStorage{rdb: rdb, prefix: prefix}
}

func (s *RedisStorage) namesKey() string { return s.prefix + ":caches" }
func (s *RedisStorage) seqKey() string   { return s.prefix + ":cache_seq" }
func (s *RedisStorage) orderKey(n string) string {
	return fmt.Sprintf("%s:cache:%s:order", s.prefix, n)
}
func (s *RedisStorage) entryKey(n, url string) string {
	return fmt.Sprintf("%s:cache:%s:entry:%s", s.prefix, n, url)
}

func (s *RedisStorage) Open(ctx context.Context, name string) (Cache, error) {
	if err := s.rdb.SAdd(ctx, s.namesKey(), name).Err(); err != nil {
		return nil, fmt.Errorf("open cache %q: %w", name, err)
	}
	return &redisCache{s: s, name: name}, nil
}

func (s *RedisStorage) Names(ctx context.Context) ([]string, error) {
	names, err := s.rdb.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisStorage) Delete(ctx context.Context, name string) (bool, error) {
	removed, err := s.rdb.SRem(ctx, s.namesKey(), name).Result()
	if err != nil {
		return false, fmt.Errorf("delete cache %q: %w", name, err)
	}
	urls, err := s.rdb.ZRange(ctx, s.orderKey(name), 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("delete cache %q: %w", name, err)
	}
	keys := []string{s.orderKey(name)}
	for _, u := range urls {
		keys = append(keys, s.entryKey(name, u))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return false, fmt.Errorf("delete cache %q: %w", name, err)
	}
	return removed > 0, nil
}

type redisCache struct {
	s    *RedisStorage
	name string
}

func (c *redisCache) Name() string { return c.name }

func (c *redisCache) Match(ctx context.Context, url string) (*Entry, error) {
	fields, err := c.s.rdb.HGetAll(ctx, c.s.entryKey(c.name, url)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(fields) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", url, err)
	}

	return entryFromHash(url, fields), nil
}

// entryFromHash rebuilds an entry from its hash fields. Unreadable
// headers are dropped like in the SQLite backend; the body is still usable.
func entryFromHash(url string, fields map[string]string) *Entry {
	var status int
	var storedAt int64
	fmt.Sscan(fields["status"], &status)
	fmt.Sscan(fields["stored_at"], &storedAt)
	h := make(http.Header)
	if err := json.Unmarshal([]byte(fields["header"]), &h); err != nil {
		h = make(http.Header)
	}
	return &Entry{
		URL:      url,
		Status:   status,
		Header:   h,
		Body:     []byte(fields["body"]),
		StoredAt: time.UnixMilli(storedAt),
	}
}

func (c *redisCache) Put(ctx context.Context, entry *Entry) error {
	seq, err := c.s.rdb.Incr(ctx, c.s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("put %s: %w", entry.URL, err)
	}
	header, err := json.Marshal(entry.Header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	_, err = c.s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.s.entryKey(c.name, entry.URL), map[string]any{
			"status":    entry.Status,
			"header":    string(header),
			"body":      entry.Body,
			"stored_at": entry.StoredAt.UnixMilli(),
		})
		pipe.ZAdd(ctx, c.s.orderKey(c.name), redis.Z{Score: float64(seq), Member: entry.URL})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", entry.URL, err)
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, url string) (bool, error) {
	removed, err := c.s.rdb.ZRem(ctx, c.s.orderKey(c.name), url).Result()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", url, err)
	}
	if err := c.s.rdb.Del(ctx, c.s.entryKey(c.name, url)).Err(); err != nil {
		return false, fmt.Errorf("delete %s: %w", url, err)
	}
	return removed > 0, nil
}

func (c *redisCache) Keys(ctx context.Context) ([]string, error) {
	urls, err := c.s.rdb.ZRange(ctx, c.s.orderKey(c.name), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("keys %s: %w", c.name, err)
	}
	return urls, nil
}

func (c *redisCache) Len(ctx context.Context) (int, error) {
	n, err := c.s.rdb.ZCard(ctx, c.s.orderKey(c.name)).Result()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return int(n), nil
}
