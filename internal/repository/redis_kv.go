package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// ClientSource hands out a ready redis client and is told about failures.
// *providers.RedisConnector satisfies it.
type ClientSource interface {
	Client(ctx context.Context) (*redis.Client, error)
	Observe(err error)
}

type staticClient struct{ rdb *redis.Client }

// StaticClient wraps an already connected client as a ClientSource.
func StaticClient(rdb *redis.Client) ClientSource { return staticClient{rdb: rdb} }

func (s staticClient) Client(context.Context) (*redis.Client, error) { return s.rdb, nil }
func (s staticClient) Observe(error)                                 {}

type redisKV struct {
	src       ClientSource
	scanCount int64
}

func NewRedisKV(src ClientSource) KV {
	return &redisKV{src: src, scanCount: 500}
}

func (r *redisKV) client(ctx context.Context) (*redis.Client, error) {
	return r.src.Client(ctx)
}

func (r *redisKV) observe(err error) error {
	if err != nil && !errors.Is(err, redis.Nil) {
		r.src.Observe(err)
	}
	return err
}

func (r *redisKV) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errNonPositiveTTL
	}
	rdb, err := r.client(ctx)
	if err != nil {
		return err
	}
	return r.observe(rdb.Set(ctx, key, value, ttl).Err())
}

func (r *redisKV) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errNonPositiveTTL
	}
	rdb, err := r.client(ctx)
	if err != nil {
		return false, err
	}
	ok, err := rdb.SetNX(ctx, key, value, ttl).Result()
	return ok, r.observe(err)
}

func (r *redisKV) Exists(ctx context.Context, key string) (bool, error) {
	rdb, err := r.client(ctx)
	if err != nil {
		return false, err
	}
	n, err := rdb.Exists(ctx, key).Result()
	if err := r.observe(err); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *redisKV) Get(ctx context.Context, key string) (string, error) {
	rdb, err := r.client(ctx)
	if err != nil {
		return "", err
	}
	v, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err := r.observe(err); err != nil {
		return "", err
	}
	return v, nil
}

func (r *redisKV) TTL(ctx context.Context, key string) (time.Duration, error) {
	rdb, err := r.client(ctx)
	if err != nil {
		return 0, err
	}
	d, err := rdb.PTTL(ctx, key).Result()
	if err := r.observe(err); err != nil {
		return 0, err
	}
	// go-redis reports -2 (missing) and -1 (no expiry) as raw nanoseconds.
	switch d {
	case -2:
		return 0, ErrKeyNotFound
	case -1:
		return NoExpiry, nil
	}
	return d, nil
}

func (r *redisKV) KeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	rdb, err := r.client(ctx)
	if err != nil {
		return nil, err
	}
	pattern := escapeGlob(prefix) + "*"
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := rdb.Scan(ctx, cursor, pattern, r.scanCount).Result()
		if err := r.observe(err); err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}
	return keys, nil
}

func (r *redisKV) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	rdb, err := r.client(ctx)
	if err != nil {
		return 0, err
	}
	n, err := rdb.Del(ctx, keys...).Result()
	if err := r.observe(err); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *redisKV) Ping(ctx context.Context) error {
	rdb, err := r.client(ctx)
	if err != nil {
		return err
	}
	return r.observe(rdb.Ping(ctx).Err())
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, ch := range s {
		switch ch {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(ch)
	}
	return b.String()
}
