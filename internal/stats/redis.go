package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in Redis hashes under a key prefix:
//
//	<prefix>:calls            kind -> count
//	<prefix>:core:<n>         kind -> count
//	<prefix>:minute:<stamp>   kind -> count, expiring after the TTL
//	<prefix>:transitions      from->to -> count
//	<prefix>:syncs            ok|failed -> count
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisOption func(*RedisStore)

func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix = strings.Trim(prefix, ":"); prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL sets the expiry of per-minute buckets. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "quotagate",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DialRedis connects to addr and verifies it answers.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *RedisStore) Record(ctx context.Context, ev Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.key(string(ev.Group)), ev.Field, 1)
	if ev.Group == GroupCalls {
		if ev.Core >= 0 {
			pipe.HIncrBy(ctx, s.key("core", strconv.Itoa(ev.Core)), ev.Field, 1)
		}
		bucket := s.key("minute", at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucket, ev.Field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucket, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record stats: %w", err)
	}
	return nil
}

func (s *RedisStore) Snapshot(ctx context.Context) (Counters, error) {
	out := newCounters()
	coreKeys, err := s.scan(ctx, s.key("core", "*"))
	if err != nil {
		return Counters{}, err
	}

	pipe := s.rdb.Pipeline()
	groups := map[Group]*redis.MapStringStringCmd{}
	for _, g := range []Group{GroupCalls, GroupTransitions, GroupSyncs} {
		groups[g] = pipe.HGetAll(ctx, s.key(string(g)))
	}
	cores := map[int]*redis.MapStringStringCmd{}
	for _, key := range coreKeys {
		index, err := strconv.Atoi(key[strings.LastIndex(key, ":")+1:])
		if err != nil {
			continue
		}
		cores[index] = pipe.HGetAll(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return Counters{}, fmt.Errorf("read stats: %w", err)
	}

	for g, cmd := range groups {
		if err := parseCounts(cmd.Val(), out.group(g)); err != nil {
			return Counters{}, err
		}
	}
	for index, cmd := range cores {
		fields := map[string]int64{}
		if err := parseCounts(cmd.Val(), fields); err != nil {
			return Counters{}, err
		}
		out.Cores[index] = fields
	}
	return out, nil
}

// Clear deletes every key under the prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.scan(ctx, s.prefix+":*")
	if err != nil || len(keys) == 0 {
		return err
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *RedisStore) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return keys, nil
}

func (s *RedisStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func parseCounts(raw map[string]string, into map[string]int64) error {
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("parse counter %s: %w", field, err)
		}
		into[field] = n
	}
	return nil
}
