package nasregistry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/proisp/radiusd/internal/database"
)

// cacheGet retrieves a cached NAS lookup result from Redis.
func cacheGet(key string, dest *cacheEntry) error {
	ctx := context.Background()
	data, err := database.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// cacheSet stores a NAS lookup result in Redis with a TTL.
func cacheSet(key string, value cacheEntry, ttl time.Duration) error {
	ctx := context.Background()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return database.Redis.Set(ctx, key, data, ttl).Err()
}

// cacheDeletePattern deletes every cached key matching a glob pattern.
func cacheDeletePattern(pattern string) error {
	ctx := context.Background()
	iter := database.Redis.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return database.Redis.Del(ctx, keys...).Err()
	}
	return nil
}
