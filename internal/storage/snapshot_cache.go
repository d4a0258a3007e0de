package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/IliyaBaranov/agora/internal/errors"
	"github.com/IliyaBaranov/agora/internal/models"
)

const (
	snapshotKeyPrefix = "snapshot:"
	// lastSnapshotKey points at the key of the most recently saved session
	lastSnapshotKey = snapshotKeyPrefix + "last"
)

// SnapshotCache persists the last session snapshot so a restart can show
// state before the first bootstrap completes.
type SnapshotCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewSnapshotCache creates a snapshot cache
func NewSnapshotCache(redis *RedisCache, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SnapshotCache{redis: redis, ttl: ttl}
}

// SnapshotKey derives the cache key for a session owner.
// Format: snapshot:<email or id>
func SnapshotKey(user *models.User) string {
	owner := user.Email
	if owner == "" {
		owner = user.ID
	}
	return snapshotKeyPrefix + strings.ToLower(strings.TrimSpace(owner))
}

// Save stores a signed-in snapshot and marks it as the latest
func (c *SnapshotCache) Save(ctx context.Context, snap *models.Snapshot) error {
	if !snap.SignedIn() {
		return errors.NewInvalidParameterError("snapshot", "has no signed-in user")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.NewCacheError("encode snapshot", err)
	}
	key := SnapshotKey(snap.CurrentUser)

	err = c.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, data, c.ttl)
		p.Set(ctx, lastSnapshotKey, key, c.ttl)
		return nil
	})
	if err != nil {
		return errors.NewCacheError("save snapshot", err)
	}
	return nil
}

// Load returns the snapshot stored under key. Found is false on a miss.
func (c *SnapshotCache) Load(ctx context.Context, key string) (*models.Snapshot, bool, error) {
	data, err := c.redis.Get(ctx, key)
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewCacheError("load snapshot", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		// a corrupt entry is treated as a miss and removed
		_ = c.redis.Del(ctx, key)
		return nil, false, nil
	}
	return &snap, true, nil
}

// LoadLast returns the most recently saved snapshot
func (c *SnapshotCache) LoadLast(ctx context.Context) (*models.Snapshot, bool, error) {
	key, err := c.redis.Get(ctx, lastSnapshotKey)
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewCacheError("load snapshot pointer", err)
	}
	return c.Load(ctx, key)
}

// Drop removes the snapshot of user and clears the latest pointer if it names it.
// A nil user drops whatever the pointer names.
func (c *SnapshotCache) Drop(ctx context.Context, user *models.User) error {
	keys := []string{}
	if user != nil {
		keys = append(keys, SnapshotKey(user))
	}

	last, err := c.redis.Get(ctx, lastSnapshotKey)
	switch {
	case err == nil:
		if user == nil {
			keys = append(keys, last, lastSnapshotKey)
		} else if last == SnapshotKey(user) {
			keys = append(keys, lastSnapshotKey)
		}
	case !stderrors.Is(err, redis.Nil):
		return errors.NewCacheError("drop snapshot", err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...); err != nil {
		return errors.NewCacheError("drop snapshot", err)
	}
	return nil
}

// TTL returns the configured TTL
func (c *SnapshotCache) TTL() time.Duration {
	return c.ttl
}
