package schema

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"RequestCriteria/internal/logger"
)

const snapshotKeyPrefix = "schema:snapshot:"

// SnapshotStore is the part of a Redis client the snapshot cache needs.
type SnapshotStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// digest hashes file names and contents so that any edit changes the key.
func digest(dir string) (string, error) {
	files, err := entityFiles(dir)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		h.Write([]byte(filepath.Base(path)))
		h.Write([]byte{0})
		h.Write(data)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// LoadCached returns the registry for dir, reusing a linked snapshot from
// store when the definitions have not changed since it was written. A nil
// store loads straight from disk.
func LoadCached(ctx context.Context, store SnapshotStore, dir string, ttl time.Duration) (*Registry, error) {
	if store == nil {
		return InitRegistry(dir)
	}
	sum, err := digest(dir)
	if err != nil {
		return nil, err
	}
	key := snapshotKeyPrefix + sum

	cached, err := store.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entities map[string]*Entity
		if err := json.Unmarshal(cached, &entities); err != nil {
			return nil, fmt.Errorf("invalid schema snapshot in redis under %s: %w", key, err)
		}
		logger.Info("schema_snapshot_hit", logger.Fields{"key": key, "entities": len(entities)})
		return &Registry{entities: entities}, nil
	case errors.Is(err, redis.Nil):
	default:
		logger.Warn("schema_snapshot_unavailable", logger.Fields{"key": key, "error": err.Error()})
	}

	reg, err := InitRegistry(dir)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(reg.entities)
	if err != nil {
		return nil, fmt.Errorf("marshal schema snapshot: %w", err)
	}
	if err := store.Set(ctx, key, data, ttl).Err(); err != nil {
		logger.Warn("schema_snapshot_store_failed", logger.Fields{"key": key, "error": err.Error()})
	}
	return reg, nil
}
