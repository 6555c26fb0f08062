package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	schemaVersionKey = "camlink:schema_version"
	schemaVersion    = 1
)

// Migrate brings the key layout up to the current schema version. The
// version marker guards against an older binary writing into a newer
// layout.
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	raw, err := client.Get(ctx, schemaVersionKey).Result()
	if err == redis.Nil {
		if err := client.Set(ctx, schemaVersionKey, schemaVersion, 0).Err(); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
		if logger != nil {
			logger.Infow("initialized Redis schema", "version", schemaVersion)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	current, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid schema version %q: %w", raw, err)
	}
	if current > schemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, schemaVersion)
	}
	return nil
}
