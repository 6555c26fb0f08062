package repositories

import (
	"context"

	"camlink/internal/core/ports"
	"camlink/internal/infrastructure/repositories/memory"
	redisrepo "camlink/internal/infrastructure/repositories/redis"
	"camlink/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories, falling back to in-memory
// storage when Redis is disabled or unreachable.
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

func (f *RepositoryFactory) CreateProfileRepository() ports.ProfileRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisProfileRepository(f.redisClient)
	}
	return memory.NewMemoryProfileRepository()
}

// HealthCheck verifies backing storage is reachable. Memory repositories
// are always healthy.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient == nil {
		return nil
	}
	return f.redisClient.Ping(ctx).Err()
}

// Close releases the Redis connection if one was opened.
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}
