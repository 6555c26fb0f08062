package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"camlink/internal/core/domain"
	"camlink/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisProfileRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisProfileRepository(client *redis.Client) ports.ProfileRepository {
	return &RedisProfileRepository{
		client: client,
		prefix: "camlink:profile:",
	}
}

func (r *RedisProfileRepository) profileKey(id domain.ProfileID) string {
	return r.prefix + string(id)
}

func (r *RedisProfileRepository) nameKey(name string) string {
	return "camlink:profile_name:" + strings.ToLower(name)
}

func (r *RedisProfileRepository) indexKey() string {
	return "camlink:profiles"
}

func (r *RedisProfileRepository) Save(ctx context.Context, profile *domain.Profile) error {
	// Keep the name index consistent on rename
	if old, err := r.GetByID(ctx, profile.ID); err == nil && !strings.EqualFold(old.Name, profile.Name) {
		if err := r.client.Del(ctx, r.nameKey(old.Name)).Err(); err != nil {
			return fmt.Errorf("failed to drop stale name index: %w", err)
		}
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.profileKey(profile.ID), data, 0)
	pipe.Set(ctx, r.nameKey(profile.Name), string(profile.ID), 0)
	pipe.SAdd(ctx, r.indexKey(), string(profile.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save profile in Redis: %w", err)
	}

	return nil
}

func (r *RedisProfileRepository) GetByID(ctx context.Context, id domain.ProfileID) (*domain.Profile, error) {
	data, err := r.client.Get(ctx, r.profileKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile from Redis: %w", err)
	}

	var profile domain.Profile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	return &profile, nil
}

func (r *RedisProfileRepository) GetByName(ctx context.Context, name string) (*domain.Profile, error) {
	id, err := r.client.Get(ctx, r.nameKey(name)).Result()
	if err == redis.Nil {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve profile name in Redis: %w", err)
	}

	return r.GetByID(ctx, domain.ProfileID(id))
}

func (r *RedisProfileRepository) Delete(ctx context.Context, id domain.ProfileID) error {
	profile, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.profileKey(id))
	pipe.Del(ctx, r.nameKey(profile.Name))
	pipe.SRem(ctx, r.indexKey(), string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete profile from Redis: %w", err)
	}

	return nil
}

func (r *RedisProfileRepository) List(ctx context.Context) ([]*domain.Profile, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list profile IDs from Redis: %w", err)
	}

	out := make([]*domain.Profile, 0, len(ids))
	for _, id := range ids {
		profile, err := r.GetByID(ctx, domain.ProfileID(id))
		if err == domain.ErrProfileNotFound {
			// index entry without a record, skip
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, profile)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	return out, nil
}
