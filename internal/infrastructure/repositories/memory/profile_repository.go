package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"camlink/internal/core/domain"
	"camlink/internal/core/ports"
)

type MemoryProfileRepository struct {
	profiles map[domain.ProfileID]*domain.Profile
	mu       sync.RWMutex
}

func NewMemoryProfileRepository() ports.ProfileRepository {
	return &MemoryProfileRepository{
		profiles: make(map[domain.ProfileID]*domain.Profile),
	}
}

func (r *MemoryProfileRepository) Save(ctx context.Context, profile *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	stored := *profile
	if existing, ok := r.profiles[profile.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	r.profiles[profile.ID] = &stored
	return nil
}

func (r *MemoryProfileRepository) GetByID(ctx context.Context, id domain.ProfileID) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, exists := r.profiles[id]
	if !exists {
		return nil, domain.ErrProfileNotFound
	}

	cp := *profile
	return &cp, nil
}

func (r *MemoryProfileRepository) GetByName(ctx context.Context, name string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, profile := range r.profiles {
		if strings.EqualFold(profile.Name, name) {
			cp := *profile
			return &cp, nil
		}
	}

	return nil, domain.ErrProfileNotFound
}

func (r *MemoryProfileRepository) Delete(ctx context.Context, id domain.ProfileID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[id]; !exists {
		return domain.ErrProfileNotFound
	}

	delete(r.profiles, id)
	return nil
}

func (r *MemoryProfileRepository) List(ctx context.Context) ([]*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Profile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		cp := *profile
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	return out, nil
}
