package ports

import (
	"context"

	"camlink/internal/core/domain"
)

type ProfileRepository interface {
	Save(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id domain.ProfileID) (*domain.Profile, error)
	GetByName(ctx context.Context, name string) (*domain.Profile, error)
	Delete(ctx context.Context, id domain.ProfileID) error
	List(ctx context.Context) ([]*domain.Profile, error)
}
