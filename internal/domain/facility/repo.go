package facility

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, f *Facility) error
	GetByID(ctx context.Context, id uuid.UUID) (*Facility, error)
	Update(ctx context.Context, f *Facility) error
	List(ctx context.Context, limit, offset int) ([]*Facility, int, error)
	// ListByType returns facilities of the given type ordered by creation
	// time, oldest first.
	ListByType(ctx context.Context, ftype Type, limit, offset int) ([]*Facility, int, error)
}
