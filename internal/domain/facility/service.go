package facility

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, f *Facility) error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !f.Type.Valid() {
		return fmt.Errorf("type must be CLINIC or HOSPITAL")
	}
	return s.repo.Create(ctx, f)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Facility, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, f *Facility) error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.repo.Update(ctx, f)
}

func (s *Service) List(ctx context.Context, ftype Type, limit, offset int) ([]*Facility, int, error) {
	if ftype != "" {
		if !ftype.Valid() {
			return nil, 0, fmt.Errorf("type must be CLINIC or HOSPITAL")
		}
		return s.repo.ListByType(ctx, ftype, limit, offset)
	}
	return s.repo.List(ctx, limit, offset)
}
