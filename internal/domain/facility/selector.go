package facility

import "context"

// Selector picks the destination hospital for an automatic referral.
// Implementations return (nil, nil) when no hospital is available.
type Selector interface {
	SelectHospital(ctx context.Context) (*Facility, error)
}

// FirstSelector picks the oldest registered hospital. This keeps the
// destination deterministic until a smarter strategy (capacity, distance)
// is plugged in.
type FirstSelector struct {
	repo Repository
}

func NewFirstSelector(repo Repository) *FirstSelector {
	return &FirstSelector{repo: repo}
}

func (s *FirstSelector) SelectHospital(ctx context.Context) (*Facility, error) {
	hospitals, _, err := s.repo.ListByType(ctx, TypeHospital, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(hospitals) == 0 {
		return nil, nil
	}
	return hospitals[0], nil
}
