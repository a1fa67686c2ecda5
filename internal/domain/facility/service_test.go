package facility

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	facilities []*Facility
	createErr  error
}

func (m *mockRepo) Create(ctx context.Context, f *Facility) error {
	if m.createErr != nil {
		return m.createErr
	}
	f.ID = uuid.New()
	m.facilities = append(m.facilities, f)
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Facility, error) {
	for _, f := range m.facilities {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(ctx context.Context, f *Facility) error {
	for i, existing := range m.facilities {
		if existing.ID == f.ID {
			m.facilities[i] = f
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*Facility, int, error) {
	return m.facilities, len(m.facilities), nil
}

func (m *mockRepo) ListByType(ctx context.Context, ftype Type, limit, offset int) ([]*Facility, int, error) {
	var out []*Facility
	for _, f := range m.facilities {
		if f.Type == ftype {
			out = append(out, f)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, len(out), nil
}

func TestCreate_RequiresName(t *testing.T) {
	svc := NewService(&mockRepo{})
	err := svc.Create(context.Background(), &Facility{Type: TypeClinic})
	if err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestCreate_RejectsUnknownType(t *testing.T) {
	svc := NewService(&mockRepo{})
	err := svc.Create(context.Background(), &Facility{Name: "CS Agdal", Type: "PHARMACY"})
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestCreate_Valid(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)
	f := &Facility{Name: "CHU Ibn Sina", Type: TypeHospital}
	if err := svc.Create(context.Background(), f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ID == uuid.Nil {
		t.Error("expected id to be assigned")
	}
	if len(repo.facilities) != 1 {
		t.Errorf("expected 1 facility stored, got %d", len(repo.facilities))
	}
}

func TestUpdate_UnknownFacility(t *testing.T) {
	svc := NewService(&mockRepo{})
	err := svc.Update(context.Background(), &Facility{ID: uuid.New(), Name: "CHU Ibn Sina"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList_RejectsInvalidTypeFilter(t *testing.T) {
	svc := NewService(&mockRepo{})
	_, _, err := svc.List(context.Background(), "BOGUS", 20, 0)
	if err == nil {
		t.Fatal("expected error for invalid type filter")
	}
}

func TestList_FiltersByType(t *testing.T) {
	repo := &mockRepo{facilities: []*Facility{
		{ID: uuid.New(), Name: "CS Agdal", Type: TypeClinic},
		{ID: uuid.New(), Name: "CHU Ibn Sina", Type: TypeHospital},
	}}
	svc := NewService(repo)

	items, _, err := svc.List(context.Background(), TypeHospital, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Name != "CHU Ibn Sina" {
		t.Errorf("expected only the hospital, got %d items", len(items))
	}
}

func TestFirstSelector_PicksOldestHospital(t *testing.T) {
	repo := &mockRepo{facilities: []*Facility{
		{ID: uuid.New(), Name: "CHU Ibn Sina", Type: TypeHospital},
		{ID: uuid.New(), Name: "CHU Mohammed VI", Type: TypeHospital},
	}}
	sel := NewFirstSelector(repo)

	got, err := sel.SelectHospital(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Name != "CHU Ibn Sina" {
		t.Errorf("expected first hospital, got %+v", got)
	}
}

func TestFirstSelector_NoHospitals(t *testing.T) {
	repo := &mockRepo{facilities: []*Facility{
		{ID: uuid.New(), Name: "CS Agdal", Type: TypeClinic},
	}}
	sel := NewFirstSelector(repo)

	got, err := sel.SelectHospital(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil when no hospital registered, got %+v", got)
	}
}
