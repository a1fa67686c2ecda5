package referral

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows a referral listing. Zero fields are ignored.
type Filter struct {
	PatientID             *uuid.UUID
	OriginFacilityID      *uuid.UUID
	DestinationFacilityID *uuid.UUID
	Status                Status
}

type Repository interface {
	Create(ctx context.Context, r *Referral) error
	GetByID(ctx context.Context, id uuid.UUID) (*Referral, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Referral, int, error)

	// FindOpenByPatient returns the patient's newest non-terminal referral,
	// or nil when the patient has none.
	FindOpenByPatient(ctx context.Context, patientID uuid.UUID) (*Referral, error)

	// UpdateDestination sets the destination hospital on a referral that is
	// still in CREATED state.
	UpdateDestination(ctx context.Context, id, destinationID uuid.UUID) (*Referral, error)

	// The Mark methods perform the lifecycle transitions as compare-and-set
	// updates: the row is only written if it is still in the expected prior
	// status, so two concurrent calls cannot both succeed. They return
	// ErrNotFound when the referral does not exist and ErrInvalidTransition
	// when it exists in any other status.
	MarkSent(ctx context.Context, id uuid.UUID) (*Referral, error)
	MarkAccepted(ctx context.Context, id, acceptedBy uuid.UUID) (*Referral, error)
	MarkTransferred(ctx context.Context, id uuid.UUID) (*Referral, error)
}
