package referral

import (
	"time"

	"github.com/google/uuid"

	"github.com/ers/ers/internal/triage"
)

// Status is the referral lifecycle state. The order is strictly linear:
// CREATED, SENT, ACCEPTED, TRANSFERRED. No skips, no reverse transitions,
// no cancellation.
type Status string

const (
	StatusCreated     Status = "CREATED"
	StatusSent        Status = "SENT"
	StatusAccepted    Status = "ACCEPTED"
	StatusTransferred Status = "TRANSFERRED"
)

var statusOrder = map[Status]int{
	StatusCreated:     0,
	StatusSent:        1,
	StatusAccepted:    2,
	StatusTransferred: 3,
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// Terminal reports whether s is the final state.
func (s Status) Terminal() bool {
	return s == StatusTransferred
}

// CanTransition reports whether moving from one status to another is a
// legal single forward step.
func CanTransition(from, to Status) bool {
	fi, ok := statusOrder[from]
	if !ok {
		return false
	}
	ti, ok := statusOrder[to]
	if !ok {
		return false
	}
	return ti == fi+1
}

// Referral maps to the referrals table. A referral is never deleted; it
// only moves forward through the lifecycle.
type Referral struct {
	ID                    uuid.UUID    `db:"id" json:"id"`
	PatientID             uuid.UUID    `db:"patient_id" json:"patient_id"`
	OriginFacilityID      uuid.UUID    `db:"origin_facility_id" json:"origin_facility_id"`
	DestinationFacilityID *uuid.UUID   `db:"destination_facility_id" json:"destination_facility_id,omitempty"`
	Status                Status       `db:"status" json:"status"`
	Priority              triage.Level `db:"priority" json:"priority"`
	Reason                *string      `db:"reason" json:"reason,omitempty"`
	ClinicalNotes         *string      `db:"clinical_notes" json:"clinical_notes,omitempty"`
	CreatedBy             uuid.UUID    `db:"created_by" json:"created_by"`
	AcceptedBy            *uuid.UUID   `db:"accepted_by" json:"accepted_by,omitempty"`
	SentAt                *time.Time   `db:"sent_at" json:"sent_at,omitempty"`
	AcceptedAt            *time.Time   `db:"accepted_at" json:"accepted_at,omitempty"`
	TransferredAt         *time.Time   `db:"transferred_at" json:"transferred_at,omitempty"`
	CreatedAt             time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time    `db:"updated_at" json:"updated_at"`
}
