// Package notify defines the referral lifecycle events pushed to connected
// viewers and the Broadcaster interface the websocket hub implements.
package notify

import (
	"context"

	"github.com/google/uuid"
)

// EventType discriminates the three referral lifecycle events.
type EventType string

const (
	EventNewReferral           EventType = "new_referral"
	EventReferralAccepted      EventType = "referral_accepted"
	EventReferralStatusChanged EventType = "referral_status_changed"
)

// ReferralData is the fixed payload carried by every referral event.
type ReferralData struct {
	ReferralID uuid.UUID `json:"referral_id"`
	PatientID  uuid.UUID `json:"patient_id"`
	Status     string    `json:"status"`
	Priority   string    `json:"priority"`
	AcceptedBy string    `json:"accepted_by,omitempty"`
}

// Event is a tagged referral lifecycle notification.
type Event struct {
	Event EventType    `json:"event"`
	Data  ReferralData `json:"data"`
}

// Broadcaster delivers an event to every currently connected viewer.
// Delivery to any individual viewer is best-effort; implementations must
// not fail the broadcast because one receiver is gone.
type Broadcaster interface {
	Broadcast(ctx context.Context, event Event) error
}

// Nop is a Broadcaster that discards events. Used where a hub is not wired,
// e.g. the seed command.
type Nop struct{}

func (Nop) Broadcast(context.Context, Event) error { return nil }
