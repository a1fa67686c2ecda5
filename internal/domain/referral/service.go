package referral

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ers/ers/internal/domain/facility"
	"github.com/ers/ers/internal/platform/notify"
	"github.com/ers/ers/internal/triage"
)

// PatientInfo is the slice of a patient record the referral service needs.
// The patient package implements PatientSource; the interface lives here so
// the dependency only runs one way.
type PatientInfo struct {
	ID          uuid.UUID
	FacilityID  uuid.UUID
	TriageLevel triage.Level
}

type PatientSource interface {
	PatientInfo(ctx context.Context, id uuid.UUID) (*PatientInfo, error)
}

type Service struct {
	repo       Repository
	facilities facility.Repository
	selector   facility.Selector
	notifier   notify.Broadcaster
	patients   PatientSource
	logger     zerolog.Logger
}

func NewService(repo Repository, facilities facility.Repository, selector facility.Selector, notifier notify.Broadcaster, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		facilities: facilities,
		selector:   selector,
		notifier:   notifier,
		logger:     logger,
	}
}

// SetPatientSource attaches the patient lookup used by manual creation.
// Set after construction because the patient service depends on this one.
func (s *Service) SetPatientSource(ps PatientSource) {
	s.patients = ps
}

// CreateInput is a manual referral request from a clinic user.
type CreateInput struct {
	PatientID             uuid.UUID  `json:"patient_id"`
	DestinationFacilityID *uuid.UUID `json:"destination_facility_id,omitempty"`
	Reason                *string    `json:"reason,omitempty"`
	ClinicalNotes         *string    `json:"clinical_notes,omitempty"`
}

// Create makes a referral by hand. Priority is copied from the patient's
// current triage level. The destination, when given, must be a hospital.
func (s *Service) Create(ctx context.Context, in CreateInput, createdBy uuid.UUID) (*Referral, error) {
	if in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if s.patients == nil {
		return nil, fmt.Errorf("patient source not configured")
	}
	p, err := s.patients.PatientInfo(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}

	if in.DestinationFacilityID != nil {
		dest, err := s.facilities.GetByID(ctx, *in.DestinationFacilityID)
		if err != nil {
			return nil, fmt.Errorf("destination facility not found")
		}
		if dest.Type != facility.TypeHospital {
			return nil, fmt.Errorf("destination must be a hospital")
		}
	}

	priority := p.TriageLevel
	if priority == "" {
		priority = triage.LevelCritical
	}

	r := &Referral{
		PatientID:             p.ID,
		OriginFacilityID:      p.FacilityID,
		DestinationFacilityID: in.DestinationFacilityID,
		Priority:              priority,
		Reason:                in.Reason,
		ClinicalNotes:         in.ClinicalNotes,
		CreatedBy:             createdBy,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}

	s.broadcast(ctx, notify.EventNewReferral, r, "")
	return r, nil
}

// TriggerInput carries what the auto-referral check needs from a patient
// write that just happened.
type TriggerInput struct {
	PatientID    uuid.UUID
	FacilityID   uuid.UUID
	FacilityType facility.Type
	TriageLevel  triage.Level
	CreatedBy    uuid.UUID
}

// AutoCreateForPatient runs after every patient registration or vitals
// update. When the patient is CRITICAL at a clinic it creates one referral
// to an available hospital and broadcasts a new_referral event.
//
// It returns (nil, nil) when the condition does not apply, the patient's
// existing open referral (without a new event) when one is already in
// flight, and ErrNoDestinationAvailable when no hospital is registered.
// Callers must treat ErrNoDestinationAvailable as non-fatal: the patient
// write that triggered the check still stands.
func (s *Service) AutoCreateForPatient(ctx context.Context, in TriggerInput) (*Referral, error) {
	if in.TriageLevel != triage.LevelCritical || in.FacilityType != facility.TypeClinic {
		return nil, nil
	}

	existing, err := s.repo.FindOpenByPatient(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Debug().
			Str("patient_id", in.PatientID.String()).
			Str("referral_id", existing.ID.String()).
			Msg("auto-referral skipped, open referral exists")
		return existing, nil
	}

	dest, err := s.selector.SelectHospital(ctx)
	if err != nil {
		return nil, err
	}
	if dest == nil {
		return nil, ErrNoDestinationAvailable
	}

	reason := "Auto-referral: critical case from clinic"
	notes := fmt.Sprintf("Patient triage level: %s", in.TriageLevel)
	r := &Referral{
		PatientID:             in.PatientID,
		OriginFacilityID:      in.FacilityID,
		DestinationFacilityID: &dest.ID,
		Priority:              in.TriageLevel,
		Reason:                &reason,
		ClinicalNotes:         &notes,
		CreatedBy:             in.CreatedBy,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("referral_id", r.ID.String()).
		Str("patient_id", in.PatientID.String()).
		Str("destination", dest.Name).
		Msg("auto-referral created")

	s.broadcast(ctx, notify.EventNewReferral, r, "")
	return r, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Referral, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("unknown status %q", f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Send moves CREATED -> SENT and notifies the destination hospital.
func (s *Service) Send(ctx context.Context, id uuid.UUID) (*Referral, error) {
	r, err := s.repo.MarkSent(ctx, id)
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, notify.EventReferralStatusChanged, r, "")
	return r, nil
}

// Accept moves SENT -> ACCEPTED and records the accepting doctor. Accepting
// straight from CREATED is rejected; a referral must be sent first.
func (s *Service) Accept(ctx context.Context, id, doctorID uuid.UUID, doctorName string) (*Referral, error) {
	r, err := s.repo.MarkAccepted(ctx, id, doctorID)
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, notify.EventReferralAccepted, r, doctorName)
	return r, nil
}

// Transfer moves ACCEPTED -> TRANSFERRED. Terminal.
func (s *Service) Transfer(ctx context.Context, id uuid.UUID) (*Referral, error) {
	r, err := s.repo.MarkTransferred(ctx, id)
	if err != nil {
		return nil, err
	}
	s.broadcast(ctx, notify.EventReferralStatusChanged, r, "")
	return r, nil
}

// AssignDestination sets or replaces the destination hospital while the
// referral is still in CREATED state.
func (s *Service) AssignDestination(ctx context.Context, id, destinationID uuid.UUID) (*Referral, error) {
	dest, err := s.facilities.GetByID(ctx, destinationID)
	if err != nil {
		return nil, fmt.Errorf("destination facility not found")
	}
	if dest.Type != facility.TypeHospital {
		return nil, fmt.Errorf("destination must be a hospital")
	}
	return s.repo.UpdateDestination(ctx, id, destinationID)
}

// broadcast is issued synchronously with the state change. Delivery to any
// individual viewer is best-effort; failures are logged and swallowed.
func (s *Service) broadcast(ctx context.Context, event notify.EventType, r *Referral, acceptedBy string) {
	err := s.notifier.Broadcast(ctx, notify.Event{
		Event: event,
		Data: notify.ReferralData{
			ReferralID: r.ID,
			PatientID:  r.PatientID,
			Status:     string(r.Status),
			Priority:   string(r.Priority),
			AcceptedBy: acceptedBy,
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("referral_id", r.ID.String()).
			Str("event", string(event)).
			Msg("notification broadcast failed")
	}
}
