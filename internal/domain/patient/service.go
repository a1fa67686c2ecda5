package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ers/ers/internal/domain/facility"
	"github.com/ers/ers/internal/domain/referral"
	"github.com/ers/ers/internal/triage"
)

// ReferralTrigger is the auto-referral hook run after every patient write.
type ReferralTrigger interface {
	AutoCreateForPatient(ctx context.Context, in referral.TriggerInput) (*referral.Referral, error)
}

type Service struct {
	repo       Repository
	facilities facility.Repository
	evaluator  *triage.Evaluator
	trigger    ReferralTrigger
	logger     zerolog.Logger
}

func NewService(repo Repository, facilities facility.Repository, evaluator *triage.Evaluator, trigger ReferralTrigger, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		facilities: facilities,
		evaluator:  evaluator,
		trigger:    trigger,
		logger:     logger,
	}
}

// WriteResult is what a patient registration or vitals update returns. The
// referral is set when the write auto-created one; the warning is set when
// the patient is critical but no destination hospital was available.
type WriteResult struct {
	Patient  *Patient           `json:"patient"`
	Referral *referral.Referral `json:"referral,omitempty"`
	Warning  string             `json:"warning,omitempty"`
}

// RegisterInput is a new patient registration with initial vitals.
type RegisterInput struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      *string    `json:"gender,omitempty"`
	NationalID  *string    `json:"national_id,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Address     *string    `json:"address,omitempty"`

	OxygenSaturation       *float64 `json:"oxygen_saturation,omitempty"`
	HeartRate              *int     `json:"heart_rate,omitempty"`
	BloodPressureSystolic  *int     `json:"blood_pressure_systolic,omitempty"`
	BloodPressureDiastolic *int     `json:"blood_pressure_diastolic,omitempty"`
	Temperature            *float64 `json:"temperature,omitempty"`
	ChestPain              bool     `json:"chest_pain"`

	ChiefComplaint *string   `json:"chief_complaint,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	FacilityID     uuid.UUID `json:"facility_id"`
}

// Register stores a new patient, assesses their triage level, and runs the
// auto-referral check. A missing destination hospital downgrades to a
// warning; the registration itself stands.
func (s *Service) Register(ctx context.Context, in RegisterInput, registeredBy uuid.UUID) (*WriteResult, error) {
	if in.FirstName == "" || in.LastName == "" {
		return nil, fmt.Errorf("first_name and last_name are required")
	}
	if in.FacilityID == uuid.Nil {
		return nil, fmt.Errorf("facility_id is required")
	}
	fac, err := s.facilities.GetByID(ctx, in.FacilityID)
	if err != nil {
		return nil, fmt.Errorf("facility not found")
	}

	p := &Patient{
		FirstName:              in.FirstName,
		LastName:               in.LastName,
		DateOfBirth:            in.DateOfBirth,
		Gender:                 in.Gender,
		NationalID:             in.NationalID,
		Phone:                  in.Phone,
		Address:                in.Address,
		OxygenSaturation:       in.OxygenSaturation,
		HeartRate:              in.HeartRate,
		BloodPressureSystolic:  in.BloodPressureSystolic,
		BloodPressureDiastolic: in.BloodPressureDiastolic,
		Temperature:            in.Temperature,
		ChestPain:              in.ChestPain,
		ChiefComplaint:         in.ChiefComplaint,
		Notes:                  in.Notes,
		FacilityID:             in.FacilityID,
		RegisteredBy:           registeredBy,
	}
	p.TriageLevel = s.evaluator.Evaluate(p.Vitals())

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Str("triage_level", string(p.TriageLevel)).
		Msg("patient registered")

	return s.runTrigger(ctx, p, fac, registeredBy)
}

// UpdateInput is a partial patient update. Nil fields are left untouched.
type UpdateInput struct {
	FirstName   *string    `json:"first_name,omitempty"`
	LastName    *string    `json:"last_name,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      *string    `json:"gender,omitempty"`
	NationalID  *string    `json:"national_id,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Address     *string    `json:"address,omitempty"`

	OxygenSaturation       *float64 `json:"oxygen_saturation,omitempty"`
	HeartRate              *int     `json:"heart_rate,omitempty"`
	BloodPressureSystolic  *int     `json:"blood_pressure_systolic,omitempty"`
	BloodPressureDiastolic *int     `json:"blood_pressure_diastolic,omitempty"`
	Temperature            *float64 `json:"temperature,omitempty"`
	ChestPain              *bool    `json:"chest_pain,omitempty"`

	ChiefComplaint *string `json:"chief_complaint,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

func (in UpdateInput) touchesVitals() bool {
	return in.OxygenSaturation != nil || in.HeartRate != nil ||
		in.BloodPressureSystolic != nil || in.BloodPressureDiastolic != nil ||
		in.Temperature != nil || in.ChestPain != nil
}

// Update applies a partial update. When any vital sign changes the triage
// level is reassessed and the auto-referral check runs again.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput, updatedBy uuid.UUID) (*WriteResult, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		p.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		p.LastName = *in.LastName
	}
	if in.DateOfBirth != nil {
		p.DateOfBirth = in.DateOfBirth
	}
	if in.Gender != nil {
		p.Gender = in.Gender
	}
	if in.NationalID != nil {
		p.NationalID = in.NationalID
	}
	if in.Phone != nil {
		p.Phone = in.Phone
	}
	if in.Address != nil {
		p.Address = in.Address
	}
	if in.OxygenSaturation != nil {
		p.OxygenSaturation = in.OxygenSaturation
	}
	if in.HeartRate != nil {
		p.HeartRate = in.HeartRate
	}
	if in.BloodPressureSystolic != nil {
		p.BloodPressureSystolic = in.BloodPressureSystolic
	}
	if in.BloodPressureDiastolic != nil {
		p.BloodPressureDiastolic = in.BloodPressureDiastolic
	}
	if in.Temperature != nil {
		p.Temperature = in.Temperature
	}
	if in.ChestPain != nil {
		p.ChestPain = *in.ChestPain
	}
	if in.ChiefComplaint != nil {
		p.ChiefComplaint = in.ChiefComplaint
	}
	if in.Notes != nil {
		p.Notes = in.Notes
	}

	reassess := in.touchesVitals()
	if reassess {
		p.TriageLevel = s.evaluator.Evaluate(p.Vitals())
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	if !reassess {
		return &WriteResult{Patient: p}, nil
	}

	fac, err := s.facilities.GetByID(ctx, p.FacilityID)
	if err != nil {
		return nil, fmt.Errorf("facility not found")
	}
	return s.runTrigger(ctx, p, fac, updatedBy)
}

// Assess reevaluates the patient's triage level from their stored vitals
// and runs the auto-referral check.
func (s *Service) Assess(ctx context.Context, id uuid.UUID, assessedBy uuid.UUID) (*WriteResult, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.TriageLevel = s.evaluator.Evaluate(p.Vitals())
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	fac, err := s.facilities.GetByID(ctx, p.FacilityID)
	if err != nil {
		return nil, fmt.Errorf("facility not found")
	}
	return s.runTrigger(ctx, p, fac, assessedBy)
}

func (s *Service) runTrigger(ctx context.Context, p *Patient, fac *facility.Facility, actor uuid.UUID) (*WriteResult, error) {
	res := &WriteResult{Patient: p}

	ref, err := s.trigger.AutoCreateForPatient(ctx, referral.TriggerInput{
		PatientID:    p.ID,
		FacilityID:   p.FacilityID,
		FacilityType: fac.Type,
		TriageLevel:  p.TriageLevel,
		CreatedBy:    actor,
	})
	if errors.Is(err, referral.ErrNoDestinationAvailable) {
		s.logger.Warn().
			Str("patient_id", p.ID.String()).
			Msg("critical patient but no destination hospital available")
		res.Warning = "patient is critical but no destination hospital is available"
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	res.Referral = ref
	return res, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, facilityID *uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, facilityID, limit, offset)
}

// PatientInfo implements referral.PatientSource for manual referral
// creation.
func (s *Service) PatientInfo(ctx context.Context, id uuid.UUID) (*referral.PatientInfo, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &referral.PatientInfo{
		ID:          p.ID,
		FacilityID:  p.FacilityID,
		TriageLevel: p.TriageLevel,
	}, nil
}
