package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/ers/ers/internal/triage"
)

// Patient maps to the patients table. Vital sign columns are nullable;
// a nil reading was simply not taken.
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	FirstName   string     `db:"first_name" json:"first_name"`
	LastName    string     `db:"last_name" json:"last_name"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      *string    `db:"gender" json:"gender,omitempty"`
	NationalID  *string    `db:"national_id" json:"national_id,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`

	OxygenSaturation       *float64 `db:"oxygen_saturation" json:"oxygen_saturation,omitempty"`
	HeartRate              *int     `db:"heart_rate" json:"heart_rate,omitempty"`
	BloodPressureSystolic  *int     `db:"blood_pressure_systolic" json:"blood_pressure_systolic,omitempty"`
	BloodPressureDiastolic *int     `db:"blood_pressure_diastolic" json:"blood_pressure_diastolic,omitempty"`
	Temperature            *float64 `db:"temperature" json:"temperature,omitempty"`
	ChestPain              bool     `db:"chest_pain" json:"chest_pain"`

	ChiefComplaint *string      `db:"chief_complaint" json:"chief_complaint,omitempty"`
	Notes          *string      `db:"notes" json:"notes,omitempty"`
	TriageLevel    triage.Level `db:"triage_level" json:"triage_level"`

	FacilityID   uuid.UUID `db:"facility_id" json:"facility_id"`
	RegisteredBy uuid.UUID `db:"registered_by" json:"registered_by"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Vitals collects the patient's current readings for triage evaluation.
func (p *Patient) Vitals() triage.Vitals {
	return triage.Vitals{
		OxygenSaturation: p.OxygenSaturation,
		HeartRate:        p.HeartRate,
		SystolicBP:       p.BloodPressureSystolic,
		DiastolicBP:      p.BloodPressureDiastolic,
		Temperature:      p.Temperature,
		ChestPain:        p.ChestPain,
	}
}
