package facility

import (
	"time"

	"github.com/google/uuid"
)

// Type distinguishes the two kinds of participating facilities. Clinics
// originate referrals, hospitals receive them.
type Type string

const (
	TypeClinic   Type = "CLINIC"
	TypeHospital Type = "HOSPITAL"
)

// Valid reports whether t is a known facility type.
func (t Type) Valid() bool {
	return t == TypeClinic || t == TypeHospital
}

// Facility maps to the facilities table.
type Facility struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Type      Type      `db:"type" json:"type"`
	Address   *string   `db:"address" json:"address,omitempty"`
	City      *string   `db:"city" json:"city,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
