package user

import (
	"time"

	"github.com/google/uuid"
)

// Role gates what a user may do: nurses register patients and create
// referrals, doctors accept them, admins manage facilities.
const (
	RoleNurse  = "nurse"
	RoleDoctor = "doctor"
	RoleAdmin  = "admin"
)

func validRole(role string) bool {
	return role == RoleNurse || role == RoleDoctor || role == RoleAdmin
}

// User maps to the users table. PasswordHash never leaves the server.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         string     `db:"role" json:"role"`
	FacilityID   *uuid.UUID `db:"facility_id" json:"facility_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
