package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ers/ers/internal/domain/facility"
	"github.com/ers/ers/internal/platform/auth"
)

// ErrInvalidCredentials is returned on a failed login. It deliberately does
// not distinguish an unknown email from a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

type Service struct {
	repo       Repository
	facilities facility.Repository
	issuer     *auth.TokenIssuer
}

func NewService(repo Repository, facilities facility.Repository, issuer *auth.TokenIssuer) *Service {
	return &Service{repo: repo, facilities: facilities, issuer: issuer}
}

// RegisterInput is a new account request.
type RegisterInput struct {
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	FullName   string     `json:"full_name"`
	Role       string     `json:"role"`
	FacilityID *uuid.UUID `json:"facility_id,omitempty"`
}

// Register creates an account. Nurses and doctors must belong to a
// facility; admins must not.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	if in.FullName == "" {
		return nil, fmt.Errorf("full_name is required")
	}
	if !validRole(in.Role) {
		return nil, fmt.Errorf("role must be nurse, doctor, or admin")
	}
	if in.Role != RoleAdmin {
		if in.FacilityID == nil {
			return nil, fmt.Errorf("facility_id is required for %s accounts", in.Role)
		}
		if _, err := s.facilities.GetByID(ctx, *in.FacilityID); err != nil {
			return nil, fmt.Errorf("facility not found")
		}
	}

	if existing, err := s.repo.GetByEmail(ctx, in.Email); err == nil && existing != nil {
		return nil, fmt.Errorf("email already registered")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         in.Role,
		FacilityID:   in.FacilityID,
		Active:       true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// LoginResult carries the issued access token alongside the account.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"user"`
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Active || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	facilityID := ""
	if u.FacilityID != nil {
		facilityID = u.FacilityID.String()
	}
	token, err := s.issuer.Issue(u.ID.String(), u.Role, facilityID, u.FullName)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.issuer.TTL().Seconds()),
		User:        u,
	}, nil
}

// Me returns the account for the given user id.
func (s *Service) Me(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}
