package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey     contextKey = "user_id"
	UserRoleKey   contextKey = "user_role"
	UserNameKey   contextKey = "user_name"
	FacilityIDKey contextKey = "facility_id"
)

// Claims carried by every access token. FacilityID is empty for users not
// attached to a facility (e.g. administrators).
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	FacilityID string `json:"facility_id,omitempty"`
	FullName   string `json:"full_name,omitempty"`
}

// JWTConfig configures token verification.
type JWTConfig struct {
	SigningKey []byte
}

// JWTMiddleware validates the Authorization bearer token and places the
// caller's identity, role, and facility on the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			ctx = context.WithValue(ctx, UserNameKey, claims.FullName)
			ctx = context.WithValue(ctx, FacilityIDKey, claims.FacilityID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development that allows
// unauthenticated requests with admin defaults.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, "dev-user")
			ctx = context.WithValue(ctx, UserRoleKey, "admin")
			ctx = context.WithValue(ctx, UserNameKey, "Dev User")
			ctx = context.WithValue(ctx, FacilityIDKey, "")
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// UserIDFromContext returns the authenticated caller's user id.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

// RoleFromContext returns the authenticated caller's role.
func RoleFromContext(ctx context.Context) string {
	v, _ := ctx.Value(UserRoleKey).(string)
	return v
}

// UserNameFromContext returns the authenticated caller's display name.
func UserNameFromContext(ctx context.Context) string {
	v, _ := ctx.Value(UserNameKey).(string)
	return v
}

// FacilityIDFromContext returns the caller's facility id, empty when the
// caller is not attached to a facility.
func FacilityIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(FacilityIDKey).(string)
	return v
}
