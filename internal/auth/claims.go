package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin    = "admin"
	RoleSupplier = "supplier"
	RoleClient   = "client"
)

var (
	ErrNoToken        = errors.New("no auth token")
	ErrMalformedToken = errors.New("malformed auth token")
)

// Claims is the part of the token payload the UI branches on.
type Claims struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// DecodeClaims reads the token payload WITHOUT checking the signature or
// expiry. The result only picks a layout or menu; the backend enforces
// access on its own.
func DecodeClaims(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrNoToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	return claims, nil
}

// RoleOf returns the role claim of token, or "" when the token is missing or
// cannot be decoded.
func RoleOf(token string) string {
	claims, err := DecodeClaims(token)
	if err != nil {
		return ""
	}
	return claims.Role
}

func HasRole(token, role string) bool {
	r := RoleOf(token)
	return r != "" && r == role
}
