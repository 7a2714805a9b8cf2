package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/abdelhadiDevWeb/labocart/internal/storage"
	"github.com/sirupsen/logrus"
)

const TokenKey = "authToken"

// CartClearer empties the cart on logout.
type CartClearer interface {
	Clear(ctx context.Context) error
}

// Session keeps the bearer token in the same storage as the cart.
type Session struct {
	storage storage.Storage
	cart    CartClearer
	log     logrus.FieldLogger
}

func NewSession(s storage.Storage, cart CartClearer, log logrus.FieldLogger) *Session {
	return &Session{storage: s, cart: cart, log: log}
}

// Token returns ErrNoToken when nobody is logged in.
func (s *Session) Token(ctx context.Context) (string, error) {
	data, err := s.storage.Get(ctx, TokenKey)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && len(data) == 0) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(data), nil
}

func (s *Session) SetToken(ctx context.Context, token string) error {
	if err := s.storage.Set(ctx, TokenKey, []byte(token)); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

func (s *Session) RemoveToken(ctx context.Context) error {
	if err := s.storage.Remove(ctx, TokenKey); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// IsAuthenticated only checks that a token is present.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	_, err := s.Token(ctx)
	return err == nil
}

// Claims decodes the stored token.
func (s *Session) Claims(ctx context.Context) (*Claims, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return DecodeClaims(token)
}

func (s *Session) Role(ctx context.Context) string {
	claims, err := s.Claims(ctx)
	if err != nil {
		return ""
	}
	return claims.Role
}

func (s *Session) HasRole(ctx context.Context, role string) bool {
	r := s.Role(ctx)
	return r != "" && r == role
}

// Logout drops the token and empties the cart. The cart is cleared through
// the store so other tabs are told.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.RemoveToken(ctx); err != nil {
		return err
	}
	if s.cart != nil {
		if err := s.cart.Clear(ctx); err != nil {
			return fmt.Errorf("clear cart on logout: %w", err)
		}
	}
	s.log.Info("logged out")
	return nil
}
