package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ngalkin/session_auth/internal/models"
	"github.com/ngalkin/session_auth/internal/repo"
	"github.com/ngalkin/session_auth/pkg/tokens"
)

// RefreshManager owns the refresh-token state machine: create persists a
// signed token keyed by its own value, validate checks signature and
// persisted state, revoke deletes the record. There is no in-place
// rotation; a new refresh token only ever comes from Create at login.
type RefreshManager struct {
	Repo  *repo.GormRepo
	Codec *tokens.Codec
}

// Create signs a refresh token for the user and persists its record. The
// record expiry is the token's own embedded expiry, so either check alone
// is sufficient later. The record either fully persists or the token is
// not handed out at all.
func (m *RefreshManager) Create(ctx context.Context, user *models.User) (string, time.Time, error) {
	token, exp, err := m.Codec.Issue(strconv.FormatUint(uint64(user.ID), 10), user.Role)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := m.Repo.SaveRefreshToken(ctx, user.ID, token, exp); err != nil {
		return "", time.Time{}, fmt.Errorf("save refresh token: %w", err)
	}
	return token, exp, nil
}

// Validate is a pure read: decode the token, look up its record by exact
// value, compare the stored expiry to now. Two concurrent validates of
// the same token both succeed; nothing is consumed.
func (m *RefreshManager) Validate(ctx context.Context, token string) (*tokens.Claims, error) {
	claims, err := m.Codec.Parse(token)
	if err != nil {
		return nil, err
	}

	rec, err := m.Repo.FindRefreshToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if rec == nil {
		return nil, ErrTokenNotFound
	}
	if rec.ExpiresAt.Before(time.Now()) {
		return nil, tokens.ErrTokenExpired
	}
	return claims, nil
}

// Revoke deletes the record unconditionally. Revoking an absent token is
// a no-op, never an error.
func (m *RefreshManager) Revoke(ctx context.Context, token string) error {
	return m.Repo.DeleteRefreshToken(ctx, token)
}
