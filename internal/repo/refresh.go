package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ngalkin/session_auth/internal/models"
)

func (r *GormRepo) SaveRefreshToken(ctx context.Context, userID uint, token string, expiresAt time.Time) error {
	rec := models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	return r.DB.WithContext(ctx).Create(&rec).Error
}

// FindRefreshToken looks a record up by its exact signed value and returns
// (nil, nil) when absent, which covers both "never issued" and "revoked".
func (r *GormRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rec models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("token = ?", token).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// DeleteRefreshToken is idempotent: deleting an absent record is a no-op.
func (r *GormRepo) DeleteRefreshToken(ctx context.Context, token string) error {
	return r.DB.WithContext(ctx).Where("token = ?", token).Delete(&models.RefreshToken{}).Error
}

// DeleteExpiredRefreshTokens reaps rows whose expiry has passed. Pure
// housekeeping: validation re-checks expiry on every read, so correctness
// never depends on this running.
func (r *GormRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}
