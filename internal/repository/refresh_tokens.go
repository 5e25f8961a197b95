package repository

import (
	"context"
	"time"

	"github.com/bookclub/backend/internal/models"
	"github.com/google/uuid"
)

type gormRefreshTokens struct{ s *GormStore }

func (r *gormRefreshTokens) Create(ctx context.Context, token *models.RefreshToken) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	return translate(db.Create(token).Error)
}

func (r *gormRefreshTokens) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	var token models.RefreshToken
	if err := db.First(&token, "token_hash = ?", hash).Error; err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

func (r *gormRefreshTokens) Delete(ctx context.Context, id uuid.UUID) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	return translate(db.Delete(&models.RefreshToken{}, "id = ?", id).Error)
}

func (r *gormRefreshTokens) DeleteByReader(ctx context.Context, readerID uuid.UUID) (int64, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	result := db.Where("reader_id = ?", readerID).Delete(&models.RefreshToken{})
	return result.RowsAffected, translate(result.Error)
}

func (r *gormRefreshTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	result := db.Where("expires_at <= ?", now).Delete(&models.RefreshToken{})
	return result.RowsAffected, translate(result.Error)
}
