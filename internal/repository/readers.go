package repository

import (
	"context"
	"strings"

	"github.com/bookclub/backend/internal/models"
	"github.com/google/uuid"
)

type gormReaders struct{ s *GormStore }

func (r *gormReaders) FindByID(ctx context.Context, id uuid.UUID) (*models.Reader, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormReaders) FindByUsername(ctx context.Context, username string) (*models.Reader, error) {
	return r.first(ctx, "username = ?", strings.TrimSpace(username))
}

func (r *gormReaders) FindByEmail(ctx context.Context, email string) (*models.Reader, error) {
	return r.first(ctx, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *gormReaders) first(ctx context.Context, query string, args ...interface{}) (*models.Reader, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	var reader models.Reader
	if err := db.Where(query, args...).First(&reader).Error; err != nil {
		return nil, translate(err)
	}
	return &reader, nil
}

func (r *gormReaders) Save(ctx context.Context, reader *models.Reader) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	if reader.ID == uuid.Nil {
		return translate(db.Create(reader).Error)
	}
	return translate(db.Save(reader).Error)
}
