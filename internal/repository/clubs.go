package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/google/uuid"
)

type gormClubs struct{ s *GormStore }

func (r *gormClubs) FindByID(ctx context.Context, id uuid.UUID) (*models.BookClub, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	var club models.BookClub
	if err := db.First(&club, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &club, nil
}

func (r *gormClubs) FindByName(ctx context.Context, name string) (*models.BookClub, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	var club models.BookClub
	if err := db.First(&club, "name = ?", strings.TrimSpace(name)).Error; err != nil {
		return nil, translate(err)
	}
	return &club, nil
}

func (r *gormClubs) Find(ctx context.Context, filter ClubFilter, page utils.PaginationParams) ([]models.BookClub, int64, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	query := db.Model(&models.BookClub{})
	if filter.PublicOnly {
		query = query.Where("public = ?", true)
	}
	if !filter.IncludeDisbanded {
		query = query.Where("disbanded_at IS NULL")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var clubs []models.BookClub
	if err := utils.ApplyPagination(query.Order("name ASC"), page).Find(&clubs).Error; err != nil {
		return nil, 0, translate(err)
	}
	return clubs, total, nil
}

func (r *gormClubs) Save(ctx context.Context, club *models.BookClub) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	if club.ID == uuid.Nil {
		return translate(db.Create(club).Error)
	}
	return translate(db.Save(club).Error)
}

func (r *gormClubs) Disband(ctx context.Context, id, creatorID uuid.UUID, at time.Time) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	creator := db.Model(&models.Membership{}).Select("1").
		Where("club_id = ? AND reader_id = ? AND status = ? AND is_creator = ?", id, creatorID, models.MembershipActive, true)

	return conditional(db.Model(&models.BookClub{}).
		Where("id = ? AND disbanded_at IS NULL AND EXISTS (?)", id, creator).
		Updates(map[string]interface{}{
			"disbanded_at": at,
			"updated_at":   time.Now().UTC(),
		}))
}
