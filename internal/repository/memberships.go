package repository

import (
	"context"
	"time"

	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

type gormMemberships struct{ s *GormStore }

func (r *gormMemberships) FindByID(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	var membership models.Membership
	if err := db.Preload("Reader").First(&membership, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &membership, nil
}

func (r *gormMemberships) FindActive(ctx context.Context, clubID, readerID uuid.UUID) (*models.Membership, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	var membership models.Membership
	err := db.Where("club_id = ? AND reader_id = ? AND status = ?", clubID, readerID, models.MembershipActive).
		First(&membership).Error
	if err != nil {
		return nil, translate(err)
	}
	return &membership, nil
}

func (r *gormMemberships) Find(ctx context.Context, filter MembershipFilter, page utils.PaginationParams) ([]models.Membership, int64, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	query := db.Model(&models.Membership{})
	if filter.ClubID != nil {
		query = query.Where("club_id = ?", *filter.ClubID)
	}
	if filter.ReaderID != nil {
		query = query.Where("reader_id = ?", *filter.ReaderID)
	}
	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	if filter.Creator != nil {
		query = query.Where("is_creator = ?", *filter.Creator)
	}
	if filter.ActiveOnly {
		query = query.Where("status = ?", models.MembershipActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	query = query.Preload("Reader").Order("joined_at ASC").Order("id ASC")
	if filter.PreloadClub {
		query = query.Preload("Club")
	}
	if page.Limit > 0 {
		query = utils.ApplyPagination(query, page)
	}

	var memberships []models.Membership
	if err := query.Find(&memberships).Error; err != nil {
		return nil, 0, translate(err)
	}
	return memberships, total, nil
}

func (r *gormMemberships) Save(ctx context.Context, membership *models.Membership) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	db = db.Omit(clause.Associations)
	if membership.ID == uuid.Nil {
		return translate(db.Create(membership).Error)
	}
	return translate(db.Save(membership).Error)
}

func (r *gormMemberships) UpdateRole(ctx context.Context, id uuid.UUID, from, to models.Role) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	return conditional(db.Model(&models.Membership{}).
		Where("id = ? AND status = ? AND role = ? AND is_creator = ?", id, models.MembershipActive, from, false).
		Updates(map[string]interface{}{
			"role":       to,
			"updated_at": time.Now().UTC(),
		}))
}

func (r *gormMemberships) Depart(ctx context.Context, id uuid.UUID, at time.Time) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	return conditional(db.Model(&models.Membership{}).
		Where("id = ? AND status = ? AND is_creator = ?", id, models.MembershipActive, false).
		Updates(map[string]interface{}{
			"status":      models.MembershipDeparted,
			"departed_at": at,
			"updated_at":  time.Now().UTC(),
		}))
}

func (r *gormMemberships) SetCreator(ctx context.Context, id uuid.UUID, isCreator bool) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	return conditional(db.Model(&models.Membership{}).
		Where("id = ? AND status = ? AND is_creator = ?", id, models.MembershipActive, !isCreator).
		Updates(map[string]interface{}{
			"is_creator": isCreator,
			"updated_at": time.Now().UTC(),
		}))
}
