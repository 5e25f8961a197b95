package repository

import (
	"context"
	"time"

	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

type gormRequests struct{ s *GormStore }

func (r *gormRequests) FindByID(ctx context.Context, id uuid.UUID) (*models.MembershipRequest, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	var request models.MembershipRequest
	if err := db.Preload("Requester").First(&request, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &request, nil
}

func (r *gormRequests) Find(ctx context.Context, filter RequestFilter, page utils.PaginationParams) ([]models.MembershipRequest, int64, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	query := db.Model(&models.MembershipRequest{})
	if filter.ClubID != nil {
		query = query.Where("club_id = ?", *filter.ClubID)
	}
	if filter.RequesterID != nil {
		query = query.Where("requester_id = ?", *filter.RequesterID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	query = query.Preload("Requester").Order("requested_at ASC").Order("id ASC")
	if page.Limit > 0 {
		query = utils.ApplyPagination(query, page)
	}

	var requests []models.MembershipRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, 0, translate(err)
	}
	return requests, total, nil
}

func (r *gormRequests) Save(ctx context.Context, request *models.MembershipRequest) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	db = db.Omit(clause.Associations)
	if request.ID == uuid.Nil {
		return translate(db.Create(request).Error)
	}
	return translate(db.Save(request).Error)
}

// Resolve moves an open request to a terminal status. Only one reviewer can
// win; the loser gets ErrConflict.
func (r *gormRequests) Resolve(ctx context.Context, id uuid.UUID, status models.RequestStatus, reviewerID uuid.UUID, at time.Time) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	return conditional(db.Model(&models.MembershipRequest{}).
		Where("id = ? AND status = ?", id, models.RequestOpen).
		Updates(map[string]interface{}{
			"status":      status,
			"reviewer_id": reviewerID,
			"reviewed_at": at,
			"updated_at":  time.Now().UTC(),
		}))
}
