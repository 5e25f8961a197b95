package repository

import (
	"context"
	"time"

	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormNotifications struct{ s *GormStore }

const unviewedClause = "NOT EXISTS (SELECT 1 FROM notification_views v WHERE v.notification_id = notifications.id AND v.reader_id = ?)"

func (r *gormNotifications) Create(ctx context.Context, notification *models.Notification) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	return translate(db.Omit(clause.Associations).Create(notification).Error)
}

func (r *gormNotifications) FindByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	var notification models.Notification
	if err := db.Preload("Views").First(&notification, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &notification, nil
}

func (r *gormNotifications) unread(db *gorm.DB, targetID uuid.UUID) *gorm.DB {
	return db.Model(&models.Notification{}).
		Where("target_id = ?", targetID).
		Where(unviewedClause, targetID)
}

func (r *gormNotifications) ListForTarget(ctx context.Context, targetID uuid.UUID, unreadOnly bool, page utils.PaginationParams) ([]models.Notification, int64, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	query := db.Model(&models.Notification{}).Where("target_id = ?", targetID)
	if unreadOnly {
		query = r.unread(db, targetID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var notifications []models.Notification
	err := utils.ApplyPagination(query.Preload("Views").Order("created_at DESC").Order("id ASC"), page).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return notifications, total, nil
}

func (r *gormNotifications) CountUnread(ctx context.Context, targetID uuid.UUID) (int64, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	var count int64
	if err := r.unread(db, targetID).Count(&count).Error; err != nil {
		return 0, translate(err)
	}
	return count, nil
}

// MarkViewed is idempotent: a second view keeps the first timestamp.
func (r *gormNotifications) MarkViewed(ctx context.Context, notificationID, readerID uuid.UUID, at time.Time) error {
	db, cancel := r.s.session(ctx)
	defer cancel()

	view := models.NotificationView{NotificationID: notificationID, ReaderID: readerID, ViewedAt: at}
	return translate(db.Clauses(clause.OnConflict{DoNothing: true}).Create(&view).Error)
}

func (r *gormNotifications) MarkAllViewed(ctx context.Context, readerID uuid.UUID, at time.Time) (int64, error) {
	db, cancel := r.s.session(ctx)
	defer cancel()

	var ids []uuid.UUID
	if err := r.unread(db, readerID).Pluck("id", &ids).Error; err != nil {
		return 0, translate(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	views := make([]models.NotificationView, 0, len(ids))
	for _, id := range ids {
		views = append(views, models.NotificationView{NotificationID: id, ReaderID: readerID, ViewedAt: at})
	}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&views, 100)
	if result.Error != nil {
		return 0, translate(result.Error)
	}
	return result.RowsAffected, nil
}
