package services

import (
	"context"
	"errors"
	"net/url"

	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/internal/repository"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/google/uuid"
)

// NotificationSink hands a stored notification to a delivery transport.
type NotificationSink interface {
	Deliver(ctx context.Context, notification models.Notification) error
}

type NotificationEvent struct {
	SourceID uuid.UUID
	TargetID uuid.UUID
	ClubID   *uuid.UUID
	Type     models.NotificationType
	Link     string
}

type NotificationService struct {
	store repository.Store
	sink  NotificationSink
	opts  options
}

// NewNotificationService accepts a nil sink, in which case notifications are
// only stored for the in-app inbox.
func NewNotificationService(store repository.Store, sink NotificationSink, opts ...Option) *NotificationService {
	return &NotificationService{store: store, sink: sink, opts: newOptions(opts)}
}

// Emit records each event and forwards it to the sink. It runs after the
// triggering operation has committed, so failures are logged and counted
// rather than returned.
func (s *NotificationService) Emit(ctx context.Context, events ...NotificationEvent) {
	if s == nil {
		return
	}

	for _, event := range events {
		if event.TargetID == event.SourceID {
			continue
		}

		notification := models.Notification{
			SourceID:  event.SourceID,
			TargetID:  event.TargetID,
			ClubID:    event.ClubID,
			Type:      event.Type,
			Link:      event.Link,
			CreatedAt: s.opts.now(),
		}
		if err := s.store.Notifications().Create(ctx, &notification); err != nil {
			logger.ErrorWithUser(event.TargetID.String(), "notification_persist_failed", err, map[string]interface{}{
				"type": string(event.Type),
			})
			s.opts.metrics.RecordNotification(string(event.Type), "persist_failed")
			continue
		}

		if s.sink == nil {
			s.opts.metrics.RecordNotification(string(event.Type), "stored")
			continue
		}
		if err := s.sink.Deliver(ctx, notification); err != nil {
			logger.ErrorWithUser(event.TargetID.String(), "notification_delivery_failed", err, map[string]interface{}{
				"type":            string(event.Type),
				"notification_id": notification.ID.String(),
			})
			s.opts.metrics.RecordNotification(string(event.Type), "delivery_failed")
			continue
		}
		s.opts.metrics.RecordNotification(string(event.Type), "delivered")
	}
}

// InboxItem is a notification as seen by its target.
type InboxItem struct {
	models.Notification
	Viewed bool `json:"viewed"`
}

func (s *NotificationService) List(ctx context.Context, caller *models.Reader, unreadOnly bool, page, pageSize int) (*Page[InboxItem], error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := checkPageSize(pageSize); err != nil {
		return nil, err
	}

	params := utils.NewPagination(page, pageSize)
	notifications, total, err := s.store.Notifications().ListForTarget(ctx, caller.ID, unreadOnly, params)
	if err != nil {
		return nil, storageError(err, nil)
	}

	items := make([]InboxItem, 0, len(notifications))
	for _, n := range notifications {
		viewed := n.ViewedBy(caller.ID)
		n.Views = nil
		items = append(items, InboxItem{Notification: n, Viewed: viewed})
	}
	return &Page[InboxItem]{Items: items, Page: params.Page, PageSize: params.Limit, Total: total}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, caller *models.Reader) (int64, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	count, err := s.store.Notifications().CountUnread(ctx, caller.ID)
	if err != nil {
		return 0, storageError(err, nil)
	}
	return count, nil
}

// ErrNotificationNotFound is reported for ids that do not exist and for
// notifications addressed to someone else.
var ErrNotificationNotFound = &Error{Kind: KindRequestNotFound, Message: "notification not found"}

func (s *NotificationService) MarkViewed(ctx context.Context, caller *models.Reader, notificationID uuid.UUID) error {
	if err := requireCaller(caller); err != nil {
		return err
	}

	notification, err := s.store.Notifications().FindByID(ctx, notificationID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && notification.TargetID != caller.ID) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return storageError(err, nil)
	}

	if err := s.store.Notifications().MarkViewed(ctx, notificationID, caller.ID, s.opts.now()); err != nil {
		return storageError(err, nil)
	}
	return nil
}

func (s *NotificationService) MarkAllViewed(ctx context.Context, caller *models.Reader) (int64, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	count, err := s.store.Notifications().MarkAllViewed(ctx, caller.ID, s.opts.now())
	if err != nil {
		return 0, storageError(err, nil)
	}
	return count, nil
}

func clubLink(club *models.BookClub, suffix string) string {
	return "/clubs/" + url.PathEscape(club.Name) + suffix
}
