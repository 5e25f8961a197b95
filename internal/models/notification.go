package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationRequestSubmitted     NotificationType = "membership_request.submitted"
	NotificationRequestApproved      NotificationType = "membership_request.approved"
	NotificationRequestDeclined      NotificationType = "membership_request.declined"
	NotificationRoleChanged          NotificationType = "membership.role_changed"
	NotificationMembershipRemoved    NotificationType = "membership.removed"
	NotificationOwnershipTransferred NotificationType = "club.ownership_transferred"
)

// Notification is immutable once created; only Views grows.
type Notification struct {
	ID        uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	SourceID  uuid.UUID        `json:"sourceId" gorm:"type:uuid;not null"`
	TargetID  uuid.UUID        `json:"targetId" gorm:"type:uuid;not null;index"`
	ClubID    *uuid.UUID       `json:"clubId,omitempty" gorm:"type:uuid;index"`
	Type      NotificationType `json:"type" gorm:"type:varchar(50);not null"`
	Link      string           `json:"link" gorm:"type:varchar(500);not null"`
	CreatedAt time.Time        `json:"createdAt" gorm:"not null;index"`

	Views []NotificationView `json:"views,omitempty" gorm:"foreignKey:NotificationID"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) ViewedBy(readerID uuid.UUID) bool {
	for _, v := range n.Views {
		if v.ReaderID == readerID {
			return true
		}
	}
	return false
}

type NotificationView struct {
	NotificationID uuid.UUID `json:"notificationId" gorm:"type:uuid;primaryKey"`
	ReaderID       uuid.UUID `json:"readerId" gorm:"type:uuid;primaryKey"`
	ViewedAt       time.Time `json:"viewedAt" gorm:"not null"`
}

func (NotificationView) TableName() string {
	return "notification_views"
}

func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return nil
}
