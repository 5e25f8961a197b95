package models

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestOpen     RequestStatus = "open"
	RequestApproved RequestStatus = "approved"
	RequestDeclined RequestStatus = "declined"
)

func (s RequestStatus) Resolved() bool {
	return s == RequestApproved || s == RequestDeclined
}

type MembershipRequest struct {
	BaseModel
	ClubID      uuid.UUID     `json:"clubId" gorm:"type:uuid;not null;index"`
	RequesterID uuid.UUID     `json:"requesterId" gorm:"type:uuid;not null;index"`
	Message     string        `json:"message" gorm:"type:text"`
	Status      RequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'open';index"`
	ReviewerID  *uuid.UUID    `json:"reviewerId,omitempty" gorm:"type:uuid"`
	RequestedAt time.Time     `json:"requestedAt" gorm:"not null"`
	ReviewedAt  *time.Time    `json:"reviewedAt,omitempty"`

	Requester *Reader `json:"requester,omitempty" gorm:"foreignKey:RequesterID"`
}

func (MembershipRequest) TableName() string {
	return "membership_requests"
}
