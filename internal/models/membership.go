package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is ordered by privilege: none < reader < admin.
type Role string

const (
	RoleNone   Role = "none"
	RoleReader Role = "reader"
	RoleAdmin  Role = "admin"
)

func (r Role) Rank() int {
	switch r {
	case RoleReader:
		return 1
	case RoleAdmin:
		return 2
	default:
		return 0
	}
}

func (r Role) AtLeast(other Role) bool {
	return r.Rank() >= other.Rank()
}

// Assignable reports whether the role can be stored on an active membership.
func (r Role) Assignable() bool {
	return r == RoleReader || r == RoleAdmin
}

func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleNone:
		return RoleNone, nil
	case RoleReader:
		return RoleReader, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipDeparted MembershipStatus = "departed"
)

var ErrAlreadyDeparted = errors.New("membership already departed")

type Membership struct {
	BaseModel
	ClubID     uuid.UUID        `json:"clubId" gorm:"type:uuid;not null;index"`
	ReaderID   uuid.UUID        `json:"readerId" gorm:"type:uuid;not null;index"`
	Role       Role             `json:"role" gorm:"type:varchar(20);not null;default:'reader'"`
	IsCreator  bool             `json:"isCreator" gorm:"not null;default:false"`
	Status     MembershipStatus `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	JoinedAt   time.Time        `json:"joinedAt" gorm:"not null;index"`
	DepartedAt *time.Time       `json:"departedAt,omitempty"`

	Reader *Reader   `json:"reader,omitempty" gorm:"foreignKey:ReaderID"`
	Club   *BookClub `json:"club,omitempty" gorm:"foreignKey:ClubID"`
}

func (Membership) TableName() string {
	return "memberships"
}

func (m *Membership) IsActive() bool {
	return m.Status == MembershipActive
}

// Depart moves the membership to its terminal state. It never reverts.
func (m *Membership) Depart(at time.Time) error {
	if !m.IsActive() {
		return ErrAlreadyDeparted
	}
	m.Status = MembershipDeparted
	m.DepartedAt = &at
	return nil
}

// MembershipView is what a reader sees about their standing in a club. A
// reader without an active membership gets a transient view with RoleNone.
type MembershipView struct {
	Club      *BookClub  `json:"club"`
	Role      Role       `json:"role"`
	IsCreator bool       `json:"isCreator"`
	Member    bool       `json:"member"`
	JoinedAt  *time.Time `json:"joinedAt,omitempty"`
}
