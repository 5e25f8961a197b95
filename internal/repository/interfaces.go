package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("repository: not found")
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrConflict reports a conditional write whose precondition no longer held.
	ErrConflict = errors.New("repository: concurrent modification")
)

// Store groups the per-entity repositories. WithinTx runs fn against a
// Store bound to a single transaction; returning an error rolls it back.
type Store interface {
	Readers() ReaderRepository
	Clubs() BookClubRepository
	Memberships() MembershipRepository
	Requests() MembershipRequestRepository
	Notifications() NotificationRepository
	RefreshTokens() RefreshTokenRepository
	LinkedAccounts() LinkedAccountRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type ReaderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reader, error)
	FindByUsername(ctx context.Context, username string) (*models.Reader, error)
	FindByEmail(ctx context.Context, email string) (*models.Reader, error)
	Save(ctx context.Context, reader *models.Reader) error
}

type ClubFilter struct {
	PublicOnly       bool
	IncludeDisbanded bool
}

type BookClubRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.BookClub, error)
	FindByName(ctx context.Context, name string) (*models.BookClub, error)
	Find(ctx context.Context, filter ClubFilter, page utils.PaginationParams) ([]models.BookClub, int64, error)
	Save(ctx context.Context, club *models.BookClub) error
	// Disband marks a live club disbanded, provided creatorID still holds
	// its active creator membership. Otherwise ErrConflict.
	Disband(ctx context.Context, id, creatorID uuid.UUID, at time.Time) error
}

// MembershipFilter narrows Find. Nil fields are not applied.
type MembershipFilter struct {
	ClubID      *uuid.UUID
	ReaderID    *uuid.UUID
	Role        *models.Role
	Creator     *bool
	ActiveOnly  bool
	PreloadClub bool
}

type MembershipRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Membership, error)
	FindActive(ctx context.Context, clubID, readerID uuid.UUID) (*models.Membership, error)
	// Find orders by joined_at then id. A zero page limit returns every row.
	Find(ctx context.Context, filter MembershipFilter, page utils.PaginationParams) ([]models.Membership, int64, error)
	Save(ctx context.Context, membership *models.Membership) error
	UpdateRole(ctx context.Context, id uuid.UUID, from, to models.Role) error
	Depart(ctx context.Context, id uuid.UUID, at time.Time) error
	SetCreator(ctx context.Context, id uuid.UUID, isCreator bool) error
}

type RequestFilter struct {
	ClubID      *uuid.UUID
	RequesterID *uuid.UUID
	Status      *models.RequestStatus
}

type MembershipRequestRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.MembershipRequest, error)
	Find(ctx context.Context, filter RequestFilter, page utils.PaginationParams) ([]models.MembershipRequest, int64, error)
	Save(ctx context.Context, request *models.MembershipRequest) error
	Resolve(ctx context.Context, id uuid.UUID, status models.RequestStatus, reviewerID uuid.UUID, at time.Time) error
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	ListForTarget(ctx context.Context, targetID uuid.UUID, unreadOnly bool, page utils.PaginationParams) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, targetID uuid.UUID) (int64, error)
	MarkViewed(ctx context.Context, notificationID, readerID uuid.UUID, at time.Time) error
	MarkAllViewed(ctx context.Context, readerID uuid.UUID, at time.Time) (int64, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByReader(ctx context.Context, readerID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type LinkedAccountRepository interface {
	FindByProvider(ctx context.Context, provider, providerUserID string) (*models.LinkedAccount, error)
	Save(ctx context.Context, account *models.LinkedAccount) error
}
