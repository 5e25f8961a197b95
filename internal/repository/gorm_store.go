package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// GormStore implements Store on gorm. Every call runs under the configured
// query timeout.
type GormStore struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewGormStore(db *gorm.DB, timeout time.Duration) *GormStore {
	return &GormStore{db: db, timeout: timeout}
}

func (s *GormStore) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.timeout <= 0 {
		return s.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	db, cancel := s.session(ctx)
	defer cancel()

	return db.Transaction(func(tx *gorm.DB) error {
		// The transaction itself is already bounded by the outer deadline.
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) Readers() ReaderRepository { return &gormReaders{s} }
func (s *GormStore) Clubs() BookClubRepository { return &gormClubs{s} }
func (s *GormStore) Memberships() MembershipRepository { return &gormMemberships{s} }
func (s *GormStore) Requests() MembershipRequestRepository { return &gormRequests{s} }
func (s *GormStore) Notifications() NotificationRepository { return &gormNotifications{s} }
func (s *GormStore) RefreshTokens() RefreshTokenRepository { return &gormRefreshTokens{s} }
func (s *GormStore) LinkedAccounts() LinkedAccountRepository { return &gormLinkedAccounts{s} }

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// conditional turns a compare-and-swap update into ErrConflict when no row
// matched its precondition.
func conditional(result *gorm.DB) error {
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
