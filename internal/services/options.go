package services

import (
	"context"
	"errors"
	"time"

	"github.com/bookclub/backend/internal/metrics"
	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/internal/repository"
	"github.com/google/uuid"
)

type Option func(*options)

type options struct {
	now     func() time.Time
	metrics *metrics.Collector
	audit   *AuditService
}

func newOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces time.Now, mainly for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

func WithAudit(a *AuditService) Option {
	return func(o *options) { o.audit = a }
}

// Page is one slice of an ordered listing.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func requireCaller(caller *models.Reader) error {
	if !caller.IsActive() {
		return ErrUnauthenticated
	}
	return nil
}

func findClub(ctx context.Context, store repository.Store, name string) (*models.BookClub, error) {
	club, err := store.Clubs().FindByName(ctx, name)
	if err != nil {
		return nil, storageError(err, ErrGroupNotFound)
	}
	return club, nil
}

func mutableClub(ctx context.Context, store repository.Store, name string) (*models.BookClub, error) {
	club, err := findClub(ctx, store, name)
	if err != nil {
		return nil, err
	}
	if club.IsDisbanded() {
		return nil, badAction("book club has been disbanded")
	}
	return club, nil
}

// activeMembership returns nil without error when the reader holds no
// active membership in the club.
func activeMembership(ctx context.Context, store repository.Store, clubID, readerID uuid.UUID) (*models.Membership, error) {
	membership, err := store.Memberships().FindActive(ctx, clubID, readerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(err, nil)
	}
	return membership, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := KindOf(err); kind != 0 {
		return kind.String()
	}
	return "error"
}
