package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/internal/repository"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/bookclub/backend/pkg/utils"
)

const (
	maxClubNameLength        = 100
	maxClubDescriptionLength = 2000
)

type ClubService struct {
	store repository.Store
	opts  options
}

func NewClubService(store repository.Store, opts ...Option) *ClubService {
	return &ClubService{store: store, opts: newOptions(opts)}
}

type CreateClubInput struct {
	Name        string
	Description string
	Public      bool
}

func validateClubName(name string) error {
	switch {
	case name == "":
		return badAction("club name is required")
	case utf8.RuneCountInString(name) > maxClubNameLength:
		return badAction("club name is too long")
	case strings.ContainsAny(name, "/\\?#"):
		return badAction("club name contains reserved characters")
	}
	return nil
}

// Create stores the club and its creator membership in one transaction. The
// caller becomes the creator with the admin role.
func (s *ClubService) Create(ctx context.Context, caller *models.Reader, input CreateClubInput) (club *models.BookClub, err error) {
	defer func() { s.opts.metrics.RecordOperation("create_club", outcome(err)) }()

	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if err := validateClubName(name); err != nil {
		return nil, err
	}
	description := utils.SanitizeText(input.Description)
	if utf8.RuneCountInString(description) > maxClubDescriptionLength {
		return nil, badAction("club description is too long")
	}

	now := s.opts.now()
	club = &models.BookClub{Name: name, Description: description, Public: input.Public}
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Clubs().Save(ctx, club); err != nil {
			return err
		}
		return tx.Memberships().Save(ctx, &models.Membership{
			ClubID:    club.ID,
			ReaderID:  caller.ID,
			Role:      models.RoleAdmin,
			IsCreator: true,
			Status:    models.MembershipActive,
			JoinedAt:  now,
		})
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, badAction("a book club with this name already exists")
	}
	if err != nil {
		return nil, storageError(err, nil)
	}

	logger.InfoWithUser(caller.ID.String(), "club_created", map[string]interface{}{
		"club":   club.Name,
		"public": club.Public,
	})
	s.opts.audit.log(caller.ID, "club.create", "book_club", club.ID, map[string]interface{}{
		"club_name": club.Name,
	})
	return club, nil
}

// ListPublic pages through public clubs that are still running.
func (s *ClubService) ListPublic(ctx context.Context, caller *models.Reader, page, pageSize int) (*Page[models.BookClub], error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := checkPageSize(pageSize); err != nil {
		return nil, err
	}

	params := utils.NewPagination(page, pageSize)
	clubs, total, err := s.store.Clubs().Find(ctx, repository.ClubFilter{PublicOnly: true}, params)
	if err != nil {
		return nil, storageError(err, nil)
	}
	return &Page[models.BookClub]{Items: clubs, Page: params.Page, PageSize: params.Limit, Total: total}, nil
}

// Disband closes the club for good. Only the creator may do it; memberships
// are kept for history.
func (s *ClubService) Disband(ctx context.Context, caller *models.Reader, clubName string) (club *models.BookClub, err error) {
	defer func() { s.opts.metrics.RecordOperation("disband_club", outcome(err)) }()

	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	club, err = mutableClub(ctx, s.store, clubName)
	if err != nil {
		return nil, err
	}
	membership, err := activeMembership(ctx, s.store, club.ID, caller.ID)
	if err != nil {
		return nil, err
	}
	if membership == nil || !membership.IsCreator {
		return nil, ErrUnauthorized
	}

	now := s.opts.now()
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		err := tx.Clubs().Disband(ctx, club.ID, caller.ID, now)
		if !errors.Is(err, repository.ErrConflict) {
			return err
		}
		// Lost a race with another disband or an ownership transfer.
		if _, err := mutableClub(ctx, tx, clubName); err != nil {
			return err
		}
		return ErrUnauthorized
	})
	if err != nil {
		return nil, storageError(err, ErrGroupNotFound)
	}
	club.DisbandedAt = &now

	logger.InfoWithUser(caller.ID.String(), "club_disbanded", map[string]interface{}{
		"club": club.Name,
	})
	s.opts.audit.log(caller.ID, "club.disband", "book_club", club.ID, map[string]interface{}{
		"club_name": club.Name,
	})
	return club, nil
}
