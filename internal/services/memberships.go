package services

import (
	"context"

	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/internal/repository"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/google/uuid"
)

// MaxPageSize bounds every paginated listing.
const MaxPageSize = 50

// MembershipService authorizes and applies role and lifecycle changes. The
// caller is always passed in explicitly, already resolved by the transport.
type MembershipService struct {
	store    repository.Store
	notifier *NotificationService
	opts     options
}

func NewMembershipService(store repository.Store, notifier *NotificationService, opts ...Option) *MembershipService {
	return &MembershipService{store: store, notifier: notifier, opts: newOptions(opts)}
}

func checkPageSize(pageSize int) error {
	switch {
	case pageSize < 1:
		return ErrPageSizeTooSmall
	case pageSize > MaxPageSize:
		return ErrPageSizeTooLarge
	}
	return nil
}

// requireAdmin returns the caller's membership when it is an active admin.
func requireAdmin(ctx context.Context, store repository.Store, club *models.BookClub, caller *models.Reader) (*models.Membership, error) {
	membership, err := activeMembership(ctx, store, club.ID, caller.ID)
	if err != nil {
		return nil, err
	}
	if membership == nil || membership.Role != models.RoleAdmin {
		return nil, ErrUnauthorized
	}
	return membership, nil
}

func (s *MembershipService) ListMembers(ctx context.Context, caller *models.Reader, clubName string, page, pageSize int) (result *Page[models.Membership], err error) {
	defer func() { s.opts.metrics.RecordOperation("list_members", outcome(err)) }()

	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := checkPageSize(pageSize); err != nil {
		return nil, err
	}

	club, err := findClub(ctx, s.store, clubName)
	if err != nil {
		return nil, err
	}
	if _, err := requireAdmin(ctx, s.store, club, caller); err != nil {
		return nil, err
	}

	params := utils.NewPagination(page, pageSize)
	members, total, err := s.store.Memberships().Find(ctx, repository.MembershipFilter{
		ClubID:     &club.ID,
		ActiveOnly: true,
	}, params)
	if err != nil {
		return nil, storageError(err, nil)
	}

	return &Page[models.Membership]{Items: members, Page: params.Page, PageSize: params.Limit, Total: total}, nil
}

func (s *MembershipService) GetRole(ctx context.Context, caller *models.Reader, clubName string) (models.Role, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}

	club, err := findClub(ctx, s.store, clubName)
	if err != nil {
		return "", err
	}
	membership, err := activeMembership(ctx, s.store, club.ID, caller.ID)
	if err != nil {
		return "", err
	}
	if membership == nil {
		return "", ErrMembershipNotFound
	}
	return membership.Role, nil
}

// GetMembership never fails for a non-member: it returns a view with
// RoleNone so the client can offer to join.
func (s *MembershipService) GetMembership(ctx context.Context, caller *models.Reader, clubName string) (*models.MembershipView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	club, err := findClub(ctx, s.store, clubName)
	if err != nil {
		return nil, err
	}
	membership, err := activeMembership(ctx, s.store, club.ID, caller.ID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return &models.MembershipView{Club: club, Role: models.RoleNone}, nil
	}

	joinedAt := membership.JoinedAt
	return &models.MembershipView{
		Club:      club,
		Role:      membership.Role,
		IsCreator: membership.IsCreator,
		Member:    true,
		JoinedAt:  &joinedAt,
	}, nil
}

// managedTarget runs the checks shared by UpdateRole and RemoveMembership and
// returns the club and the target's active membership.
func (s *MembershipService) managedTarget(ctx context.Context, caller *models.Reader, clubName string, targetID uuid.UUID) (*models.BookClub, *models.Membership, error) {
	club, err := mutableClub(ctx, s.store, clubName)
	if err != nil {
		return nil, nil, err
	}

	// The creator is protected whatever the caller's role, so this check
	// comes before the admin check.
	target, err := activeMembership(ctx, s.store, club.ID, targetID)
	if err != nil {
		return nil, nil, err
	}
	if target != nil && target.IsCreator {
		return nil, nil, badAction("the club creator's membership can only change through an ownership transfer")
	}

	if _, err := requireAdmin(ctx, s.store, club, caller); err != nil {
		return nil, nil, err
	}
	if target == nil {
		return nil, nil, ErrMembershipNotFound
	}
	return club, target, nil
}

func (s *MembershipService) UpdateRole(ctx context.Context, caller *models.Reader, clubName string, targetID uuid.UUID, newRole models.Role) (result *models.Membership, err error) {
	defer func() { s.opts.metrics.RecordOperation("update_role", outcome(err)) }()

	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if targetID == caller.ID {
		return nil, badAction("you cannot change your own role")
	}
	if !newRole.Assignable() {
		return nil, badAction("role must be reader or admin")
	}

	club, target, err := s.managedTarget(ctx, caller, clubName, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role == newRole {
		return nil, badAction("member already has role " + string(newRole))
	}

	previous := target.Role
	if err := s.store.Memberships().UpdateRole(ctx, target.ID, previous, newRole); err != nil {
		return nil, storageError(err, ErrMembershipNotFound)
	}
	target.Role = newRole

	logger.InfoWithUser(caller.ID.String(), "membership_role_updated", map[string]interface{}{
		"club":      club.Name,
		"target_id": targetID.String(),
		"from":      string(previous),
		"to":        string(newRole),
	})
	s.opts.audit.log(caller.ID, "membership.role_update", "membership", target.ID, map[string]interface{}{
		"club_name": club.Name,
		"from":      string(previous),
		"to":        string(newRole),
	})
	s.notifier.Emit(ctx, NotificationEvent{
		SourceID: caller.ID,
		TargetID: targetID,
		ClubID:   &club.ID,
		Type:     models.NotificationRoleChanged,
		Link:     clubLink(club, ""),
	})
	return target, nil
}

func (s *MembershipService) RemoveMembership(ctx context.Context, caller *models.Reader, clubName string, targetID uuid.UUID) (result *models.Membership, err error) {
	defer func() { s.opts.metrics.RecordOperation("remove_membership", outcome(err)) }()

	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if targetID == caller.ID {
		return nil, badAction("use leave to end your own membership")
	}

	club, target, err := s.managedTarget(ctx, caller, clubName, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.depart(ctx, target); err != nil {
		return nil, err
	}

	logger.InfoWithUser(caller.ID.String(), "membership_removed", map[string]interface{}{
		"club":      club.Name,
		"target_id": targetID.String(),
	})
	s.opts.audit.log(caller.ID, "membership.remove", "membership", target.ID, map[string]interface{}{
		"club_name": club.Name,
		"reader_id": targetID.String(),
	})
	s.notifier.Emit(ctx, NotificationEvent{
		SourceID: caller.ID,
		TargetID: targetID,
		ClubID:   &club.ID,
		Type:     models.NotificationMembershipRemoved,
		Link:     clubLink(club, ""),
	})
	return target, nil
}

func (s *MembershipService) depart(ctx context.Context, membership *models.Membership) error {
	at := s.opts.now()
	if err := membership.Depart(at); err != nil {
		return badAction(err.Error())
	}
	if err := s.store.Memberships().Depart(ctx, membership.ID, at); err != nil {
		return storageError(err, ErrMembershipNotFound)
	}
	return nil
}

// TransferOwnership moves the creator flag from the caller to another active
// member. Both writes commit together or not at all, so a club never has zero
// or two creators. Roles are left as they are.
func (s *MembershipService) TransferOwnership(ctx context.Context, caller *models.Reader, clubName string, newOwnerID uuid.UUID) (ok bool, err error) {
	defer func() { s.opts.metrics.RecordOperation("transfer_ownership", outcome(err)) }()

	if err := requireCaller(caller); err != nil {
		return false, err
	}
	if newOwnerID == caller.ID {
		return false, badAction("you already own this club")
	}

	club, err := mutableClub(ctx, s.store, clubName)
	if err != nil {
		return false, err
	}
	current, err := activeMembership(ctx, s.store, club.ID, caller.ID)
	if err != nil {
		return false, err
	}
	if current == nil || !current.IsCreator {
		return false, ErrUnauthorized
	}
	next, err := activeMembership(ctx, s.store, club.ID, newOwnerID)
	if err != nil {
		return false, err
	}
	if next == nil {
		return false, ErrMembershipNotFound
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Memberships().SetCreator(ctx, current.ID, false); err != nil {
			return err
		}
		return tx.Memberships().SetCreator(ctx, next.ID, true)
	})
	if err != nil {
		return false, storageError(err, ErrMembershipNotFound)
	}

	logger.InfoWithUser(caller.ID.String(), "club_ownership_transferred", map[string]interface{}{
		"club":         club.Name,
		"new_owner_id": newOwnerID.String(),
	})
	s.opts.audit.log(caller.ID, "club.ownership_transfer", "book_club", club.ID, map[string]interface{}{
		"club_name":    club.Name,
		"new_owner_id": newOwnerID.String(),
	})
	s.notifier.Emit(ctx, NotificationEvent{
		SourceID: caller.ID,
		TargetID: newOwnerID,
		ClubID:   &club.ID,
		Type:     models.NotificationOwnershipTransferred,
		Link:     clubLink(club, ""),
	})
	return true, nil
}

// Leave ends the caller's own membership. The creator has to hand the club
// over first.
func (s *MembershipService) Leave(ctx context.Context, caller *models.Reader, clubName string) (result *models.Membership, err error) {
	defer func() { s.opts.metrics.RecordOperation("leave", outcome(err)) }()

	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	club, err := mutableClub(ctx, s.store, clubName)
	if err != nil {
		return nil, err
	}
	membership, err := activeMembership(ctx, s.store, club.ID, caller.ID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, ErrMembershipNotFound
	}
	if membership.IsCreator {
		return nil, badAction("transfer ownership before leaving the club")
	}

	if err := s.depart(ctx, membership); err != nil {
		return nil, err
	}

	logger.InfoWithUser(caller.ID.String(), "membership_left", map[string]interface{}{
		"club": club.Name,
	})
	s.opts.audit.log(caller.ID, "membership.leave", "membership", membership.ID, map[string]interface{}{
		"club_name": club.Name,
	})
	return membership, nil
}

// ListMine pages through the caller's active memberships with their clubs.
func (s *MembershipService) ListMine(ctx context.Context, caller *models.Reader, page, pageSize int) (*Page[models.Membership], error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := checkPageSize(pageSize); err != nil {
		return nil, err
	}

	params := utils.NewPagination(page, pageSize)
	memberships, total, err := s.store.Memberships().Find(ctx, repository.MembershipFilter{
		ReaderID:    &caller.ID,
		ActiveOnly:  true,
		PreloadClub: true,
	}, params)
	if err != nil {
		return nil, storageError(err, nil)
	}
	return &Page[models.Membership]{Items: memberships, Page: params.Page, PageSize: params.Limit, Total: total}, nil
}
