package services

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/internal/repository"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/google/uuid"
)

const maxRequestMessageLength = 1000

// MembershipRequestService runs the join workflow: submission, review and the
// membership an approval creates.
type MembershipRequestService struct {
	store    repository.Store
	notifier *NotificationService
	opts     options
}

func NewMembershipRequestService(store repository.Store, notifier *NotificationService, opts ...Option) *MembershipRequestService {
	return &MembershipRequestService{store: store, notifier: notifier, opts: newOptions(opts)}
}

// Submit files an OPEN request and notifies every active admin. A second
// OPEN request for the same club is rejected by the storage index.
func (s *MembershipRequestService) Submit(ctx context.Context, caller *models.Reader, clubName, message string) (request *models.MembershipRequest, err error) {
	defer func() { s.opts.metrics.RecordOperation("submit_request", outcome(err)) }()

	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	club, err := mutableClub(ctx, s.store, clubName)
	if err != nil {
		return nil, err
	}

	message = utils.SanitizeText(message)
	if utf8.RuneCountInString(message) > maxRequestMessageLength {
		return nil, badAction("message is too long")
	}

	existing, err := activeMembership(ctx, s.store, club.ID, caller.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, badAction("you are already a member of this club")
	}

	request = &models.MembershipRequest{
		ClubID:      club.ID,
		RequesterID: caller.ID,
		Message:     message,
		Status:      models.RequestOpen,
		RequestedAt: s.opts.now(),
	}
	if err := s.store.Requests().Save(ctx, request); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, badAction("a membership request for this club is already pending")
		}
		return nil, storageError(err, nil)
	}

	s.opts.metrics.RecordRequestEvent("submitted")
	logger.InfoWithUser(caller.ID.String(), "membership_request_submitted", map[string]interface{}{
		"club":       club.Name,
		"request_id": request.ID.String(),
	})
	s.opts.audit.log(caller.ID, "membership_request.submit", "membership_request", request.ID, map[string]interface{}{
		"club_name": club.Name,
	})

	s.notifyAdmins(ctx, club, caller.ID)
	return request, nil
}

func (s *MembershipRequestService) notifyAdmins(ctx context.Context, club *models.BookClub, requesterID uuid.UUID) {
	role := models.RoleAdmin
	admins, _, err := s.store.Memberships().Find(ctx, repository.MembershipFilter{
		ClubID:     &club.ID,
		Role:       &role,
		ActiveOnly: true,
	}, utils.PaginationParams{})
	if err != nil {
		logger.Error("membership_request_admin_lookup_failed", err, map[string]interface{}{
			"club": club.Name,
		})
		return
	}

	events := make([]NotificationEvent, 0, len(admins))
	for _, admin := range admins {
		events = append(events, NotificationEvent{
			SourceID: requesterID,
			TargetID: admin.ReaderID,
			ClubID:   &club.ID,
			Type:     models.NotificationRequestSubmitted,
			Link:     clubLink(club, "/requests"),
		})
	}
	s.notifier.Emit(ctx, events...)
}

// HasPendingRequest reports whether the caller has an unresolved request for
// the club.
func (s *MembershipRequestService) HasPendingRequest(ctx context.Context, caller *models.Reader, clubName string) (bool, error) {
	if err := requireCaller(caller); err != nil {
		return false, err
	}

	club, err := findClub(ctx, s.store, clubName)
	if err != nil {
		return false, err
	}

	status := models.RequestOpen
	_, total, err := s.store.Requests().Find(ctx, repository.RequestFilter{
		ClubID:      &club.ID,
		RequesterID: &caller.ID,
		Status:      &status,
	}, utils.NewPagination(1, 1))
	if err != nil {
		return false, storageError(err, nil)
	}
	return total > 0, nil
}

// Review resolves an OPEN request. The status change and, on approval, the
// new READER membership commit in one transaction, so an APPROVED request
// always has a membership behind it.
func (s *MembershipRequestService) Review(ctx context.Context, caller *models.Reader, clubName string, requestID uuid.UUID, decision models.RequestStatus) (request *models.MembershipRequest, err error) {
	defer func() { s.opts.metrics.RecordOperation("review_request", outcome(err)) }()

	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if !decision.Resolved() {
		return nil, badAction("decision must be approved or declined")
	}

	club, err := mutableClub(ctx, s.store, clubName)
	if err != nil {
		return nil, err
	}
	if _, err := requireAdmin(ctx, s.store, club, caller); err != nil {
		return nil, err
	}

	request, err = s.store.Requests().FindByID(ctx, requestID)
	if err != nil {
		return nil, storageError(err, ErrRequestNotFound)
	}
	if request.ClubID != club.ID {
		return nil, ErrRequestNotFound
	}
	if request.Status.Resolved() {
		return nil, badAction("membership request has already been " + string(request.Status))
	}
	if decision == models.RequestApproved && request.Requester != nil && !request.Requester.IsActive() {
		return nil, badAction("requester account is closed")
	}

	now := s.opts.now()
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Requests().Resolve(ctx, request.ID, decision, caller.ID, now); err != nil {
			return err
		}
		if decision != models.RequestApproved {
			return nil
		}

		existing, err := tx.Memberships().FindActive(ctx, club.ID, request.RequesterID)
		if err == nil && existing != nil {
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return tx.Memberships().Save(ctx, &models.Membership{
			ClubID:   club.ID,
			ReaderID: request.RequesterID,
			Role:     models.RoleReader,
			Status:   models.MembershipActive,
			JoinedAt: now,
		})
	})
	if err != nil {
		return nil, storageError(err, ErrRequestNotFound)
	}

	reviewerID := caller.ID
	request.Status = decision
	request.ReviewerID = &reviewerID
	request.ReviewedAt = &now

	notificationType := models.NotificationRequestDeclined
	if decision == models.RequestApproved {
		notificationType = models.NotificationRequestApproved
	}

	s.opts.metrics.RecordRequestEvent(string(decision))
	logger.InfoWithUser(caller.ID.String(), "membership_request_reviewed", map[string]interface{}{
		"club":         club.Name,
		"request_id":   request.ID.String(),
		"decision":     string(decision),
		"requester_id": request.RequesterID.String(),
	})
	s.opts.audit.log(caller.ID, "membership_request.review", "membership_request", request.ID, map[string]interface{}{
		"club_name": club.Name,
		"decision":  string(decision),
	})
	s.notifier.Emit(ctx, NotificationEvent{
		SourceID: caller.ID,
		TargetID: request.RequesterID,
		ClubID:   &club.ID,
		Type:     notificationType,
		Link:     clubLink(club, ""),
	})
	return request, nil
}

// ListOpen lets admins page through OPEN requests, oldest first.
func (s *MembershipRequestService) ListOpen(ctx context.Context, caller *models.Reader, clubName string, page, pageSize int) (*Page[models.MembershipRequest], error) {
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

	status := models.RequestOpen
	params := utils.NewPagination(page, pageSize)
	requests, total, err := s.store.Requests().Find(ctx, repository.RequestFilter{
		ClubID: &club.ID,
		Status: &status,
	}, params)
	if err != nil {
		return nil, storageError(err, nil)
	}
	return &Page[models.MembershipRequest]{Items: requests, Page: params.Page, PageSize: params.Limit, Total: total}, nil
}
