package services

import (
	"context"
	"strings"
	"testing"

	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/internal/repository"
	"github.com/bookclub/backend/pkg/utils"
)

func TestSubmitRequest(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	alice := env.createReader(t, "alice")
	erin := env.createReader(t, "erin")
	bob := env.createReader(t, "bob")
	club := env.createClub(t, alice, "Classics")
	env.addMember(t, club, erin, models.RoleAdmin)

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := env.requests.Submit(ctx, nil, "Classics", "hi")
		assertKind(t, err, ErrUnauthenticated)
	})

	t.Run("unknown club", func(t *testing.T) {
		_, err := env.requests.Submit(ctx, bob, "Missing", "hi")
		assertKind(t, err, ErrGroupNotFound)
	})

	t.Run("member cannot request", func(t *testing.T) {
		_, err := env.requests.Submit(ctx, erin, "Classics", "hi")
		assertKind(t, err, ErrBadAction)
	})

	t.Run("message too long", func(t *testing.T) {
		_, err := env.requests.Submit(ctx, bob, "Classics", strings.Repeat("a", maxRequestMessageLength+1))
		assertKind(t, err, ErrBadAction)
	})

	t.Run("creates open request and notifies admins", func(t *testing.T) {
		pending, err := env.requests.HasPendingRequest(ctx, bob, "Classics")
		if err != nil || pending {
			t.Fatalf("expected no pending request yet, got %v %v", pending, err)
		}

		request, err := env.requests.Submit(ctx, bob, "Classics", "<b>please</b> add me")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if request.Status != models.RequestOpen || request.RequesterID != bob.ID || request.ClubID != club.ID {
			t.Fatalf("unexpected request: %+v", request)
		}
		if request.Message != "please add me" {
			t.Fatalf("expected sanitized message, got %q", request.Message)
		}

		pending, err = env.requests.HasPendingRequest(ctx, bob, "Classics")
		if err != nil || !pending {
			t.Fatalf("expected pending request, got %v %v", pending, err)
		}

		submitted := env.sink.ofType(models.NotificationRequestSubmitted)
		targets := map[string]bool{}
		for _, n := range submitted {
			if n.SourceID != bob.ID {
				t.Fatalf("expected bob as source, got %s", n.SourceID)
			}
			targets[n.TargetID.String()] = true
		}
		if len(submitted) != 2 || !targets[alice.ID.String()] || !targets[erin.ID.String()] {
			t.Fatalf("expected notifications for alice and erin, got %+v", submitted)
		}
	})

	t.Run("duplicate open request is rejected", func(t *testing.T) {
		_, err := env.requests.Submit(ctx, bob, "Classics", "again")
		assertKind(t, err, ErrBadAction)

		status := models.RequestOpen
		_, total, err := env.store.Requests().Find(ctx, repository.RequestFilter{
			ClubID:      &club.ID,
			RequesterID: &bob.ID,
			Status:      &status,
		}, utils.PaginationParams{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 1 {
			t.Fatalf("expected a single open request, got %d", total)
		}
	})
}

func TestReviewRequest(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	alice := env.createReader(t, "alice")
	bob := env.createReader(t, "bob")
	carol := env.createReader(t, "carol")
	reader := env.createReader(t, "reader")
	club := env.createClub(t, alice, "Classics")
	env.createClub(t, carol, "Poetry")
	env.addMember(t, club, reader, models.RoleReader)

	request, err := env.requests.Submit(ctx, bob, "Classics", "please add me")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("invalid decision", func(t *testing.T) {
		_, err := env.requests.Review(ctx, alice, "Classics", request.ID, models.RequestOpen)
		assertKind(t, err, ErrBadAction)
	})

	t.Run("non admin", func(t *testing.T) {
		_, err := env.requests.Review(ctx, reader, "Classics", request.ID, models.RequestApproved)
		assertKind(t, err, ErrUnauthorized)
	})

	t.Run("unknown request", func(t *testing.T) {
		_, err := env.requests.Review(ctx, alice, "Classics", randomID(), models.RequestApproved)
		assertKind(t, err, ErrRequestNotFound)
	})

	t.Run("request of another club", func(t *testing.T) {
		_, err := env.requests.Review(ctx, carol, "Poetry", request.ID, models.RequestApproved)
		assertKind(t, err, ErrRequestNotFound)
	})

	t.Run("approval creates one reader membership", func(t *testing.T) {
		reviewed, err := env.requests.Review(ctx, alice, "Classics", request.ID, models.RequestApproved)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reviewed.Status != models.RequestApproved || reviewed.ReviewerID == nil || *reviewed.ReviewerID != alice.ID || reviewed.ReviewedAt == nil {
			t.Fatalf("unexpected reviewed request: %+v", reviewed)
		}

		stored, err := env.store.Requests().FindByID(ctx, request.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stored.Status != models.RequestApproved {
			t.Fatalf("expected stored status approved, got %s", stored.Status)
		}

		membership := env.activeMembership(t, club, bob)
		if membership.Role != models.RoleReader || membership.IsCreator {
			t.Fatalf("expected plain reader membership, got %+v", membership)
		}

		_, total, err := env.store.Memberships().Find(ctx, repository.MembershipFilter{
			ClubID:     &club.ID,
			ReaderID:   &bob.ID,
			ActiveOnly: true,
		}, utils.PaginationParams{})
		if err != nil || total != 1 {
			t.Fatalf("expected exactly one active membership, got %d (%v)", total, err)
		}

		approved := env.sink.ofType(models.NotificationRequestApproved)
		if len(approved) != 1 || approved[0].TargetID != bob.ID || approved[0].SourceID != alice.ID {
			t.Fatalf("expected approval notification to bob, got %+v", approved)
		}
	})

	t.Run("resolved request cannot be reviewed again", func(t *testing.T) {
		_, err := env.requests.Review(ctx, alice, "Classics", request.ID, models.RequestDeclined)
		assertKind(t, err, ErrBadAction)

		pending, err := env.requests.HasPendingRequest(ctx, bob, "Classics")
		if err != nil || pending {
			t.Fatalf("expected no pending request after approval, got %v %v", pending, err)
		}
	})

	t.Run("decline creates no membership", func(t *testing.T) {
		dave := env.createReader(t, "dave")
		declined, err := env.requests.Submit(ctx, dave, "Classics", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := env.requests.Review(ctx, alice, "Classics", declined.ID, models.RequestDeclined); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := env.members.GetRole(ctx, dave, "Classics"); KindOf(err) != KindMembershipNotFound {
			t.Fatalf("expected no membership for dave, got %v", err)
		}

		if _, err := env.requests.Submit(ctx, dave, "Classics", "second try"); err != nil {
			t.Fatalf("expected a new request after decline, got %v", err)
		}
	})
}

func TestListOpenRequests(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	alice := env.createReader(t, "alice")
	env.createClub(t, alice, "Classics")

	for _, name := range []string{"bob", "carol", "dave"} {
		requester := env.createReader(t, name)
		if _, err := env.requests.Submit(ctx, requester, "Classics", "hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	page, err := env.requests.ListOpen(ctx, alice, "Classics", 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 {
		t.Fatalf("expected 2 of 3 open requests, got total=%d items=%d", page.Total, len(page.Items))
	}

	_, err = env.requests.ListOpen(ctx, alice, "Classics", 1, MaxPageSize+1)
	assertKind(t, err, ErrPageSizeTooLarge)
}

// Alice founds Classics, admits Bob, promotes him and hands the club over.
func TestClassicsScenario(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	alice := env.createReader(t, "alice")
	bob := env.createReader(t, "bob")
	club := env.createClub(t, alice, "Classics")

	creator := env.activeMembership(t, club, alice)
	if creator.Role != models.RoleAdmin || !creator.IsCreator {
		t.Fatalf("expected alice to be creator admin, got %+v", creator)
	}

	request, err := env.requests.Submit(ctx, bob, "Classics", "please add me")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := env.requests.Review(ctx, alice, "Classics", request.ID, models.RequestApproved); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	bobMembership := env.activeMembership(t, club, bob)
	if bobMembership.Role != models.RoleReader || bobMembership.IsCreator {
		t.Fatalf("expected bob reader, got %+v", bobMembership)
	}

	if _, err := env.members.UpdateRole(ctx, alice, "Classics", bob.ID, models.RoleAdmin); err != nil {
		t.Fatalf("promote failed: %v", err)
	}
	if env.activeMembership(t, club, bob).Role != models.RoleAdmin {
		t.Fatal("expected bob to be admin")
	}

	_, err = env.members.TransferOwnership(ctx, bob, "Classics", alice.ID)
	assertKind(t, err, ErrUnauthorized)

	if _, err := env.members.TransferOwnership(ctx, alice, "Classics", bob.ID); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if env.activeMembership(t, club, alice).IsCreator || !env.activeMembership(t, club, bob).IsCreator {
		t.Fatal("expected creator flag to move from alice to bob")
	}

	_, err = env.members.RemoveMembership(ctx, alice, "Classics", bob.ID)
	assertKind(t, err, ErrBadAction)

	if got := env.activeCreators(t, club); got != 1 {
		t.Fatalf("expected exactly one creator, got %d", got)
	}
}
