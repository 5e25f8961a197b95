package services

import (
	"context"
	"testing"

	"github.com/bookclub/backend/internal/models"
)

func TestNotificationInbox(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	alice := env.createReader(t, "alice")
	bob := env.createReader(t, "bob")
	club := env.createClub(t, alice, "Classics")

	for i := 0; i < 3; i++ {
		env.notifications.Emit(ctx, NotificationEvent{
			SourceID: bob.ID,
			TargetID: alice.ID,
			ClubID:   &club.ID,
			Type:     models.NotificationRequestSubmitted,
			Link:     clubLink(club, "/requests"),
		})
	}

	count, err := env.notifications.UnreadCount(ctx, alice)
	if err != nil || count != 3 {
		t.Fatalf("expected 3 unread, got %d (%v)", count, err)
	}

	page, err := env.notifications.List(ctx, alice, false, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 3 || page.Items[0].Viewed {
		t.Fatalf("unexpected inbox: %+v", page)
	}
	if page.Items[0].Link != "/clubs/Classics/requests" {
		t.Fatalf("unexpected link %q", page.Items[0].Link)
	}

	t.Run("someone else's notification", func(t *testing.T) {
		err := env.notifications.MarkViewed(ctx, bob, page.Items[0].ID)
		assertKind(t, err, ErrNotificationNotFound)
	})

	t.Run("mark one viewed", func(t *testing.T) {
		if err := env.notifications.MarkViewed(ctx, alice, page.Items[0].ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := env.notifications.MarkViewed(ctx, alice, page.Items[0].ID); err != nil {
			t.Fatalf("expected marking twice to be harmless, got %v", err)
		}
		unread, err := env.notifications.List(ctx, alice, true, 1, 10)
		if err != nil || unread.Total != 2 {
			t.Fatalf("expected 2 unread, got %+v (%v)", unread, err)
		}
	})

	t.Run("mark all viewed", func(t *testing.T) {
		marked, err := env.notifications.MarkAllViewed(ctx, alice)
		if err != nil || marked != 2 {
			t.Fatalf("expected 2 marked, got %d (%v)", marked, err)
		}
		count, _ := env.notifications.UnreadCount(ctx, alice)
		if count != 0 {
			t.Fatalf("expected nothing unread, got %d", count)
		}
	})
}

func TestEmitSkipsSelfAndSurvivesSinkFailure(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	alice := env.createReader(t, "alice")
	bob := env.createReader(t, "bob")

	env.notifications.Emit(ctx, NotificationEvent{SourceID: alice.ID, TargetID: alice.ID, Type: models.NotificationRoleChanged, Link: "/"})
	if count, _ := env.notifications.UnreadCount(ctx, alice); count != 0 {
		t.Fatalf("expected self notification to be skipped, got %d", count)
	}

	env.sink.fail = true
	env.notifications.Emit(ctx, NotificationEvent{SourceID: alice.ID, TargetID: bob.ID, Type: models.NotificationRoleChanged, Link: "/"})
	if count, _ := env.notifications.UnreadCount(ctx, bob); count != 1 {
		t.Fatalf("expected notification to be stored despite sink failure, got %d", count)
	}

	var nilService *NotificationService
	nilService.Emit(ctx, NotificationEvent{SourceID: alice.ID, TargetID: bob.ID})
}
