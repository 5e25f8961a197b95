package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bookclub/backend/internal/config"
	"github.com/bookclub/backend/internal/database"
	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/internal/repository"
	"github.com/bookclub/backend/pkg/utils"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var registerNowOnce sync.Once

// sqliteTimeFormat is how the sqlite driver writes time.Time values, so NOW()
// compares correctly against stored timestamps.
const sqliteTimeFormat = "2006-01-02 15:04:05.999999999-07:00"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	registerNowOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC().Format(sqliteTimeFormat), nil
		})
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating: %v", err)
	}
	return db
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu        sync.Mutex
	delivered []models.Notification
	fail      bool
}

func (s *recordingSink) Deliver(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.delivered = append(s.delivered, n)
	return nil
}

func (s *recordingSink) ofType(notificationType models.NotificationType) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.delivered {
		if n.Type == notificationType {
			out = append(out, n)
		}
	}
	return out
}

type testEnv struct {
	db            *gorm.DB
	store         *repository.GormStore
	clock         *testClock
	sink          *recordingSink
	tokens        *TokenService
	auth          *AuthService
	clubs         *ClubService
	members       *MembershipService
	requests      *MembershipRequestService
	notifications *NotificationService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := openTestDB(t)
	store := repository.NewGormStore(db, 5*time.Second)
	clock := newTestClock()
	sink := &recordingSink{}

	signer, err := utils.NewJWTSigner("test-secret")
	if err != nil {
		t.Fatalf("failed creating signer: %v", err)
	}

	opts := []Option{WithClock(clock.Now)}
	tokens := NewTokenService(store, signer, config.JWTConfig{
		SessionTTL: 60 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}, opts...)
	notifications := NewNotificationService(store, sink, opts...)

	return &testEnv{
		db:            db,
		store:         store,
		clock:         clock,
		sink:          sink,
		tokens:        tokens,
		auth:          NewAuthService(store, tokens, opts...),
		clubs:         NewClubService(store, opts...),
		members:       NewMembershipService(store, notifications, opts...),
		requests:      NewMembershipRequestService(store, notifications, opts...),
		notifications: notifications,
	}
}

// createReader stores a reader directly; password hashing is covered by the
// auth tests.
func (e *testEnv) createReader(t *testing.T, username string) *models.Reader {
	t.Helper()
	reader := &models.Reader{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: username,
		JoinedAt:  e.clock.Now(),
	}
	if err := e.store.Readers().Save(context.Background(), reader); err != nil {
		t.Fatalf("failed creating reader %s: %v", username, err)
	}
	return reader
}

func (e *testEnv) createClub(t *testing.T, creator *models.Reader, name string) *models.BookClub {
	t.Helper()
	club, err := e.clubs.Create(context.Background(), creator, CreateClubInput{Name: name, Public: true})
	if err != nil {
		t.Fatalf("failed creating club %s: %v", name, err)
	}
	e.clock.Advance(time.Minute)
	return club
}

// addMember inserts an active membership directly, bypassing the request flow.
func (e *testEnv) addMember(t *testing.T, club *models.BookClub, reader *models.Reader, role models.Role) *models.Membership {
	t.Helper()
	membership := &models.Membership{
		ClubID:   club.ID,
		ReaderID: reader.ID,
		Role:     role,
		Status:   models.MembershipActive,
		JoinedAt: e.clock.Now(),
	}
	if err := e.store.Memberships().Save(context.Background(), membership); err != nil {
		t.Fatalf("failed adding member %s: %v", reader.Username, err)
	}
	e.clock.Advance(time.Minute)
	return membership
}

func (e *testEnv) activeMembership(t *testing.T, club *models.BookClub, reader *models.Reader) *models.Membership {
	t.Helper()
	membership, err := e.store.Memberships().FindActive(context.Background(), club.ID, reader.ID)
	if err != nil {
		t.Fatalf("expected active membership for %s: %v", reader.Username, err)
	}
	return membership
}

func (e *testEnv) activeCreators(t *testing.T, club *models.BookClub) int64 {
	t.Helper()
	var count int64
	err := e.db.Model(&models.Membership{}).
		Where("club_id = ? AND status = ? AND is_creator = ?", club.ID, models.MembershipActive, true).
		Count(&count).Error
	if err != nil {
		t.Fatalf("failed counting creators: %v", err)
	}
	return count
}

func assertKind(t *testing.T, err error, expected *Error) {
	t.Helper()
	if !errors.Is(err, expected) {
		t.Fatalf("expected %s error, got %v", expected.Kind, err)
	}
}

func randomID() uuid.UUID {
	return uuid.New()
}
