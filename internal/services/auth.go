package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/internal/repository"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/google/uuid"
)

const minPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)

// AuthService turns credentials into a resolved caller and a token pair.
type AuthService struct {
	store  repository.Store
	tokens *TokenService
	opts   options
}

func NewAuthService(store repository.Store, tokens *TokenService, opts ...Option) *AuthService {
	return &AuthService{store: store, tokens: tokens, opts: newOptions(opts)}
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type AuthResult struct {
	Reader           *models.Reader `json:"reader"`
	AccessToken      string         `json:"accessToken"`
	AccessExpiresAt  time.Time      `json:"accessExpiresAt"`
	RefreshToken     string         `json:"refreshToken"`
	RefreshExpiresAt time.Time      `json:"refreshExpiresAt"`
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if !usernamePattern.MatchString(username) {
		return nil, badAction("username must be 3-50 letters, digits, dots, dashes or underscores")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, badAction("a valid email is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, badAction(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	reader := &models.Reader{
		Username:     username,
		Email:        email,
		FirstName:    utils.SanitizeText(input.FirstName),
		LastName:     utils.SanitizeText(input.LastName),
		PasswordHash: hash,
		JoinedAt:     s.opts.now(),
	}
	if err := s.store.Readers().Save(ctx, reader); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, badAction("username or email is already taken")
		}
		return nil, storageError(err, nil)
	}

	logger.InfoWithUser(reader.ID.String(), "reader_registered", map[string]interface{}{
		"username": reader.Username,
	})
	s.opts.audit.log(reader.ID, "reader.register", "reader", reader.ID, nil)
	return s.issue(ctx, reader)
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// equalizeTiming spends a bcrypt comparison on unknown usernames so they take
// as long as a wrong password.
func equalizeTiming(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = utils.HashPassword("bookclub-timing-placeholder")
	})
	utils.CheckPassword(password, dummyHash)
}

// Login verifies the password and starts a new session. Any earlier refresh
// token of the reader stops working.
func (s *AuthService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, unauthenticated("username and password are required")
	}

	var (
		reader *models.Reader
		err    error
	)
	if strings.Contains(login, "@") {
		reader, err = s.store.Readers().FindByEmail(ctx, strings.ToLower(login))
	} else {
		reader, err = s.store.Readers().FindByUsername(ctx, login)
	}
	if errors.Is(err, repository.ErrNotFound) {
		equalizeTiming(password)
		s.opts.metrics.RecordAuthEvent("login_failed")
		return nil, unauthenticated("invalid credentials")
	}
	if err != nil {
		return nil, storageError(err, nil)
	}

	if reader.PasswordHash == "" || !utils.CheckPassword(password, reader.PasswordHash) || !reader.IsActive() {
		logger.WarnWithUser(reader.ID.String(), "login_failed", map[string]interface{}{
			"active": reader.IsActive(),
		})
		s.opts.metrics.RecordAuthEvent("login_failed")
		return nil, unauthenticated("invalid credentials")
	}

	s.opts.metrics.RecordAuthEvent("login")
	s.opts.audit.log(reader.ID, "reader.login", "reader", reader.ID, nil)
	return s.issue(ctx, reader)
}

// Refresh trades a valid refresh token for a new token pair. The presented
// token is consumed by the rotation.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (*AuthResult, error) {
	record, err := s.tokens.FindRefresh(ctx, rawRefreshToken)
	if err != nil {
		return nil, err
	}
	if record, err = s.tokens.VerifyRefresh(ctx, record); err != nil {
		return nil, err
	}

	reader, err := s.store.Readers().FindByID(ctx, record.ReaderID)
	if err != nil {
		return nil, storageError(err, unauthenticated("account no longer exists"))
	}
	if !reader.IsActive() {
		if _, err := s.tokens.RevokeAllForPrincipal(ctx, reader.ID); err != nil {
			return nil, err
		}
		return nil, unauthenticated("account is closed")
	}

	s.opts.metrics.RecordAuthEvent("refresh")
	return s.issue(ctx, reader)
}

// Logout revokes every refresh token of the caller. Session tokens already
// handed out stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, caller *models.Reader) (int64, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	count, err := s.tokens.RevokeAllForPrincipal(ctx, caller.ID)
	if err != nil {
		return 0, err
	}

	logger.InfoWithUser(caller.ID.String(), "reader_logged_out", map[string]interface{}{
		"revoked": count,
	})
	s.opts.audit.log(caller.ID, "reader.logout", "reader", caller.ID, nil)
	return count, nil
}

// ResolveCaller maps a session token to an active reader.
func (s *AuthService) ResolveCaller(ctx context.Context, sessionToken string) (*models.Reader, error) {
	readerID, err := s.tokens.SubjectOf(sessionToken)
	if err != nil {
		return nil, err
	}

	reader, err := s.store.Readers().FindByID(ctx, readerID)
	if err != nil {
		return nil, storageError(err, unauthenticated("account no longer exists"))
	}
	if !reader.IsActive() {
		return nil, unauthenticated("account is closed")
	}
	return reader, nil
}

// LoginExternal signs in the reader linked to an external identity. An
// unlinked identity with a verified email is linked to the reader with the
// same email, or becomes a new reader when autoRegister is set.
func (s *AuthService) LoginExternal(ctx context.Context, profile *ExternalProfile, autoRegister bool) (*AuthResult, error) {
	if profile == nil || profile.Subject == "" {
		return nil, unauthenticated("external identity is missing a subject")
	}
	provider := profile.Provider.String()

	account, err := s.store.LinkedAccounts().FindByProvider(ctx, provider, profile.Subject)
	switch {
	case err == nil:
		reader, err := s.store.Readers().FindByID(ctx, account.ReaderID)
		if err != nil {
			return nil, storageError(err, unauthenticated("account no longer exists"))
		}
		return s.externalSession(ctx, reader, provider)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, storageError(err, nil)
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return nil, unauthenticated("external identity has no email")
	}
	// Linking or registering by email trusts the address, so it must be verified.
	if !profile.EmailVerified {
		return nil, unauthenticated("external identity has no verified email")
	}

	var reader *models.Reader
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		existing, err := tx.Readers().FindByEmail(ctx, email)
		switch {
		case err == nil:
			reader = existing
		case errors.Is(err, repository.ErrNotFound):
			if !autoRegister {
				return unauthenticated("no account is linked to this identity")
			}
			reader = &models.Reader{
				Username:  externalUsername(profile),
				Email:     email,
				FirstName: utils.SanitizeText(profile.FirstName),
				LastName:  utils.SanitizeText(profile.LastName),
				JoinedAt:  s.opts.now(),
			}
			if err := tx.Readers().Save(ctx, reader); err != nil {
				return err
			}
		default:
			return err
		}

		return tx.LinkedAccounts().Save(ctx, &models.LinkedAccount{
			ReaderID:       reader.ID,
			Provider:       provider,
			ProviderUserID: profile.Subject,
			Email:          email,
		})
	})
	if err != nil {
		return nil, storageError(err, nil)
	}

	logger.InfoWithUser(reader.ID.String(), "external_identity_linked", map[string]interface{}{
		"provider": provider,
	})
	return s.externalSession(ctx, reader, provider)
}

func (s *AuthService) externalSession(ctx context.Context, reader *models.Reader, provider string) (*AuthResult, error) {
	if !reader.IsActive() {
		return nil, unauthenticated("account is closed")
	}
	s.opts.metrics.RecordAuthEvent("login_external")
	s.opts.audit.log(reader.ID, "reader.login_external", "reader", reader.ID, map[string]interface{}{
		"provider": provider,
	})
	return s.issue(ctx, reader)
}

// externalUsername derives a username that passes validation. A short random
// suffix keeps it unique.
func externalUsername(profile *ExternalProfile) string {
	base := profile.Username
	if base == "" {
		base = strings.SplitN(profile.Email, "@", 2)[0]
	}

	var b strings.Builder
	for _, r := range base {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if len(cleaned) > 40 {
		cleaned = cleaned[:40]
	}
	if cleaned == "" {
		cleaned = "reader"
	}
	return cleaned + "-" + uuid.NewString()[:8]
}

func (s *AuthService) issue(ctx context.Context, reader *models.Reader) (*AuthResult, error) {
	session, err := s.tokens.IssueSession(reader)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(ctx, reader.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Reader:           reader,
		AccessToken:      session.Token,
		AccessExpiresAt:  session.ExpiresAt,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.Record.ExpiresAt,
	}, nil
}
