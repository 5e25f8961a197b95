package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/bookclub/backend/internal/config"
	"github.com/bookclub/backend/internal/models"
	"github.com/bookclub/backend/internal/repository"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/google/uuid"
)

const refreshTokenBytes = 32

// SessionSigner is the token-signing capability; utils.JWTSigner implements it.
type SessionSigner interface {
	Sign(readerID uuid.UUID, username string, issuedAt time.Time, ttl time.Duration) (string, error)
	Parse(token string, now time.Time) (*utils.Claims, error)
}

type SessionToken struct {
	Token     string    `json:"accessToken"`
	ExpiresAt time.Time `json:"accessExpiresAt"`
}

// IssuedRefresh carries the raw refresh token. Only its hash is stored, so
// this is the single chance to hand it to the client.
type IssuedRefresh struct {
	Token  string
	Record *models.RefreshToken
}

type TokenService struct {
	store      repository.Store
	signer     SessionSigner
	sessionTTL time.Duration
	refreshTTL time.Duration
	opts       options
}

func NewTokenService(store repository.Store, signer SessionSigner, cfg config.JWTConfig, opts ...Option) *TokenService {
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 60 * time.Minute
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = 24 * time.Hour
	}
	return &TokenService{
		store:      store,
		signer:     signer,
		sessionTTL: sessionTTL,
		refreshTTL: refreshTTL,
		opts:       newOptions(opts),
	}
}

func (s *TokenService) IssueSession(reader *models.Reader) (*SessionToken, error) {
	if !reader.IsActive() {
		return nil, ErrUnauthenticated
	}

	issuedAt := s.opts.now()
	token, err := s.signer.Sign(reader.ID, reader.Username, issuedAt, s.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &SessionToken{Token: token, ExpiresAt: issuedAt.Add(s.sessionTTL)}, nil
}

// ValidateSession fails closed: any parse, signature, expiry or subject
// problem yields false.
func (s *TokenService) ValidateSession(token string, expectedSubject uuid.UUID) bool {
	subject, err := s.SubjectOf(token)
	if err != nil {
		return false
	}
	return subject == expectedSubject
}

// SubjectOf returns the reader id a valid session token was issued for.
func (s *TokenService) SubjectOf(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrUnauthenticated
	}
	claims, err := s.signer.Parse(token, s.opts.now())
	if err != nil {
		return uuid.Nil, unauthenticated("invalid or expired token")
	}
	return claims.ReaderID, nil
}

// IssueRefresh replaces every refresh record of the reader with a new one.
func (s *TokenService) IssueRefresh(ctx context.Context, readerID uuid.UUID) (*IssuedRefresh, error) {
	raw, err := newRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.opts.now()
	record := &models.RefreshToken{
		ReaderID:  readerID,
		TokenHash: hashRefreshToken(raw),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.RefreshTokens().DeleteByReader(ctx, readerID); err != nil {
			return err
		}
		return tx.RefreshTokens().Create(ctx, record)
	})
	if err != nil {
		return nil, storageError(err, nil)
	}

	s.opts.metrics.RecordAuthEvent("refresh_issued")
	return &IssuedRefresh{Token: raw, Record: record}, nil
}

// FindRefresh looks a raw token up by its hash. It does not check expiry.
func (s *TokenService) FindRefresh(ctx context.Context, raw string) (*models.RefreshToken, error) {
	if raw == "" {
		return nil, unauthenticated("refresh token required")
	}
	record, err := s.store.RefreshTokens().FindByHash(ctx, hashRefreshToken(raw))
	if err != nil {
		return nil, storageError(err, unauthenticated("invalid refresh token"))
	}
	return record, nil
}

// VerifyRefresh fails with ErrExpiredCredential once the record has expired,
// deleting it on the way out.
func (s *TokenService) VerifyRefresh(ctx context.Context, record *models.RefreshToken) (*models.RefreshToken, error) {
	if record == nil {
		return nil, unauthenticated("invalid refresh token")
	}
	if !record.Expired(s.opts.now()) {
		return record, nil
	}

	if err := s.store.RefreshTokens().Delete(ctx, record.ID); err != nil {
		return nil, storageError(err, nil)
	}
	logger.InfoWithUser(record.ReaderID.String(), "refresh_token_expired", map[string]interface{}{
		"expires_at": record.ExpiresAt,
	})
	s.opts.metrics.RecordAuthEvent("refresh_expired")
	return nil, ErrExpiredCredential
}

func (s *TokenService) RevokeAllForPrincipal(ctx context.Context, readerID uuid.UUID) (int64, error) {
	count, err := s.store.RefreshTokens().DeleteByReader(ctx, readerID)
	if err != nil {
		return 0, storageError(err, nil)
	}
	s.opts.metrics.RecordAuthEvent("refresh_revoked")
	return count, nil
}

// PurgeExpired removes expired refresh records that were never presented again.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	count, err := s.store.RefreshTokens().DeleteExpired(ctx, s.opts.now())
	if err != nil {
		return 0, storageError(err, nil)
	}
	return count, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
