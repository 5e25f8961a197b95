package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrEmptySecret = errors.New("jwt secret must not be empty")

type Claims struct {
	ReaderID uuid.UUID `json:"readerID"`
	Username string    `json:"username"`
	jwt.RegisteredClaims
}

// JWTSigner signs and verifies HS256 session tokens with a server-held key.
type JWTSigner struct {
	secret []byte
}

func NewJWTSigner(secret string) (*JWTSigner, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &JWTSigner{secret: []byte(secret)}, nil
}

func (s *JWTSigner) Sign(readerID uuid.UUID, username string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		ReaderID: readerID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Subject:   readerID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse verifies the signature and the expiry relative to now.
func (s *JWTSigner) Parse(tokenString string, now time.Time) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject != claims.ReaderID.String() {
		return nil, fmt.Errorf("subject does not match reader")
	}

	return claims, nil
}
