package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"

	"museum_nav/internal/models"
)

// DefaultTokenTTL is the session lifetime when the caller has no override.
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrTokenInvalid covers bad signatures, malformed tokens and expiry.
var ErrTokenInvalid = errors.New("token is not valid")

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs session tokens and tracks the ones revoked before expiry.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	store  RevocationStore
	log    *slog.Logger
}

func NewTokenService(secret []byte, ttl time.Duration, store RevocationStore, log *slog.Logger) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret: secret,
		ttl:    ttl,
		store:  store,
		log:    log,
	}
}

// TTL is the default lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for p. A zero ttl selects the service default; a
// negative one yields an already expired token.
func (s *TokenService) Issue(p models.Principal, ttl time.Duration) (string, error) {
	const op = "auth.TokenService.Issue"

	if ttl == 0 {
		ttl = s.ttl
	}

	tokenID, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	claims := &Claims{
		Username: p.Username,
		Role:     p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			ID:        tokenID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// Parse verifies signature and expiry and returns the caller identity.
// Every failure is reported as ErrTokenInvalid.
func (s *TokenService) Parse(tokenString string) (models.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return models.Principal{}, ErrTokenInvalid
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return models.Principal{}, ErrTokenInvalid
	}

	return models.Principal{
		UserID:   userID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}

// Revoke records token as unusable until its own expiry. The signature is
// not checked and undecodable tokens are ignored, so logout never fails.
func (s *TokenService) Revoke(ctx context.Context, tokenString string) {
	const op = "auth.TokenService.Revoke"

	log := s.log.With(slog.String("op", op))

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		log.Debug("ignoring undecodable token", slog.Any("error", err))
		return
	}
	if claims.ExpiresAt == nil {
		log.Debug("ignoring token without expiry")
		return
	}

	if err := s.store.Add(ctx, tokenString, claims.ExpiresAt.Time); err != nil {
		log.Error("failed to store revoked token", slog.Any("error", err))
		return
	}

	log.Info("token revoked", slog.String("subject", claims.Subject))
}

// IsRevoked reports whether token sits in the revocation set. A store
// failure is treated as revoked.
func (s *TokenService) IsRevoked(ctx context.Context, tokenString string) bool {
	const op = "auth.TokenService.IsRevoked"

	revoked, err := s.store.Contains(ctx, tokenString)
	if err != nil {
		s.log.Error("revocation lookup failed", slog.String("op", op), slog.Any("error", err))
		return true
	}
	return revoked
}
