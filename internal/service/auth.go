package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"museum_nav/internal/auth"
	"museum_nav/internal/errs"
	"museum_nav/internal/metrics"
	"museum_nav/internal/models"
	"museum_nav/internal/storage"
)

const (
	MsgRegisterFieldsRequired = "Username, email and password are required"
	MsgLoginFieldsRequired    = "Username and password are required"
	MsgUserExists             = "User already exists"
	MsgInvalidCredentials     = "Invalid credentials"
	MsgTokenRequired          = "Access denied. No token provided"
	MsgTokenRevoked           = "Token revoked"
	MsgTokenInvalid           = "Token is not valid"
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type LoginResult struct {
	User  models.User
	Token string
}

// AuthService owns registration, login and session checks.
type AuthService struct {
	users  storage.UserRepository
	tokens *auth.TokenService
	cfg    Config
	log    *slog.Logger
}

func NewAuthService(users storage.UserRepository, tokens *auth.TokenService, cfg Config, log *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		cfg:    cfg,
		log:    log,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	const op = "service.AuthService.Register"

	log := s.log.With(slog.String("op", op))

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return models.User{}, errs.Validation(MsgRegisterFieldsRequired)
	}

	for _, res := range []auth.PolicyResult{
		auth.ValidateUsername(in.Username),
		auth.ValidateEmail(in.Email),
		auth.ValidatePassword(in.Password),
	} {
		if !res.Valid {
			return models.User{}, errs.Validation(res.Reason)
		}
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return models.User{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}
	if exists {
		return models.User{}, errs.Conflict(MsgUserExists)
	}

	passwordHash, err := auth.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return models.User{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}

	now := time.Now().UTC()
	user, err := createWithID[models.User](ctx, s.users, s.cfg.IDAttempts, func(id int64) models.User {
		return models.User{
			ID:           id,
			Username:     in.Username,
			Email:        in.Email,
			PasswordHash: passwordHash,
			Role:         models.RoleUser,
			Preferences:  []string{},
			Favourites:   []int64{},
			CreatedAt:    now,
		}
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return models.User{}, errs.Conflict(MsgUserExists)
	}
	if err != nil {
		return models.User{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}

	log.Info("user registered", slog.Int64("user_id", user.ID))

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	const op = "service.AuthService.Login"

	log := s.log.With(slog.String("op", op))

	if in.Username == "" || in.Password == "" {
		return LoginResult{}, errs.Validation(MsgLoginFieldsRequired)
	}

	if res := auth.ValidateUsername(in.Username); !res.Valid {
		return LoginResult{}, errs.Validation(res.Reason)
	}

	user, err := s.users.FindByUsername(ctx, in.Username)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeFailure).Inc()
		return LoginResult{}, errs.Unauthorized(MsgInvalidCredentials)
	}
	if err != nil {
		return LoginResult{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}

	if !auth.CheckPasswordHash(user.PasswordHash, in.Password) {
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeFailure).Inc()
		return LoginResult{}, errs.Unauthorized(MsgInvalidCredentials)
	}

	token, err := s.tokens.Issue(models.Principal{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, 0)
	if err != nil {
		return LoginResult{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}

	metrics.LoginAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.Info("user logged in", slog.Int64("user_id", user.ID))

	return LoginResult{User: user, Token: token}, nil
}

// Logout revokes token when one is given. It never fails.
func (s *AuthService) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	s.tokens.Revoke(ctx, token)
}

// Authenticate turns a raw token into the caller identity. A revoked token
// is reported as unauthorized, a forged or expired one as forbidden.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.Principal, error) {
	if token == "" {
		return models.Principal{}, errs.Unauthorized(MsgTokenRequired)
	}

	if s.tokens.IsRevoked(ctx, token) {
		metrics.RevokedTokenRejections.Inc()
		return models.Principal{}, errs.Unauthorized(MsgTokenRevoked)
	}

	principal, err := s.tokens.Parse(token)
	if err != nil {
		return models.Principal{}, errs.Forbidden(MsgTokenInvalid)
	}
	return principal, nil
}

// TokenTTL is the lifetime of tokens issued by Login.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}
