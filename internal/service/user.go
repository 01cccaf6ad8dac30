package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"museum_nav/internal/errs"
	"museum_nav/internal/models"
	"museum_nav/internal/storage"
)

const MsgUserNotFound = "User not found"

type UserService struct {
	users storage.UserRepository
}

func NewUserService(users storage.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Profile(ctx context.Context, userID int64) (models.User, error) {
	const op = "service.UserService.Profile"

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, errs.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return models.User{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}
	return user, nil
}

// UpdatePreferences replaces the interest keywords used by personalized
// routes. Blank keywords are dropped.
func (s *UserService) UpdatePreferences(ctx context.Context, userID int64, preferences []string, enabled bool) (models.User, error) {
	const op = "service.UserService.UpdatePreferences"

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return models.User{}, err
	}

	cleaned := make([]string, 0, len(preferences))
	for _, p := range preferences {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}

	user.Preferences = cleaned
	user.PersonalizationAvailable = enabled

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, errs.NotFound(MsgUserNotFound)
		}
		return models.User{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}
	return user, nil
}
