package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"museum_nav/internal/auth"
	"museum_nav/internal/storage"
)

// Config carries the tunables the services read from configuration.
type Config struct {
	BcryptCost int
	// IDAttempts bounds how often a colliding id is re-allocated before the
	// time-based fallback id is used.
	IDAttempts int

	WalkingSpeedKmh     float64
	DeviationThresholdM float64
	StopPenalty         time.Duration
	MinutesPerExhibit   int
	PersonalizedLimit   int
}

type Services struct {
	Auth          *AuthService
	Users         *UserService
	Routes        *RouteService
	Notifications *NotificationService
	Sync          *SyncService
	Exhibits      *ExhibitService
}

func New(st storage.Storage, tokens *auth.TokenService, cfg Config, log *slog.Logger) *Services {
	return &Services{
		Auth:          NewAuthService(st.Users(), tokens, cfg, log),
		Users:         NewUserService(st.Users()),
		Routes:        NewRouteService(st, cfg, log),
		Notifications: NewNotificationService(st.Routes(), st.Notifications(), cfg, log),
		Sync:          NewSyncService(st.Users(), st.Exhibits(), log),
		Exhibits:      NewExhibitService(st.Exhibits(), st.Users()),
	}
}

// createWithID allocates an id through NextID and stores the entity built
// for it. A concurrent writer can take the same id between the two calls, so
// ErrDuplicateID is retried up to attempts times before falling back to an
// id derived from the clock and a random suffix.
func createWithID[T storage.Entity](
	ctx context.Context,
	repo storage.Repository[T],
	attempts int,
	build func(id int64) T,
) (T, error) {
	const op = "service.createWithID"

	var zero T
	for range max(attempts, 1) {
		id, err := repo.NextID(ctx)
		if err != nil {
			return zero, fmt.Errorf("%s: %w", op, err)
		}

		entity := build(id)
		err = repo.Create(ctx, entity)
		if err == nil {
			return entity, nil
		}
		if !errors.Is(err, storage.ErrDuplicateID) {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
	}

	entity := build(fallbackID())
	if err := repo.Create(ctx, entity); err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return entity, nil
}

func fallbackID() int64 {
	return time.Now().UnixMilli()*1000 + rand.Int64N(1000)
}
