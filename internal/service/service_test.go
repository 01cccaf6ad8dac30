package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"museum_nav/internal/auth"
	"museum_nav/internal/errs"
	"museum_nav/internal/models"
	"museum_nav/internal/storage"
)

func testConfig() Config {
	return Config{
		BcryptCost:          bcrypt.MinCost,
		IDAttempts:          3,
		WalkingSpeedKmh:     5,
		DeviationThresholdM: 50,
		StopPenalty:         120 * time.Second,
		MinutesPerExhibit:   10,
		PersonalizedLimit:   5,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store  *storage.MemoryStorage
	tokens *auth.TokenService
	svc    *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryStorage()
	tokens := auth.NewTokenService([]byte("test-secret"), time.Hour, auth.NewMemoryRevocationStore(), discardLogger())

	return &fixture{
		store:  store,
		tokens: tokens,
		svc:    New(store, tokens, testConfig(), discardLogger()),
	}
}

// seedUser stores a user directly, skipping password hashing.
func (f *fixture) seedUser(t *testing.T, id int64, username string) models.User {
	t.Helper()

	u := models.User{
		ID:        id,
		Username:  username,
		Email:     username + "@example.com",
		Role:      models.RoleUser,
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func requireKind(t *testing.T, err error, kind errs.Kind, message string) {
	t.Helper()

	require.Error(t, err)
	appErr := errs.As(err)
	require.Equal(t, kind, appErr.Kind, "unexpected error: %v", err)
	if message != "" {
		require.Equal(t, message, appErr.Message)
	}
}
