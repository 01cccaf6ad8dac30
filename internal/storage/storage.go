package storage

import (
	"context"
	"errors"

	"museum_nav/internal/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	// ErrDuplicateID means the primary key was taken between NextID and Create.
	ErrDuplicateID = errors.New("duplicate id")
)

type Entity interface {
	EntityID() int64
}

// Repository is the persistence contract shared by every id-keyed record.
// Both the in-memory and the PostgreSQL storage implement it.
type Repository[T Entity] interface {
	FindByID(ctx context.Context, id int64) (T, error)
	Create(ctx context.Context, entity T) error
	Update(ctx context.Context, entity T) error
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, id int64) (bool, error)
	// NextID proposes an unused id. Concurrent callers may get the same
	// value; Create then fails with ErrDuplicateID.
	NextID(ctx context.Context) (int64, error)
}

type UserRepository interface {
	Repository[models.User]
	FindByUsername(ctx context.Context, username string) (models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	AddFavorite(ctx context.Context, userID, exhibitID int64) error
	RemoveFavorite(ctx context.Context, userID, exhibitID int64) error
}

type RouteRepository interface {
	Repository[models.Route]
	ListByUser(ctx context.Context, userID int64) ([]models.Route, error)
}

type NotificationRepository interface {
	Repository[models.Notification]
	ListByUser(ctx context.Context, userID int64) ([]models.Notification, error)
}

type DestinationRepository interface {
	FindByID(ctx context.Context, id int64) (models.Destination, error)
}

type ExhibitRepository interface {
	FindByID(ctx context.Context, id int64) (models.Exhibit, error)
	ListAll(ctx context.Context) ([]models.Exhibit, error)
	// Rate stores userID's rating, replacing an earlier one, and returns the
	// exhibit with refreshed aggregates.
	Rate(ctx context.Context, exhibitID, userID int64, rating int) (models.Exhibit, error)
}

type Storage interface {
	Users() UserRepository
	Routes() RouteRepository
	Notifications() NotificationRepository
	Destinations() DestinationRepository
	Exhibits() ExhibitRepository

	Close() error
}
