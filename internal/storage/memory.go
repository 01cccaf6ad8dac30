package storage

import (
	"context"
	"maps"
	"slices"
	"sync"

	"museum_nav/internal/models"
)

// table is an id-keyed collection guarded by a RWMutex. Values are cloned on
// the way in and out so callers never share slices or maps with the store.
type table[T Entity] struct {
	mu    sync.RWMutex
	rows  map[int64]T
	clone func(T) T
}

func newTable[T Entity](clone func(T) T) *table[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &table[T]{
		rows:  make(map[int64]T),
		clone: clone,
	}
}

func (t *table[T]) FindByID(_ context.Context, id int64) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return t.clone(row), nil
}

func (t *table[T]) Create(_ context.Context, entity T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.insertLocked(entity)
}

func (t *table[T]) insertLocked(entity T) error {
	if _, ok := t.rows[entity.EntityID()]; ok {
		return ErrDuplicateID
	}
	t.rows[entity.EntityID()] = t.clone(entity)
	return nil
}

func (t *table[T]) Update(_ context.Context, entity T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[entity.EntityID()]; !ok {
		return ErrNotFound
	}
	t.rows[entity.EntityID()] = t.clone(entity)
	return nil
}

func (t *table[T]) Delete(_ context.Context, id int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[id]; !ok {
		return false, nil
	}
	delete(t.rows, id)
	return true, nil
}

func (t *table[T]) NextID(_ context.Context) (int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var maxID int64
	for id := range t.rows {
		maxID = max(maxID, id)
	}
	return maxID + 1, nil
}

// filter returns matching rows ordered by id.
func (t *table[T]) filter(match func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := slices.Sorted(maps.Keys(t.rows))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if row := t.rows[id]; match(row) {
			out = append(out, t.clone(row))
		}
	}
	return out
}

type memoryUsers struct {
	*table[models.User]
}

func cloneUser(u models.User) models.User {
	u.Preferences = slices.Clone(u.Preferences)
	u.Favourites = slices.Clone(u.Favourites)
	return u
}

func (r *memoryUsers) Create(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rows {
		if existing.Username == user.Username || existing.Email == user.Email {
			return ErrAlreadyExists
		}
	}
	return r.insertLocked(user)
}

func (r *memoryUsers) FindByUsername(_ context.Context, username string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.rows {
		if u.Username == username {
			return r.clone(u), nil
		}
	}
	return models.User{}, ErrNotFound
}

func (r *memoryUsers) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.rows {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryUsers) AddFavorite(_ context.Context, userID, exhibitID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.rows[userID]
	if !ok {
		return ErrNotFound
	}
	if u.HasFavourite(exhibitID) {
		return nil
	}
	u.Favourites = append(slices.Clone(u.Favourites), exhibitID)
	r.rows[userID] = u
	return nil
}

func (r *memoryUsers) RemoveFavorite(_ context.Context, userID, exhibitID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.rows[userID]
	if !ok {
		return ErrNotFound
	}
	u.Favourites = slices.DeleteFunc(slices.Clone(u.Favourites), func(id int64) bool {
		return id == exhibitID
	})
	r.rows[userID] = u
	return nil
}

type memoryRoutes struct {
	*table[models.Route]
}

func cloneRoute(r models.Route) models.Route {
	r.Path = slices.Clone(r.Path)
	r.Instructions = slices.Clone(r.Instructions)
	r.Stops = slices.Clone(r.Stops)
	return r
}

func (r *memoryRoutes) ListByUser(_ context.Context, userID int64) ([]models.Route, error) {
	return r.filter(func(route models.Route) bool { return route.UserID == userID }), nil
}

type memoryNotifications struct {
	*table[models.Notification]
}

func (r *memoryNotifications) ListByUser(_ context.Context, userID int64) ([]models.Notification, error) {
	return r.filter(func(n models.Notification) bool { return n.UserID == userID }), nil
}

type memoryDestinations struct {
	*table[models.Destination]
}

type memoryExhibits struct {
	*table[models.Exhibit]
}

func cloneExhibit(e models.Exhibit) models.Exhibit {
	e.Category = slices.Clone(e.Category)
	e.Ratings = maps.Clone(e.Ratings)
	return e
}

func (r *memoryExhibits) ListAll(_ context.Context) ([]models.Exhibit, error) {
	return r.filter(func(models.Exhibit) bool { return true }), nil
}

func (r *memoryExhibits) Rate(_ context.Context, exhibitID, userID int64, rating int) (models.Exhibit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rows[exhibitID]
	if !ok {
		return models.Exhibit{}, ErrNotFound
	}

	e = cloneExhibit(e)
	if e.Ratings == nil {
		e.Ratings = make(map[int64]int)
	}
	e.Ratings[userID] = rating

	var sum int
	for _, v := range e.Ratings {
		sum += v
	}
	e.RatingCount = len(e.Ratings)
	e.AverageRating = float64(sum) / float64(e.RatingCount)

	r.rows[exhibitID] = e
	return cloneExhibit(e), nil
}

// MemoryStorage backs mock mode: every collection lives in process memory
// and is lost on restart.
type MemoryStorage struct {
	users         *memoryUsers
	routes        *memoryRoutes
	notifications *memoryNotifications
	destinations  *memoryDestinations
	exhibits      *memoryExhibits
}

// NewMemoryStorage returns an empty store with the demo destinations and
// exhibits loaded.
func NewMemoryStorage() *MemoryStorage {
	s := &MemoryStorage{
		users:         &memoryUsers{newTable(cloneUser)},
		routes:        &memoryRoutes{newTable(cloneRoute)},
		notifications: &memoryNotifications{newTable[models.Notification](nil)},
		destinations:  &memoryDestinations{newTable[models.Destination](nil)},
		exhibits:      &memoryExhibits{newTable(cloneExhibit)},
	}

	for _, d := range seedDestinations() {
		s.destinations.rows[d.ID] = d
	}
	for _, e := range seedExhibits() {
		s.exhibits.rows[e.ID] = e
	}

	return s
}

func (s *MemoryStorage) Users() UserRepository                 { return s.users }
func (s *MemoryStorage) Routes() RouteRepository               { return s.routes }
func (s *MemoryStorage) Notifications() NotificationRepository { return s.notifications }
func (s *MemoryStorage) Destinations() DestinationRepository   { return s.destinations }
func (s *MemoryStorage) Exhibits() ExhibitRepository           { return s.exhibits }

func (s *MemoryStorage) Close() error { return nil }
