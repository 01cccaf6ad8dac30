package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"

	"museum_nav/internal/geo"
	"museum_nav/internal/models"
	"museum_nav/internal/storage/migrations"
)

const (
	usersTable         = "users"
	routesTable        = "routes"
	notificationsTable = "notifications"

	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type PostgresStorage struct {
	db *sql.DB

	users         *postgresUsers
	routes        *postgresRoutes
	notifications *postgresNotifications
	destinations  *postgresDestinations
	exhibits      *postgresExhibits
}

// NewPostgresStorage connects to dbURL and applies pending migrations.
func NewPostgresStorage(ctx context.Context, dbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return newPostgresStorage(db), nil
}

func newPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{
		db:            db,
		users:         &postgresUsers{db: db},
		routes:        &postgresRoutes{db: db},
		notifications: &postgresNotifications{db: db},
		destinations:  &postgresDestinations{db: db},
		exhibits:      &postgresExhibits{db: db},
	}
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (p *PostgresStorage) Users() UserRepository                 { return p.users }
func (p *PostgresStorage) Routes() RouteRepository               { return p.routes }
func (p *PostgresStorage) Notifications() NotificationRepository { return p.notifications }
func (p *PostgresStorage) Destinations() DestinationRepository   { return p.destinations }
func (p *PostgresStorage) Exhibits() ExhibitRepository           { return p.exhibits }

func (p *PostgresStorage) Close() error {
	return p.db.Close()
}

// mapWriteError translates constraint violations into storage sentinels.
// A unique violation on a primary key is an id race; on any other unique
// constraint it is a genuine duplicate.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case uniqueViolation:
		if strings.HasSuffix(pgErr.ConstraintName, "_pkey") {
			return ErrDuplicateID
		}
		return ErrAlreadyExists
	case foreignKeyViolation:
		return ErrNotFound
	}
	return err
}

func mapReadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nextID(ctx context.Context, db *sql.DB, table string) (int64, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(id), 0) + 1 FROM %s", table)

	var id int64
	if err := db.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func deleteByID(ctx context.Context, db *sql.DB, table string, id int64) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", table)

	res, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func textArray(values []string) pgtype.TextArray {
	if values == nil {
		values = []string{}
	}
	var arr pgtype.TextArray
	_ = arr.Set(values)
	return arr
}

func int8Array(values []int64) pgtype.Int8Array {
	if values == nil {
		values = []int64{}
	}
	var arr pgtype.Int8Array
	_ = arr.Set(values)
	return arr
}

type postgresUsers struct {
	db *sql.DB
}

const selectUser = `SELECT u.id, u.username, u.email, u.password_hash, u.role, u.preferences,
       u.personalization_available, u.created_at,
       ARRAY(SELECT f.exhibit_id FROM user_favourites f WHERE f.user_id = u.id ORDER BY f.exhibit_id)
  FROM users u`

func scanUser(row rowScanner) (models.User, error) {
	var (
		u          models.User
		prefs      pgtype.TextArray
		favourites pgtype.Int8Array
	)

	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &prefs,
		&u.PersonalizationAvailable, &u.CreatedAt, &favourites)
	if err != nil {
		return models.User{}, err
	}

	if err := prefs.AssignTo(&u.Preferences); err != nil {
		return models.User{}, err
	}
	if err := favourites.AssignTo(&u.Favourites); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (r *postgresUsers) FindByID(ctx context.Context, id int64) (models.User, error) {
	const op = "storage.postgresUsers.FindByID"

	u, err := scanUser(r.db.QueryRowContext(ctx, selectUser+" WHERE u.id = $1", id))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapReadError(err))
	}
	return u, nil
}

func (r *postgresUsers) FindByUsername(ctx context.Context, username string) (models.User, error) {
	const op = "storage.postgresUsers.FindByUsername"

	u, err := scanUser(r.db.QueryRowContext(ctx, selectUser+" WHERE u.username = $1", username))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapReadError(err))
	}
	return u, nil
}

func (r *postgresUsers) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const op = "storage.postgresUsers.ExistsByUsernameOrEmail"

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE username = $1 OR email = $2)", usersTable)

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

func (r *postgresUsers) Create(ctx context.Context, u models.User) error {
	const op = "storage.postgresUsers.Create"

	query := fmt.Sprintf(`INSERT INTO %s (id, username, email, password_hash, role, preferences, personalization_available, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, usersTable)

	_, err := r.db.ExecContext(ctx, query, u.ID, u.Username, u.Email, u.PasswordHash, u.Role,
		textArray(u.Preferences), u.PersonalizationAvailable, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapWriteError(err))
	}
	return nil
}

// Update rewrites the profile columns. Favourites are managed through
// AddFavorite and RemoveFavorite only.
func (r *postgresUsers) Update(ctx context.Context, u models.User) error {
	const op = "storage.postgresUsers.Update"

	query := fmt.Sprintf(`UPDATE %s SET username = $2, email = $3, password_hash = $4, role = $5,
	preferences = $6, personalization_available = $7 WHERE id = $1`, usersTable)

	res, err := r.db.ExecContext(ctx, query, u.ID, u.Username, u.Email, u.PasswordHash, u.Role,
		textArray(u.Preferences), u.PersonalizationAvailable)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapWriteError(err))
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *postgresUsers) Delete(ctx context.Context, id int64) (bool, error) {
	const op = "storage.postgresUsers.Delete"

	deleted, err := deleteByID(ctx, r.db, usersTable, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return deleted, nil
}

func (r *postgresUsers) NextID(ctx context.Context) (int64, error) {
	const op = "storage.postgresUsers.NextID"

	id, err := nextID(ctx, r.db, usersTable)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (r *postgresUsers) AddFavorite(ctx context.Context, userID, exhibitID int64) error {
	const op = "storage.postgresUsers.AddFavorite"

	query := `INSERT INTO user_favourites (user_id, exhibit_id) VALUES ($1, $2)
	ON CONFLICT (user_id, exhibit_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID, exhibitID); err != nil {
		return fmt.Errorf("%s: %w", op, mapWriteError(err))
	}
	return nil
}

func (r *postgresUsers) RemoveFavorite(ctx context.Context, userID, exhibitID int64) error {
	const op = "storage.postgresUsers.RemoveFavorite"

	query := "DELETE FROM user_favourites WHERE user_id = $1 AND exhibit_id = $2"

	if _, err := r.db.ExecContext(ctx, query, userID, exhibitID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type postgresRoutes struct {
	db *sql.DB
}

const selectRoute = `SELECT id, user_id, destination_id, start_lat, start_lng, end_lat, end_lng, path,
       instructions, stops, distance, estimated_time, arrival_time, is_personalized, created_at
  FROM routes`

func scanRoute(row rowScanner) (models.Route, error) {
	var (
		route        models.Route
		path         []byte
		instructions pgtype.TextArray
		stops        pgtype.Int8Array
	)

	err := row.Scan(&route.ID, &route.UserID, &route.DestinationID,
		&route.Start.Lat, &route.Start.Lng, &route.End.Lat, &route.End.Lng,
		&path, &instructions, &stops, &route.Distance, &route.EstimatedTime,
		&route.ArrivalTime, &route.IsPersonalized, &route.CreatedAt)
	if err != nil {
		return models.Route{}, err
	}

	if err := json.Unmarshal(path, &route.Path); err != nil {
		return models.Route{}, err
	}
	if err := instructions.AssignTo(&route.Instructions); err != nil {
		return models.Route{}, err
	}
	if err := stops.AssignTo(&route.Stops); err != nil {
		return models.Route{}, err
	}
	return route, nil
}

func encodePath(path []geo.Point) (string, error) {
	if path == nil {
		path = []geo.Point{}
	}
	b, err := json.Marshal(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *postgresRoutes) FindByID(ctx context.Context, id int64) (models.Route, error) {
	const op = "storage.postgresRoutes.FindByID"

	route, err := scanRoute(r.db.QueryRowContext(ctx, selectRoute+" WHERE id = $1", id))
	if err != nil {
		return models.Route{}, fmt.Errorf("%s: %w", op, mapReadError(err))
	}
	return route, nil
}

func (r *postgresRoutes) ListByUser(ctx context.Context, userID int64) ([]models.Route, error) {
	const op = "storage.postgresRoutes.ListByUser"

	rows, err := r.db.QueryContext(ctx, selectRoute+" WHERE user_id = $1 ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	routes := []models.Route{}
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}
	return routes, nil
}

func (r *postgresRoutes) Create(ctx context.Context, route models.Route) error {
	const op = "storage.postgresRoutes.Create"

	path, err := encodePath(route.Path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, destination_id, start_lat, start_lng, end_lat, end_lng,
	path, instructions, stops, distance, estimated_time, arrival_time, is_personalized, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`, routesTable)

	_, err = r.db.ExecContext(ctx, query, route.ID, route.UserID, route.DestinationID,
		route.Start.Lat, route.Start.Lng, route.End.Lat, route.End.Lng,
		path, textArray(route.Instructions), int8Array(route.Stops), route.Distance,
		route.EstimatedTime, route.ArrivalTime, route.IsPersonalized, route.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapWriteError(err))
	}
	return nil
}

func (r *postgresRoutes) Update(ctx context.Context, route models.Route) error {
	const op = "storage.postgresRoutes.Update"

	path, err := encodePath(route.Path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := fmt.Sprintf(`UPDATE %s SET destination_id = $2, start_lat = $3, start_lng = $4, end_lat = $5,
	end_lng = $6, path = $7, instructions = $8, stops = $9, distance = $10, estimated_time = $11,
	arrival_time = $12, is_personalized = $13 WHERE id = $1`, routesTable)

	res, err := r.db.ExecContext(ctx, query, route.ID, route.DestinationID,
		route.Start.Lat, route.Start.Lng, route.End.Lat, route.End.Lng,
		path, textArray(route.Instructions), int8Array(route.Stops), route.Distance,
		route.EstimatedTime, route.ArrivalTime, route.IsPersonalized)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapWriteError(err))
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *postgresRoutes) Delete(ctx context.Context, id int64) (bool, error) {
	const op = "storage.postgresRoutes.Delete"

	deleted, err := deleteByID(ctx, r.db, routesTable, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return deleted, nil
}

func (r *postgresRoutes) NextID(ctx context.Context) (int64, error) {
	const op = "storage.postgresRoutes.NextID"

	id, err := nextID(ctx, r.db, routesTable)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

type postgresNotifications struct {
	db *sql.DB
}

const selectNotification = `SELECT id, user_id, route_id, type, message, read, created_at FROM notifications`

func scanNotification(row rowScanner) (models.Notification, error) {
	var n models.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.RouteID, &n.Type, &n.Message, &n.Read, &n.CreatedAt)
	return n, err
}

func (r *postgresNotifications) FindByID(ctx context.Context, id int64) (models.Notification, error) {
	const op = "storage.postgresNotifications.FindByID"

	n, err := scanNotification(r.db.QueryRowContext(ctx, selectNotification+" WHERE id = $1", id))
	if err != nil {
		return models.Notification{}, fmt.Errorf("%s: %w", op, mapReadError(err))
	}
	return n, nil
}

func (r *postgresNotifications) ListByUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	const op = "storage.postgresNotifications.ListByUser"

	rows, err := r.db.QueryContext(ctx, selectNotification+" WHERE user_id = $1 ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}
	return notifications, nil
}

func (r *postgresNotifications) Create(ctx context.Context, n models.Notification) error {
	const op = "storage.postgresNotifications.Create"

	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, route_id, type, message, read, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`, notificationsTable)

	_, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, n.RouteID, n.Type, n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapWriteError(err))
	}
	return nil
}

func (r *postgresNotifications) Update(ctx context.Context, n models.Notification) error {
	const op = "storage.postgresNotifications.Update"

	query := fmt.Sprintf("UPDATE %s SET type = $2, message = $3, read = $4 WHERE id = $1", notificationsTable)

	res, err := r.db.ExecContext(ctx, query, n.ID, n.Type, n.Message, n.Read)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *postgresNotifications) Delete(ctx context.Context, id int64) (bool, error) {
	const op = "storage.postgresNotifications.Delete"

	deleted, err := deleteByID(ctx, r.db, notificationsTable, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return deleted, nil
}

func (r *postgresNotifications) NextID(ctx context.Context) (int64, error) {
	const op = "storage.postgresNotifications.NextID"

	id, err := nextID(ctx, r.db, notificationsTable)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

type postgresDestinations struct {
	db *sql.DB
}

func (r *postgresDestinations) FindByID(ctx context.Context, id int64) (models.Destination, error) {
	const op = "storage.postgresDestinations.FindByID"

	query := "SELECT id, name, lat, lng, status FROM destinations WHERE id = $1"

	var d models.Destination
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&d.ID, &d.Name, &d.Coordinates.Lat, &d.Coordinates.Lng, &d.Status)
	if err != nil {
		return models.Destination{}, fmt.Errorf("%s: %w", op, mapReadError(err))
	}
	return d, nil
}

type postgresExhibits struct {
	db *sql.DB
}

const selectExhibit = `SELECT e.id, e.name, e.category, e.lat, e.lng,
       COALESCE(AVG(r.rating), 0)::float8, COUNT(r.rating)
  FROM exhibits e
  LEFT JOIN exhibit_ratings r ON r.exhibit_id = e.id`

func scanExhibit(row rowScanner) (models.Exhibit, error) {
	var (
		e        models.Exhibit
		category pgtype.TextArray
	)

	err := row.Scan(&e.ID, &e.Name, &category, &e.Coordinates.Lat, &e.Coordinates.Lng,
		&e.AverageRating, &e.RatingCount)
	if err != nil {
		return models.Exhibit{}, err
	}
	if err := category.AssignTo(&e.Category); err != nil {
		return models.Exhibit{}, err
	}
	return e, nil
}

func (r *postgresExhibits) FindByID(ctx context.Context, id int64) (models.Exhibit, error) {
	const op = "storage.postgresExhibits.FindByID"

	e, err := scanExhibit(r.db.QueryRowContext(ctx, selectExhibit+" WHERE e.id = $1 GROUP BY e.id", id))
	if err != nil {
		return models.Exhibit{}, fmt.Errorf("%s: %w", op, mapReadError(err))
	}
	return e, nil
}

func (r *postgresExhibits) ListAll(ctx context.Context) ([]models.Exhibit, error) {
	const op = "storage.postgresExhibits.ListAll"

	rows, err := r.db.QueryContext(ctx, selectExhibit+" GROUP BY e.id ORDER BY e.id")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	exhibits := []models.Exhibit{}
	for rows.Next() {
		e, err := scanExhibit(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		exhibits = append(exhibits, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}
	return exhibits, nil
}

func (r *postgresExhibits) Rate(ctx context.Context, exhibitID, userID int64, rating int) (models.Exhibit, error) {
	const op = "storage.postgresExhibits.Rate"

	query := `INSERT INTO exhibit_ratings (exhibit_id, user_id, rating) VALUES ($1, $2, $3)
	ON CONFLICT (exhibit_id, user_id) DO UPDATE SET rating = EXCLUDED.rating`

	if _, err := r.db.ExecContext(ctx, query, exhibitID, userID, rating); err != nil {
		return models.Exhibit{}, fmt.Errorf("%s: %w", op, mapWriteError(err))
	}

	e, err := r.FindByID(ctx, exhibitID)
	if err != nil {
		return models.Exhibit{}, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}
