package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"museum_nav/internal/errs"
	"museum_nav/internal/geo"
	"museum_nav/internal/metrics"
	"museum_nav/internal/models"
	"museum_nav/internal/storage"
)

const (
	MsgRouteNotFound       = "Route not found"
	MsgDestinationNotFound = "Destination not found"
	MsgInvalidCoordinates  = "Invalid coordinates"
	MsgInvalidSpeed        = "Walking speed must be a positive number"
	MsgStopsRequired       = "addStops must be a non-empty array"
	MsgMissingPreferences  = "missing user preferences"
	MsgNoMatchingExhibits  = "No matching exhibits found"
)

type CalculateInput struct {
	UserID        int64
	DestinationID int64
	Start         geo.Point
}

type StopsUpdate struct {
	RouteID       int64   `json:"route_id"`
	Stops         []int64 `json:"stops"`
	EstimatedTime int     `json:"estimatedTime"`
	ArrivalTime   string  `json:"arrivalTime"`
}

// PersonalizedRoute is an ordered exhibit tour matched to the user's interests.
type PersonalizedRoute struct {
	UserID         int64            `json:"user_id"`
	Exhibits       []models.Exhibit `json:"exhibits"`
	Stops          []int64          `json:"stops"`
	EstimatedTime  int              `json:"estimatedTime"`
	IsPersonalized bool             `json:"isPersonalized"`
}

// RouteService computes walking routes and keeps them per user.
type RouteService struct {
	routes       storage.RouteRepository
	destinations storage.DestinationRepository
	exhibits     storage.ExhibitRepository
	users        storage.UserRepository
	cfg          Config
	log          *slog.Logger
	now          func() time.Time
}

func NewRouteService(st storage.Storage, cfg Config, log *slog.Logger) *RouteService {
	return &RouteService{
		routes:       st.Routes(),
		destinations: st.Destinations(),
		exhibits:     st.Exhibits(),
		users:        st.Users(),
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

// Calculate stores a straight-line route from in.Start to the destination and
// returns its summary. The full record is read through GetDetails.
func (s *RouteService) Calculate(ctx context.Context, in CalculateInput) (models.RouteSummary, error) {
	const op = "service.RouteService.Calculate"

	log := s.log.With(slog.String("op", op))

	if !in.Start.Valid() {
		return models.RouteSummary{}, errs.Validation(MsgInvalidCoordinates)
	}

	dest, err := s.destinations.FindByID(ctx, in.DestinationID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.RouteSummary{}, errs.NotFound(MsgDestinationNotFound)
	}
	if err != nil {
		return models.RouteSummary{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}
	if dest.Status == models.DestinationClosed {
		log.Warn("route calculated to closed destination", slog.Int64("destination_id", dest.ID))
	}

	distance := geo.DistanceBetween(in.Start, dest.Coordinates)
	seconds, err := geo.EstimatedDuration(distance, s.cfg.WalkingSpeedKmh)
	if err != nil {
		return models.RouteSummary{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}

	now := s.now()
	route, err := createWithID[models.Route](ctx, s.routes, s.cfg.IDAttempts, func(id int64) models.Route {
		return models.Route{
			ID:            id,
			UserID:        in.UserID,
			DestinationID: dest.ID,
			Start:         in.Start,
			End:           dest.Coordinates,
			Path:          geo.Path(in.Start, dest.Coordinates),
			Instructions:  geo.Instructions(distance),
			Stops:         []int64{},
			Distance:      distance,
			EstimatedTime: seconds,
			ArrivalTime:   geo.ArrivalTime(now, seconds),
			CreatedAt:     now.UTC(),
		}
	})
	if err != nil {
		return models.RouteSummary{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}

	metrics.RoutesCalculated.WithLabelValues("standard").Inc()
	log.Debug("route calculated",
		slog.Int64("route_id", route.ID),
		slog.Float64("distance", distance),
	)

	return models.RouteSummary{
		RouteID:         route.ID,
		UserID:          route.UserID,
		DestinationID:   route.DestinationID,
		CalculationTime: now.Format(time.RFC3339),
	}, nil
}

func (s *RouteService) find(ctx context.Context, op string, routeID int64) (models.Route, error) {
	route, err := s.routes.FindByID(ctx, routeID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Route{}, errs.NotFound(MsgRouteNotFound)
	}
	if err != nil {
		return models.Route{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}
	return route, nil
}

// GetDetails returns the stored route. With a walking speed override the
// duration and arrival time are recomputed from the stored distance.
func (s *RouteService) GetDetails(ctx context.Context, routeID int64, walkingSpeed *float64) (models.Route, error) {
	const op = "service.RouteService.GetDetails"

	route, err := s.find(ctx, op, routeID)
	if err != nil {
		return models.Route{}, err
	}

	if walkingSpeed == nil {
		return route, nil
	}

	seconds, err := geo.EstimatedDuration(route.Distance, *walkingSpeed)
	if err != nil {
		return models.Route{}, errs.Validation(MsgInvalidSpeed)
	}
	route.EstimatedTime = seconds
	route.ArrivalTime = geo.ArrivalTime(s.now(), seconds)

	return route, nil
}

// UpdateStops appends stops and pads the estimate by the configured penalty
// per stop. The path itself is left unchanged.
func (s *RouteService) UpdateStops(ctx context.Context, routeID int64, addStops []int64) (StopsUpdate, error) {
	const op = "service.RouteService.UpdateStops"

	if len(addStops) == 0 {
		return StopsUpdate{}, errs.Validation(MsgStopsRequired)
	}

	route, err := s.find(ctx, op, routeID)
	if err != nil {
		return StopsUpdate{}, err
	}

	penalty := int(s.cfg.StopPenalty / time.Second)
	route.Stops = append(slices.Clone(route.Stops), addStops...)
	route.EstimatedTime += len(addStops) * penalty
	route.ArrivalTime = geo.ArrivalTime(s.now(), route.EstimatedTime)

	if err := s.routes.Update(ctx, route); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return StopsUpdate{}, errs.NotFound(MsgRouteNotFound)
		}
		return StopsUpdate{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}

	return StopsUpdate{
		RouteID:       route.ID,
		Stops:         route.Stops,
		EstimatedTime: route.EstimatedTime,
		ArrivalTime:   route.ArrivalTime,
	}, nil
}

// Recalculate refreshes the arrival time of the stored route. Geometry and
// destination state are not re-read.
func (s *RouteService) Recalculate(ctx context.Context, routeID int64) (models.Route, error) {
	const op = "service.RouteService.Recalculate"

	route, err := s.find(ctx, op, routeID)
	if err != nil {
		return models.Route{}, err
	}

	route.ArrivalTime = geo.ArrivalTime(s.now(), route.EstimatedTime)
	return route, nil
}

// Owner returns the id of the user owning routeID.
func (s *RouteService) Owner(ctx context.Context, routeID int64) (int64, error) {
	const op = "service.RouteService.Owner"

	route, err := s.find(ctx, op, routeID)
	if err != nil {
		return 0, err
	}
	return route.UserID, nil
}

// Delete reports false when the route was already gone.
func (s *RouteService) Delete(ctx context.Context, routeID int64) (bool, error) {
	const op = "service.RouteService.Delete"

	deleted, err := s.routes.Delete(ctx, routeID)
	if err != nil {
		return false, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}
	return deleted, nil
}

func (s *RouteService) ListByUser(ctx context.Context, userID int64) ([]models.Route, error) {
	const op = "service.RouteService.ListByUser"

	routes, err := s.routes.ListByUser(ctx, userID)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}
	return routes, nil
}

// PersonalizedRoute picks exhibits whose categories contain one of the user's
// preference keywords, ignoring case.
func (s *RouteService) PersonalizedRoute(ctx context.Context, userID int64) (PersonalizedRoute, error) {
	const op = "service.RouteService.PersonalizedRoute"

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return PersonalizedRoute{}, errs.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return PersonalizedRoute{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}

	if !user.PersonalizationAvailable || len(user.Preferences) == 0 {
		return PersonalizedRoute{}, errs.Validation(MsgMissingPreferences)
	}

	all, err := s.exhibits.ListAll(ctx)
	if err != nil {
		return PersonalizedRoute{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}

	keywords := make([]string, 0, len(user.Preferences))
	for _, p := range user.Preferences {
		keywords = append(keywords, strings.ToLower(p))
	}

	matched := make([]models.Exhibit, 0, s.cfg.PersonalizedLimit)
	for _, e := range all {
		if len(matched) == s.cfg.PersonalizedLimit {
			break
		}
		if matchesAny(e.Category, keywords) {
			matched = append(matched, e)
		}
	}

	if len(matched) == 0 {
		return PersonalizedRoute{}, errs.NotFound(MsgNoMatchingExhibits)
	}

	stops := make([]int64, 0, len(matched))
	for _, e := range matched {
		stops = append(stops, e.ID)
	}

	metrics.RoutesCalculated.WithLabelValues("personalized").Inc()

	return PersonalizedRoute{
		UserID:         userID,
		Exhibits:       matched,
		Stops:          stops,
		EstimatedTime:  len(matched) * s.cfg.MinutesPerExhibit * 60,
		IsPersonalized: true,
	}, nil
}

func matchesAny(categories, keywords []string) bool {
	for _, c := range categories {
		c = strings.ToLower(c)
		for _, k := range keywords {
			if strings.Contains(c, k) {
				return true
			}
		}
	}
	return false
}
