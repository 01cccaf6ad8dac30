package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"museum_nav/internal/errs"
	"museum_nav/internal/geo"
	"museum_nav/internal/metrics"
	"museum_nav/internal/models"
	"museum_nav/internal/storage"
)

const (
	MsgOnTrack      = "You are on track"
	MsgAccessDenied = "Access denied"
)

type NotifyInput struct {
	UserID  int64
	RouteID int64
	Current geo.Point
}

type NotifyResult struct {
	NotificationID int64  `json:"notificationId"`
	Type           string `json:"type"`
	Message        string `json:"message"`
}

// NotificationService checks a live position against a stored route.
type NotificationService struct {
	routes        storage.RouteRepository
	notifications storage.NotificationRepository
	cfg           Config
	log           *slog.Logger
}

func NewNotificationService(
	routes storage.RouteRepository,
	notifications storage.NotificationRepository,
	cfg Config,
	log *slog.Logger,
) *NotificationService {
	return &NotificationService{
		routes:        routes,
		notifications: notifications,
		cfg:           cfg,
		log:           log,
	}
}

// Notify runs one deviation check and stores its outcome. There is no retry;
// clients poll at their own cadence.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (NotifyResult, error) {
	const op = "service.NotificationService.Notify"

	log := s.log.With(slog.String("op", op))

	if !in.Current.Valid() {
		return NotifyResult{}, errs.Validation(MsgInvalidCoordinates)
	}

	route, err := s.routes.FindByID(ctx, in.RouteID)
	if errors.Is(err, storage.ErrNotFound) {
		return NotifyResult{}, errs.NotFound(MsgRouteNotFound)
	}
	if err != nil {
		return NotifyResult{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}
	if route.UserID != in.UserID {
		return NotifyResult{}, errs.Forbidden(MsgAccessDenied)
	}

	kind, message := models.NotificationInfo, MsgOnTrack
	if geo.IsDeviated(in.Current, route.Path, s.cfg.DeviationThresholdM) {
		kind = models.NotificationRouteDeviation
		message = fmt.Sprintf("You have deviated more than %.0f meters from your route", s.cfg.DeviationThresholdM)
		metrics.DeviationChecks.WithLabelValues("deviated").Inc()
		log.Info("route deviation detected",
			slog.Int64("route_id", route.ID),
			slog.Int64("user_id", in.UserID),
		)
	} else {
		metrics.DeviationChecks.WithLabelValues("on_track").Inc()
	}

	now := time.Now().UTC()
	n, err := createWithID[models.Notification](ctx, s.notifications, s.cfg.IDAttempts, func(id int64) models.Notification {
		return models.Notification{
			ID:        id,
			UserID:    in.UserID,
			RouteID:   route.ID,
			Type:      kind,
			Message:   message,
			CreatedAt: now,
		}
	})
	if err != nil {
		return NotifyResult{}, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}

	return NotifyResult{
		NotificationID: n.ID,
		Type:           n.Type,
		Message:        n.Message,
	}, nil
}

func (s *NotificationService) List(ctx context.Context, userID int64) ([]models.Notification, error) {
	const op = "service.NotificationService.List"

	list, err := s.notifications.ListByUser(ctx, userID)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("%s: %w", op, err))
	}
	return list, nil
}
