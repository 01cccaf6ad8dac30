package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"museum_nav/internal/errs"
	"museum_nav/internal/metrics"
	"museum_nav/internal/models"
	"museum_nav/internal/storage"
)

const (
	MsgUnknownOperation = "Unknown operation type"
	MsgRatingRequired   = "Rating is required"
	MsgRatingRange      = "Rating must be between 1 and 5"
	MsgExhibitNotFound  = "Exhibit not found"
)

type syncHandler func(ctx context.Context, userID int64, op models.SyncOperation) error

// SyncService replays operations queued by a client while it was offline.
type SyncService struct {
	users    storage.UserRepository
	exhibits storage.ExhibitRepository
	log      *slog.Logger
	handlers map[string]syncHandler
}

func NewSyncService(users storage.UserRepository, exhibits storage.ExhibitRepository, log *slog.Logger) *SyncService {
	s := &SyncService{
		users:    users,
		exhibits: exhibits,
		log:      log,
	}
	s.handlers = map[string]syncHandler{
		models.SyncRating:         s.rate,
		models.SyncAddFavorite:    s.addFavorite,
		models.SyncRemoveFavorite: s.removeFavorite,
	}
	return s
}

// PendingOperation is one queued operation as received. Err is set when the
// client payload could not be decoded; the item then fails with Err's message.
type PendingOperation struct {
	Operation models.SyncOperation
	Err       error
}

// Synchronize applies ops one at a time in order. A failing operation is
// recorded with its reason and the batch carries on; nothing is rolled back.
func (s *SyncService) Synchronize(ctx context.Context, userID int64, ops []models.SyncOperation) models.SyncResult {
	pending := make([]PendingOperation, 0, len(ops))
	for _, operation := range ops {
		pending = append(pending, PendingOperation{Operation: operation})
	}
	return s.SynchronizePending(ctx, userID, pending)
}

// SynchronizePending is Synchronize for items that may have failed decoding.
func (s *SyncService) SynchronizePending(ctx context.Context, userID int64, items []PendingOperation) models.SyncResult {
	const op = "service.SyncService.Synchronize"

	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	result := models.SyncResult{
		Conflicts: []models.SyncOperation{},
		Details: models.SyncDetails{
			Successful: []models.SyncOperation{},
			Failed:     []models.FailedSyncOperation{},
		},
	}
	if len(items) == 0 {
		return result
	}

	for _, item := range items {
		operation := item.Operation
		label := operation.OperationType
		if _, known := s.handlers[label]; !known {
			label = "unknown"
		}

		err := item.Err
		if err == nil {
			err = s.apply(ctx, userID, operation)
		}
		if err != nil {
			reason := errs.As(err).Message
			result.Details.Failed = append(result.Details.Failed, models.FailedSyncOperation{
				Operation: operation,
				Reason:    reason,
			})
			metrics.SyncOperations.WithLabelValues(label, metrics.OutcomeFailure).Inc()
			log.Warn("sync operation failed",
				slog.String("operation_type", operation.OperationType),
				slog.Int64("exhibit_id", operation.ExhibitID),
				slog.Any("error", err),
			)
			continue
		}

		result.Details.Successful = append(result.Details.Successful, operation)
		metrics.SyncOperations.WithLabelValues(label, metrics.OutcomeSuccess).Inc()
	}

	result.Successful = len(result.Details.Successful)
	result.Failed = len(result.Details.Failed)

	return result
}

func (s *SyncService) apply(ctx context.Context, userID int64, op models.SyncOperation) error {
	handler, ok := s.handlers[op.OperationType]
	if !ok {
		return errs.Validation(MsgUnknownOperation)
	}
	return handler(ctx, userID, op)
}

func (s *SyncService) rate(ctx context.Context, userID int64, op models.SyncOperation) error {
	const fn = "service.SyncService.rate"

	if op.Rating == nil {
		return errs.Validation(MsgRatingRequired)
	}
	if *op.Rating < 1 || *op.Rating > 5 {
		return errs.Validation(MsgRatingRange)
	}

	_, err := s.exhibits.Rate(ctx, op.ExhibitID, userID, *op.Rating)
	if errors.Is(err, storage.ErrNotFound) {
		return errs.NotFound(MsgExhibitNotFound)
	}
	if err != nil {
		return errs.Internal(fmt.Errorf("%s: %w", fn, err))
	}
	return nil
}

func (s *SyncService) addFavorite(ctx context.Context, userID int64, op models.SyncOperation) error {
	const fn = "service.SyncService.addFavorite"

	if _, err := s.exhibits.FindByID(ctx, op.ExhibitID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errs.NotFound(MsgExhibitNotFound)
		}
		return errs.Internal(fmt.Errorf("%s: %w", fn, err))
	}

	err := s.users.AddFavorite(ctx, userID, op.ExhibitID)
	if errors.Is(err, storage.ErrNotFound) {
		return errs.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return errs.Internal(fmt.Errorf("%s: %w", fn, err))
	}
	return nil
}

func (s *SyncService) removeFavorite(ctx context.Context, userID int64, op models.SyncOperation) error {
	const fn = "service.SyncService.removeFavorite"

	err := s.users.RemoveFavorite(ctx, userID, op.ExhibitID)
	if errors.Is(err, storage.ErrNotFound) {
		return errs.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return errs.Internal(fmt.Errorf("%s: %w", fn, err))
	}
	return nil
}
