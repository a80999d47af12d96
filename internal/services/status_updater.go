package services

import (
	"context"
	"log/slog"

	"github.com/boukath/cina/services/push_service/internal/models"
	"github.com/boukath/cina/services/push_service/internal/repository"
)

// StatusUpdater records delivery progress. Failures are logged, never returned:
// bookkeeping must not change the outcome of a delivery.
type StatusUpdater struct {
	store  *repository.StatusStore
	logger *slog.Logger
}

func NewStatusUpdater(store *repository.StatusStore, logger *slog.Logger) *StatusUpdater {
	return &StatusUpdater{
		store:  store,
		logger: logger,
	}
}

func (s *StatusUpdater) MarkProcessing(ctx context.Context, requestID string) {
	if s == nil {
		return
	}
	if err := s.store.UpdateStatus(ctx, repository.DeliveryStatus{RequestID: requestID, Status: models.StatusProcessing}); err != nil {
		s.logger.Error("failed to update processing status", slog.String("request_id", requestID), slog.Any("error", err))
	}
}

func (s *StatusUpdater) MarkDelivered(ctx context.Context, requestID, provider, messageID string) {
	if s == nil {
		return
	}
	err := s.store.UpdateStatus(ctx, repository.DeliveryStatus{
		RequestID: requestID,
		Status:    models.StatusDelivered,
		Provider:  provider,
		MessageID: messageID,
	})
	if err != nil {
		s.logger.Error("failed to update delivered status", slog.String("request_id", requestID), slog.Any("error", err))
	}
}

func (s *StatusUpdater) MarkFailed(ctx context.Context, requestID, provider, kind, detail string) {
	if s == nil {
		return
	}
	err := s.store.UpdateStatus(ctx, repository.DeliveryStatus{
		RequestID: requestID,
		Status:    models.StatusFailed,
		Provider:  provider,
		ErrorKind: kind,
		Detail:    detail,
	})
	if err != nil {
		s.logger.Error("failed to update failed status", slog.String("request_id", requestID), slog.Any("error", err))
	}
}
