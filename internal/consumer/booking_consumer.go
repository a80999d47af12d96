package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/boukath/cina/services/push_service/internal/models"
	"github.com/boukath/cina/services/push_service/internal/services"
	"github.com/boukath/cina/services/push_service/pkg/metrics"
	"github.com/boukath/cina/services/push_service/pkg/pusherr"
	"github.com/boukath/cina/services/push_service/pkg/retry"
)

// BookingAlerter is satisfied by *services.AdminNotifier.
type BookingAlerter interface {
	DeliverBookingAlert(ctx context.Context, b models.Booking) error
}

// BookingConsumer turns booking events into admin alerts. Alerts are best
// effort: once an event is understood it is acked whatever the delivery outcome.
type BookingConsumer struct {
	base     *BaseConsumer
	alerter  BookingAlerter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	retryCfg retry.Config
}

func NewBookingConsumer(base *BaseConsumer, alerter BookingAlerter, metrics *metrics.Metrics, logger *slog.Logger, retryCfg retry.Config) *BookingConsumer {
	retryCfg.Retryable = pusherr.Retryable
	return &BookingConsumer{
		base:     base,
		alerter:  alerter,
		metrics:  metrics,
		logger:   logger,
		retryCfg: retryCfg,
	}
}

func (b *BookingConsumer) Start(ctx context.Context) error {
	return b.base.Start(ctx, b.handleDelivery)
}

func (b *BookingConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) error {
	var event models.BookingEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		b.logger.Error("failed to unmarshal booking event", slog.Any("error", err))
		_ = msg.Reject(false)
		return err
	}
	if event.Type != "" && event.Type != models.BookingCreated {
		b.logger.Debug("ignoring booking event", slog.String("type", event.Type))
		return msg.Ack(false)
	}
	if err := services.Validate("booking.consume", &event.Booking); err != nil {
		b.logger.Error("invalid booking event", slog.String("event_id", event.EventID), slog.Any("error", err))
		_ = msg.Reject(false)
		return fmt.Errorf("booking event %s: %w", event.EventID, err)
	}

	attempts := 1
	cfg := b.retryCfg
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		attempts = attempt + 1
		b.metrics.IncRetried()
		b.logger.Warn("retrying booking alert",
			slog.String("event_id", event.EventID),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	}
	err := retry.Do(ctx, cfg, func() error {
		return b.alerter.DeliverBookingAlert(ctx, event.Booking)
	})

	switch {
	case err == nil:
		b.logger.Info("booking alert sent", slog.String("event_id", event.EventID))
	case errors.Is(err, services.ErrNoAdminToken):
		b.logger.Info("no admin device token, booking alert skipped", slog.String("event_id", event.EventID))
	default:
		b.logger.Warn("booking alert failed",
			slog.String("event_id", event.EventID),
			slog.Int("attempts", attempts),
			slog.Any("error", err),
		)
	}
	return msg.Ack(false)
}
