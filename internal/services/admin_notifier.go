package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/boukath/cina/services/push_service/internal/models"
	"github.com/boukath/cina/services/push_service/pkg/pusherr"
)

// ErrNoAdminToken means the operator has not enabled notifications yet.
var ErrNoAdminToken = errors.New("no admin device token configured")

// NotificationSender is satisfied by *NotificationDispatcher.
type NotificationSender interface {
	Dispatch(ctx context.Context, req *models.PushNotificationRequest) (*models.PushResult, error)
}

// SettingsReader is satisfied by *repository.SettingsStore.
type SettingsReader interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Clear(ctx context.Context, key string) error
}

// AdminNotifier sends best-effort alerts to the salon operator's device.
type AdminNotifier struct {
	settings SettingsReader
	sender   NotificationSender
	tokenKey string
	template AlertTemplate
	printer  *message.Printer
	logger   *slog.Logger
}

func NewAdminNotifier(settings SettingsReader, sender NotificationSender, tokenKey string, logger *slog.Logger) *AdminNotifier {
	if tokenKey == "" {
		tokenKey = "admin_fcm_token"
	}
	return &AdminNotifier{
		settings: settings,
		sender:   sender,
		tokenKey: tokenKey,
		template: BookingAlertTemplate,
		printer:  message.NewPrinter(language.Make("fr-DZ")),
		logger:   logger,
	}
}

// NotifyAdmin never fails the caller: it reports whether the alert went out.
func (a *AdminNotifier) NotifyAdmin(ctx context.Context, alert models.AdminAlert) bool {
	if err := a.Deliver(ctx, alert); err != nil {
		if errors.Is(err, ErrNoAdminToken) {
			a.logger.Info("no admin device token configured, skipping push notification")
		} else {
			a.logger.Error("failed to send admin push notification", slog.Any("error", err))
		}
		return false
	}
	return true
}

// NotifyNewBooking alerts the operator about a new booking.
func (a *AdminNotifier) NotifyNewBooking(ctx context.Context, b models.Booking) bool {
	return a.NotifyAdmin(ctx, a.BookingAlert(b))
}

// DeliverBookingAlert is NotifyNewBooking with the error kept, for callers
// that retry transport failures.
func (a *AdminNotifier) DeliverBookingAlert(ctx context.Context, b models.Booking) error {
	return a.Deliver(ctx, a.BookingAlert(b))
}

// Deliver looks up the admin token and dispatches alert to it.
func (a *AdminNotifier) Deliver(ctx context.Context, alert models.AdminAlert) error {
	if a.settings == nil {
		return pusherr.Configuration("admin.notify", errors.New("settings store not configured"))
	}
	token, ok, err := a.settings.Get(ctx, a.tokenKey)
	if err != nil {
		return pusherr.Transport("admin.notify", fmt.Errorf("read admin token: %w", err))
	}
	if !ok {
		return ErrNoAdminToken
	}

	_, err = a.sender.Dispatch(ctx, &models.PushNotificationRequest{
		RecipientToken: token,
		Title:          alert.Title,
		Body:           alert.Body,
		Data:           alert.Data,
	})
	if err != nil && IsStaleRecipient(err) {
		if cerr := a.settings.Clear(ctx, a.tokenKey); cerr != nil {
			a.logger.Warn("failed to clear stale admin token", slog.Any("error", cerr))
		} else {
			a.logger.Info("cleared stale admin device token")
		}
	}
	return err
}

// BookingAlert renders the operator alert for a booking.
func (a *AdminNotifier) BookingAlert(b models.Booking) models.AdminAlert {
	price := ""
	if b.TotalPrice != nil && *b.TotalPrice > 0 {
		price = a.printer.Sprintf(" - %v DZD", number.Decimal(*b.TotalPrice, number.MaxFractionDigits(2)))
	}
	vars := map[string]string{
		"clientName": b.Name,
		"service":    b.Service,
		"date":       b.EventDate,
		"time":       b.EventTime,
		"price":      price,
	}
	return a.template.Render(vars, map[string]string{
		"type":       "new_booking",
		"clientName": b.Name,
		"service":    b.Service,
		"date":       b.EventDate,
		"time":       b.EventTime,
	})
}
