package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/boukath/cina/services/push_service/internal/credentials"
	"github.com/boukath/cina/services/push_service/internal/models"
	"github.com/boukath/cina/services/push_service/internal/oauth"
	"github.com/boukath/cina/services/push_service/pkg/logger"
	"github.com/boukath/cina/services/push_service/pkg/metrics"
	"github.com/boukath/cina/services/push_service/pkg/pusherr"
)

// CodeSuppressed marks recipients skipped because they were reported stale.
const CodeSuppressed = "SUPPRESSED"

// TokenSuppressor remembers recipient tokens that can no longer receive pushes.
type TokenSuppressor interface {
	IsTokenSuppressed(ctx context.Context, token string) (bool, error)
	SuppressToken(ctx context.Context, token string, ttl time.Duration) error
}

type tokenInvalidator interface {
	Invalidate(cred *credentials.ServiceAccountCredential)
}

// NotificationDispatcher validates a request, obtains an access token and
// hands the message to the push provider.
type NotificationDispatcher struct {
	cred        *credentials.ServiceAccountCredential
	tokens      oauth.TokenProvider
	provider    PushProvider
	link        string
	suppressor  TokenSuppressor
	suppressTTL time.Duration
	status      *StatusUpdater
	metrics     *metrics.Metrics
	logger      *slog.Logger
	validate    *validator.Validate
}

// DispatcherOption customises a NotificationDispatcher.
type DispatcherOption func(*NotificationDispatcher)

// WithWebLink sets the page the browser opens when the notification is clicked.
func WithWebLink(link string) DispatcherOption {
	return func(d *NotificationDispatcher) { d.link = link }
}

// WithSuppressor skips and records stale recipient tokens.
func WithSuppressor(s TokenSuppressor, ttl time.Duration) DispatcherOption {
	return func(d *NotificationDispatcher) {
		d.suppressor = s
		d.suppressTTL = ttl
	}
}

// WithStatusUpdater records every delivery attempt.
func WithStatusUpdater(s *StatusUpdater) DispatcherOption {
	return func(d *NotificationDispatcher) { d.status = s }
}

func NewNotificationDispatcher(
	cred *credentials.ServiceAccountCredential,
	tokens oauth.TokenProvider,
	provider PushProvider,
	metrics *metrics.Metrics,
	logger *slog.Logger,
	opts ...DispatcherOption,
) *NotificationDispatcher {
	d := &NotificationDispatcher{
		cred:     cred,
		tokens:   tokens,
		provider: provider,
		metrics:  metrics,
		logger:   logger,
		validate: sharedValidator,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers one notification. The returned result is never nil;
// err is a *pusherr.Error describing why delivery failed.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, req *models.PushNotificationRequest) (*models.PushResult, error) {
	d.metrics.IncReceived()
	result := &models.PushResult{
		RequestID: uuid.NewString(),
		Provider:  d.provider.Name(),
	}
	if req == nil {
		return d.fail(ctx, result, pusherr.Validation("dispatch", errors.New("empty request")))
	}
	result.Token = logger.Redact(req.RecipientToken)

	if err := validateStruct(d.validate, req); err != nil {
		return d.fail(ctx, result, pusherr.Validation("dispatch", err))
	}
	if err := validateOverrides(req.Overrides); err != nil {
		return d.fail(ctx, result, pusherr.Validation("dispatch", err))
	}

	if d.isSuppressed(ctx, req.RecipientToken) {
		return d.fail(ctx, result, pusherr.Delivery("dispatch", 0, CodeSuppressed, "recipient token was reported stale"))
	}

	d.status.MarkProcessing(ctx, result.RequestID)

	tok, err := d.tokens.Exchange(ctx, d.cred)
	if err != nil {
		return d.fail(ctx, result, err)
	}

	payload := &PushPayload{
		Token:     req.RecipientToken,
		Title:     req.Title,
		Body:      req.Body,
		Data:      req.Data,
		Link:      d.link,
		Overrides: req.Overrides,
	}
	messageID, err := d.provider.Send(ctx, tok.Value, payload)
	if err != nil {
		d.afterDeliveryError(ctx, req.RecipientToken, err)
		return d.fail(ctx, result, err)
	}

	result.Status = models.StatusDelivered
	result.MessageID = messageID
	d.status.MarkDelivered(ctx, result.RequestID, result.Provider, messageID)
	d.metrics.IncDelivered()
	d.logger.Info("push notification sent",
		slog.String("request_id", result.RequestID),
		slog.String("token", result.Token),
		slog.String("message_id", messageID),
	)
	return result, nil
}

func (d *NotificationDispatcher) fail(ctx context.Context, result *models.PushResult, err error) (*models.PushResult, error) {
	kind := pusherr.KindOf(err)
	if kind == "" {
		kind = pusherr.KindTransport
		err = pusherr.Transport("dispatch", err)
	}
	result.Status = models.StatusFailed
	result.ErrorKind = string(kind)
	result.ErrorCode = pusherr.CodeOf(err)
	result.Error = err.Error()

	d.metrics.IncFailed(string(kind))
	if kind != pusherr.KindValidation {
		d.status.MarkFailed(ctx, result.RequestID, result.Provider, string(kind), result.Error)
	}
	d.logger.Warn("push notification failed",
		slog.String("request_id", result.RequestID),
		slog.String("token", result.Token),
		slog.String("kind", string(kind)),
		slog.Any("error", err),
	)
	return result, err
}

func (d *NotificationDispatcher) isSuppressed(ctx context.Context, token string) bool {
	if d.suppressor == nil {
		return false
	}
	suppressed, err := d.suppressor.IsTokenSuppressed(ctx, token)
	if err != nil {
		// The suppression list is an optimisation; a Redis outage must not stop delivery.
		d.logger.Warn("failed to check token suppression", slog.Any("error", err))
		return false
	}
	return suppressed
}

func (d *NotificationDispatcher) afterDeliveryError(ctx context.Context, token string, err error) {
	var pe *pusherr.Error
	if !errors.As(err, &pe) || pe.Kind != pusherr.KindDelivery {
		return
	}
	if pe.StatusCode == http.StatusUnauthorized {
		if inv, ok := d.tokens.(tokenInvalidator); ok {
			inv.Invalidate(d.cred)
		}
	}
	if d.suppressor != nil && isTokenFatal(pe.Code) {
		if serr := d.suppressor.SuppressToken(ctx, token, d.suppressTTL); serr != nil {
			d.logger.Warn("failed to suppress stale token", slog.Any("error", serr))
		}
	}
}

// DeliveryResultFrom converts a dispatch outcome to the boundary result.
func DeliveryResultFrom(res *models.PushResult, err error) models.DeliveryResult {
	var out models.DeliveryResult
	if res != nil {
		out.RequestID = res.RequestID
		out.MessageID = res.MessageID
	}
	if err != nil {
		out.Error = err.Error()
		out.ErrorKind = string(pusherr.KindOf(err))
		return out
	}
	out.Success = true
	return out
}

// IsStaleRecipient reports whether err means the recipient token should be
// forgotten by whoever stored it.
func IsStaleRecipient(err error) bool {
	code := pusherr.CodeOf(err)
	return pusherr.Is(err, pusherr.KindDelivery) && (isTokenFatal(code) || code == CodeSuppressed)
}

var sharedValidator = newValidator()

// Validate checks the `validate` tags of s and reports missing fields by
// their JSON names as a ValidationError.
func Validate(op string, s interface{}) error {
	if err := validateStruct(sharedValidator, s); err != nil {
		return pusherr.Validation(op, err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func validateStruct(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fmt.Errorf("missing required fields: %s", strings.Join(fields, ", "))
}
