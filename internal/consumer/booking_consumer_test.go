package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boukath/cina/services/push_service/internal/models"
	"github.com/boukath/cina/services/push_service/internal/services"
	"github.com/boukath/cina/services/push_service/pkg/logger"
	"github.com/boukath/cina/services/push_service/pkg/metrics"
	"github.com/boukath/cina/services/push_service/pkg/pusherr"
	"github.com/boukath/cina/services/push_service/pkg/retry"
)

type fakeAck struct {
	acked    int
	rejected int
	nacked   int
}

func (f *fakeAck) Ack(uint64, bool) error        { f.acked++; return nil }
func (f *fakeAck) Nack(uint64, bool, bool) error { f.nacked++; return nil }
func (f *fakeAck) Reject(uint64, bool) error     { f.rejected++; return nil }

type scriptedAlerter struct {
	errs  []error
	calls int
	got   []models.Booking
}

func (s *scriptedAlerter) DeliverBookingAlert(_ context.Context, b models.Booking) error {
	s.calls++
	s.got = append(s.got, b)
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func newTestConsumer(alerter BookingAlerter) *BookingConsumer {
	return NewBookingConsumer(nil, alerter, metrics.New(), logger.Discard(), retry.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
}

func delivery(t *testing.T, ack amqp.Acknowledger, event interface{}) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}
}

func bookingEvent() models.BookingEvent {
	return models.BookingEvent{
		EventID: "evt-1",
		Type:    models.BookingCreated,
		Booking: models.Booking{Name: "Jane", Phone: "0555", Service: "Coupe", EventDate: "2024-05-01", EventTime: "10:00"},
	}
}

func TestHandleDeliverySendsAlert(t *testing.T) {
	alerter := &scriptedAlerter{}
	ack := &fakeAck{}

	err := newTestConsumer(alerter).handleDelivery(context.Background(), delivery(t, ack, bookingEvent()))
	require.NoError(t, err)
	assert.Equal(t, 1, alerter.calls)
	assert.Equal(t, "Jane", alerter.got[0].Name)
	assert.Equal(t, 1, ack.acked)
}

func TestHandleDeliveryRetriesTransportErrors(t *testing.T) {
	alerter := &scriptedAlerter{errs: []error{
		pusherr.Transport("fcm.send", errors.New("reset")),
		pusherr.Transport("fcm.send", errors.New("reset")),
	}}
	ack := &fakeAck{}

	require.NoError(t, newTestConsumer(alerter).handleDelivery(context.Background(), delivery(t, ack, bookingEvent())))
	assert.Equal(t, 3, alerter.calls)
	assert.Equal(t, 1, ack.acked)
}

func TestHandleDeliveryDoesNotRetryRejections(t *testing.T) {
	alerter := &scriptedAlerter{errs: []error{
		pusherr.AuthExchange("oauth.exchange", 400, "{}"),
	}}
	ack := &fakeAck{}

	require.NoError(t, newTestConsumer(alerter).handleDelivery(context.Background(), delivery(t, ack, bookingEvent())))
	assert.Equal(t, 1, alerter.calls)
	assert.Equal(t, 1, ack.acked)
}

func TestHandleDeliveryWithoutAdminToken(t *testing.T) {
	alerter := &scriptedAlerter{errs: []error{services.ErrNoAdminToken}}
	ack := &fakeAck{}

	require.NoError(t, newTestConsumer(alerter).handleDelivery(context.Background(), delivery(t, ack, bookingEvent())))
	assert.Equal(t, 1, alerter.calls)
	assert.Equal(t, 1, ack.acked)
}

func TestHandleDeliveryRejectsMalformed(t *testing.T) {
	alerter := &scriptedAlerter{}
	ack := &fakeAck{}

	err := newTestConsumer(alerter).handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{")})
	assert.Error(t, err)
	assert.Equal(t, 1, ack.rejected)
	assert.Zero(t, alerter.calls)

	ev := bookingEvent()
	ev.Booking.Name = ""
	err = newTestConsumer(alerter).handleDelivery(context.Background(), delivery(t, ack, ev))
	assert.Error(t, err)
	assert.Equal(t, 2, ack.rejected)

	ev = bookingEvent()
	ev.Booking.EventTime = ""
	err = newTestConsumer(alerter).handleDelivery(context.Background(), delivery(t, ack, ev))
	assert.True(t, pusherr.Is(err, pusherr.KindValidation))
	assert.ErrorContains(t, err, "event_time")
	assert.Equal(t, 3, ack.rejected)
	assert.Zero(t, alerter.calls)
}

func TestHandleDeliveryIgnoresOtherEvents(t *testing.T) {
	alerter := &scriptedAlerter{}
	ack := &fakeAck{}
	ev := bookingEvent()
	ev.Type = "booking.cancelled"

	require.NoError(t, newTestConsumer(alerter).handleDelivery(context.Background(), delivery(t, ack, ev)))
	assert.Zero(t, alerter.calls)
	assert.Equal(t, 1, ack.acked)
}
