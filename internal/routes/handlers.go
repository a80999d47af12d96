package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/boukath/cina/services/push_service/internal/models"
	"github.com/boukath/cina/services/push_service/internal/repository"
	"github.com/boukath/cina/services/push_service/internal/services"
	"github.com/boukath/cina/services/push_service/pkg/pusherr"
)

type handlers struct {
	deps Deps
}

func (h *handlers) sendPushNotification(c *gin.Context) {
	var req models.PushNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.DeliveryResult{
			Error:     "invalid request body: " + err.Error(),
			ErrorKind: string(pusherr.KindValidation),
		})
		return
	}

	res, err := h.deps.Dispatcher.Dispatch(c.Request.Context(), &req)
	out := services.DeliveryResultFrom(res, err)
	if err != nil {
		c.JSON(pusherr.HTTPStatus(pusherr.KindOf(err)), out)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) notifyAdmin(c *gin.Context) {
	var alert models.AdminAlert
	if err := c.ShouldBindJSON(&alert); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}
	if err := services.Validate("admin.notify", &alert); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if h.deps.Admin == nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "settings store not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": h.deps.Admin.NotifyAdmin(c.Request.Context(), alert)})
}

func (h *handlers) notifyAdminBooking(c *gin.Context) {
	var booking models.Booking
	if err := c.ShouldBindJSON(&booking); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	link, err := services.BuildWhatsAppLink(h.deps.AdminPhone, booking)
	if err != nil {
		h.deps.Logger.Error("ADMIN_WHATSAPP_NUMBER not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Admin phone not configured"})
		return
	}

	if err := services.Validate("booking.notify", &booking); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The push alert is a bonus; the booking link is returned either way.
	pushSent := false
	if h.deps.Admin != nil {
		pushSent = h.deps.Admin.NotifyNewBooking(c.Request.Context(), booking)
	}

	h.deps.Logger.Info("booking notification prepared for admin",
		slog.String("client_name", booking.Name),
		slog.String("service", booking.Service),
		slog.String("date", booking.EventDate),
		slog.String("time", booking.EventTime),
	)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"whatsappUrl": link,
		"message":     "Notification prepared",
		"pushSent":    pushSent,
	})
}

func (h *handlers) deliveryStatus(c *gin.Context) {
	if h.deps.Statuses == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status store not configured"})
		return
	}
	ds, err := h.deps.Statuses.Get(c.Request.Context(), c.Param("requestId"))
	switch {
	case errors.Is(err, repository.ErrDeliveryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		h.deps.Logger.Error("failed to read delivery status", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read delivery status"})
	default:
		c.JSON(http.StatusOK, ds)
	}
}
