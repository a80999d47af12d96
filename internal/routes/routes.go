package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/boukath/cina/services/push_service/internal/models"
	"github.com/boukath/cina/services/push_service/internal/repository"
	"github.com/boukath/cina/services/push_service/internal/services"
	"github.com/boukath/cina/services/push_service/pkg/metrics"
)

// AdminAlerter is satisfied by *services.AdminNotifier.
type AdminAlerter interface {
	NotifyAdmin(ctx context.Context, alert models.AdminAlert) bool
	NotifyNewBooking(ctx context.Context, b models.Booking) bool
}

// StatusReader is satisfied by *repository.StatusStore.
type StatusReader interface {
	Get(ctx context.Context, requestID string) (*repository.DeliveryStatus, error)
}

// Deps are the collaborators the HTTP surface needs. Admin may be nil when no
// settings store is configured, Statuses when no database is.
type Deps struct {
	Dispatcher     services.NotificationSender
	Admin          AdminAlerter
	Statuses       StatusReader
	AdminPhone     string
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	Started        time.Time
	AllowedOrigins []string
	APIKey         string
}

// NewRouter wires the functions API plus health and metrics endpoints.
func NewRouter(deps Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger), cors.New(corsConfig(deps.AllowedOrigins)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "push service healthy",
			"meta": gin.H{
				"uptime_seconds": int(time.Since(deps.Started).Seconds()),
				"timestamp":      time.Now().UTC(),
			},
		})
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	h := &handlers{deps: deps}
	fn := r.Group("/functions/v1", apiKeyGuard(deps.APIKey))
	fn.POST("/send-push-notification", h.sendPushNotification)
	fn.POST("/notify-admin", h.notifyAdmin)
	fn.POST("/notify-admin-booking", h.notifyAdminBooking)
	fn.GET("/deliveries/:requestId", h.deliveryStatus)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if logger == nil {
			return
		}
		logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

// apiKeyGuard requires the apikey header when a key is configured.
func apiKeyGuard(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if c.GetHeader("apikey") != key {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}
