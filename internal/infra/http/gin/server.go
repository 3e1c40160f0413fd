package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"staybook/internal/infra/config"
	"staybook/internal/infra/obs"
)

type CheckoutHTTP interface {
	CreateSession(c *gin.Context)
}

type WebhookHTTP interface {
	Receive(c *gin.Context)
}

type ChannelHTTP interface {
	ImportBooking(c *gin.Context)
	BulkImport(c *gin.Context)
	SyncBooking(c *gin.Context)
	RevenueBySource(c *gin.Context)
}

type ReservationHTTP interface {
	Cancel(c *gin.Context)
	CheckIn(c *gin.Context)
	CheckOut(c *gin.Context)
	NoShow(c *gin.Context)
	Refund(c *gin.Context)
	MyReservations(c *gin.Context)
	PropertyReservations(c *gin.Context)
}

type Handlers struct {
	Checkout       CheckoutHTTP
	Webhook        WebhookHTTP
	Channel        ChannelHTTP
	Reservation    ReservationHTTP
	AuthMiddleware gin.HandlerFunc
	RateLimit      gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	// The gateway signs webhook calls itself; identity headers and rate
	// limits apply to the rest of the API only.
	if h.Webhook != nil {
		router.POST("/webhooks/payment", h.Webhook.Receive)
	}

	api := router.Group("/api/v1")
	if h.AuthMiddleware != nil {
		api.Use(h.AuthMiddleware)
	}
	if h.RateLimit != nil {
		api.Use(h.RateLimit)
	}
	if h.Checkout != nil {
		api.POST("/checkout/sessions", h.Checkout.CreateSession)
	}
	if h.Reservation != nil {
		api.POST("/reservations/:id/cancel", h.Reservation.Cancel)
		api.POST("/reservations/:id/check-in", h.Reservation.CheckIn)
		api.POST("/reservations/:id/check-out", h.Reservation.CheckOut)
		api.POST("/reservations/:id/no-show", h.Reservation.NoShow)
		api.POST("/payments/:attemptId/refund", h.Reservation.Refund)
		api.GET("/me/reservations", h.Reservation.MyReservations)
		api.GET("/properties/:id/reservations", h.Reservation.PropertyReservations)
	}
	if h.Channel != nil {
		channelGroup := api.Group("/channel")
		channelGroup.POST("/bookings", h.Channel.ImportBooking)
		channelGroup.POST("/bookings/bulk", h.Channel.BulkImport)
		channelGroup.POST("/bookings/:id/sync", h.Channel.SyncBooking)
		channelGroup.GET("/revenue", h.Channel.RevenueBySource)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
