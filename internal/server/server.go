package server

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/campus/backend/internal/config"
	"github.com/emilythestrangee/campus/backend/internal/database"
	"github.com/emilythestrangee/campus/backend/internal/handlers"
	"github.com/emilythestrangee/campus/backend/internal/middleware"
	"github.com/emilythestrangee/campus/backend/internal/notify"
	"github.com/emilythestrangee/campus/backend/internal/realtime"
)

type Server struct {
	cfg     *config.Config
	db      database.Service
	handler *handlers.Handler
	hub     *realtime.Hub
	limiter *middleware.IPRateLimiter
}

func New(cfg *config.Config, db database.Service, hub *realtime.Hub, dispatcher *notify.Dispatcher) *Server {
	return &Server{
		cfg: cfg,
		db:  db,
		handler: handlers.NewHandler(db.GetDB(), dispatcher, handlers.Options{
			JWTSecret:           []byte(cfg.JWTSecret),
			ReportHideThreshold: cfg.ReportHideThreshold,
		}),
		hub:     hub,
		limiter: middleware.NewIPRateLimiter(cfg.RateLimitPerMinute, time.Minute),
	}
}

// HTTPServer wraps the routes in an http.Server with the service timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + s.cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.Default()
	if err := r.SetTrustedProxies(s.cfg.TrustedProxies); err != nil {
		log.Printf("❌ Invalid TRUSTED_PROXIES, trusting none: %v", err)
		_ = r.SetTrustedProxies(nil)
	}
	secret := []byte(s.cfg.JWTSecret)

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		stats := s.db.Health(c.Request.Context())
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		stats["realtime_subscriptions"] = strconv.Itoa(s.hub.Len())
		c.JSON(status, stats)
	})

	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/register", s.handler.Auth.Register)
		api.POST("/login", s.handler.Auth.Login)
		api.GET("/push/key", s.vapidPublicKey)

		id := middleware.UUIDParam("id")

		// Public reads; a token, when present, adds the caller's votes
		public := api.Group("")
		public.Use(middleware.OptionalAuth(secret))
		{
			public.GET("/rants", s.handler.Rant.GetRants)
			public.GET("/rants/:id", id, s.handler.Rant.GetRant)
			public.GET("/users/:id", id, s.handler.User.GetUserProfile)
		}

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(secret))
		{
			protected.GET("/me", s.handler.Auth.GetMe)
			protected.PUT("/me", s.handler.User.UpdateMe)

			protected.POST("/rants", s.handler.Rant.CreateRant)
			protected.DELETE("/rants/:id", id, s.handler.Rant.DeleteRant)
			protected.POST("/rants/:id/report", id, middleware.RateLimit(s.limiter), s.handler.Moderation.ReportRant)

			// Atomic vote toggle procedure
			protected.POST("/rpc/toggle_vote", middleware.RateLimit(s.limiter), s.handler.Vote.ToggleVote)

			protected.GET("/notifications", s.handler.Notification.GetNotifications)
			protected.POST("/notifications/:id/read", id, s.handler.Notification.MarkRead)
			protected.POST("/push/subscribe", s.handler.Notification.SubscribePush)

			protected.GET("/realtime", realtime.Handler(s.hub))

			moderation := protected.Group("/moderation")
			moderation.Use(middleware.RequireRole("moderator"))
			{
				moderation.GET("/reports", s.handler.Moderation.GetReports)
				moderation.POST("/reports/:id/resolve", id, s.handler.Moderation.ResolveReport)
			}
		}
	}

	return r
}

func (s *Server) vapidPublicKey(c *gin.Context) {
	if !s.cfg.PushEnabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Push notifications are not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": s.cfg.VAPIDPublicKey})
}
