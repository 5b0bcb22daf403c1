package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/logger"

	"github.com/emilythestrangee/campus/backend/internal/config"
	"github.com/emilythestrangee/campus/backend/internal/database"
	"github.com/emilythestrangee/campus/backend/internal/notify"
	"github.com/emilythestrangee/campus/backend/internal/realtime"
	"github.com/emilythestrangee/campus/backend/internal/server"
)

func main() {
	log.Println("🚀 Starting campus backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	logLevel := logger.Info
	if cfg.GinMode == gin.ReleaseMode {
		logLevel = logger.Warn
	}

	// Connect with retry
	var db database.Service
	for attempt := 1; attempt <= 3; attempt++ {
		db, err = database.New(cfg.DSN(), logLevel)
		if err == nil {
			break
		}
		log.Printf("❌ Database connection attempt %d failed: %v", attempt, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	defer hub.Close()
	go func() {
		if err := realtime.Listen(ctx, cfg.DSN(), hub); err != nil {
			log.Printf("❌ Change listener stopped: %v", err)
		}
	}()

	var push notify.PushSender
	if cfg.PushEnabled() {
		push = notify.NewWebPush(db.GetDB(), cfg.VAPIDSubscriber, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
		log.Println("✅ Web push enabled")
	}
	var sms notify.SMSSender
	if cfg.SMSEnabled() {
		sms = notify.NewTwilioSMS(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		log.Println("✅ Moderator SMS alerts enabled")
	}
	dispatcher := notify.NewDispatcher(db.GetDB(), push, sms, cfg.ModeratorPhone)

	srv := server.New(cfg, db, hub, dispatcher).HTTPServer()

	go func() {
		log.Printf("🌐 Server running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Forced shutdown: %v", err)
	}

	log.Println("👋 Server stopped gracefully")
}
