package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"outsourcing-market/internal/auth"
	"outsourcing-market/internal/config"
	"outsourcing-market/internal/database"
	"outsourcing-market/internal/handlers"
	"outsourcing-market/internal/jobs"
	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/notify"
	"outsourcing-market/internal/repository"
	"outsourcing-market/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.Database.Driver, cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Notification delivery
	channels := []notify.Channel{notify.LogChannel{}}
	if cfg.Notify.WebhookURL != "" {
		channels = append(channels, notify.NewWebhookChannel(cfg.Notify.WebhookURL, cfg.Notify.BaseURL, cfg.Notify.WebhookAdminOnly))
	}
	dispatcher := jobs.NewDispatcher(channels, cfg.Notify.QueueSize, cfg.Notify.Workers)
	dispatcher.Start()

	// Initialize repository and services
	repo := repository.NewRepository(database.GetDB())
	rates := cfg.Rates()
	machine := lifecycle.New(cfg.Policy(), rates, time.Now)

	notificationService := services.NewNotificationService(repo, dispatcher)
	workRequestService := services.NewWorkRequestService(repo, machine, notificationService)
	couponService := services.NewCouponService(repo, time.Now)
	paymentService := services.NewPaymentService(repo, couponService, workRequestService, notificationService, cfg.Settlement.ListingFee)
	serviceOrderService := services.NewServiceOrderService(repo, couponService, notificationService, rates.ServiceOrder, time.Now)
	reviewService := services.NewReviewService(repo, workRequestService)
	cashService := services.NewCashService(repo, notificationService)
	adminService := services.NewAdminService(database.GetDB())

	// Warn requesters before proposals complete on their own
	reminder := jobs.NewCompletionReminder(workRequestService, cfg.Notify.ReminderInterval)
	go reminder.Start()
	log.Printf("Completion reminder started (every %s)", cfg.Notify.ReminderInterval)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(router, handlers.Handlers{
		WorkRequests:  handlers.NewWorkRequestHandler(workRequestService, reviewService),
		Payments:      handlers.NewPaymentHandler(paymentService, couponService),
		ServiceOrders: handlers.NewServiceOrderHandler(serviceOrderService),
		Notifications: handlers.NewNotificationHandler(notificationService),
		Users:         handlers.NewUserHandler(cashService),
		Admin:         handlers.NewAdminHandler(adminService, workRequestService, paymentService, cashService),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Stop producers before the dispatcher so queued messages drain
	reminder.Stop()
	dispatcher.Stop()

	log.Println("Server exited")
}
