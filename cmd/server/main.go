package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voicebridge/campaign-engine-backend/docs"
	"github.com/voicebridge/campaign-engine-backend/internal/database"
	"github.com/voicebridge/campaign-engine-backend/internal/database/repository"
	"github.com/voicebridge/campaign-engine-backend/internal/handlers"
	"github.com/voicebridge/campaign-engine-backend/internal/router"
	"github.com/voicebridge/campaign-engine-backend/internal/services"
	"github.com/voicebridge/campaign-engine-backend/internal/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// @title Campaign Engine API
// @version 1.0
// @description Outbound voice and SMS campaign engine: lifecycle, actions, CDRs and live metrics

// @BasePath /

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Set Swagger base path dynamically
	docs.SwaggerInfo.BasePath = getEnv("BASE_PATH", "/")

	// Configure logging
	configureLogging()

	// Initialize Sentry
	utils.InitSentry()

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Initialize database connections
	db, err := database.InitDB()
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	mongoDB, err := database.InitMongo(initCtx)
	if err != nil {
		logrus.Fatalf("Failed to initialize MongoDB: %v", err)
	}

	redisClient, err := database.InitRedis(initCtx)
	if err != nil {
		logrus.Fatalf("Failed to initialize Redis: %v", err)
	}

	// Initialize RabbitMQ service
	rabbitMQService, err := services.NewRabbitMQService()
	if err != nil {
		logrus.Fatalf("Failed to initialize RabbitMQ: %v", err)
	}
	defer rabbitMQService.Close()
	logrus.Info("RabbitMQ service initialized")

	// Repositories
	campaignRepo := repository.NewCampaignRepository(db)
	contactRepo := repository.NewContactRepository(db)
	blacklistRepo := repository.NewBlacklistRepository(db)
	actionRepo := repository.NewActionRepository(db)
	cdrRepo := repository.NewCDRRepository(mongoDB)
	counterStore := repository.NewRedisCounterStore(redisClient)
	blacklistCache := repository.NewRedisBlacklistCache(redisClient)

	// Metrics hub and service (shared by consumers, handlers and the notifier)
	metricsHub := services.NewMetricsHub()
	metricsService := services.NewMetricsService(counterStore, metricsHub, contactRepo)

	// Messaging-side collaborators
	telephonyCommander := services.NewAMQPTelephonyCommander(rabbitMQService)
	dialController := services.NewAMQPDialController(rabbitMQService)
	statusNotifier := services.NewStatusChangeNotifier(rabbitMQService, metricsHub)
	smsSender := services.NewHTTPSMSSender()

	// Lifecycle service and trigger scheduler reference each other; the
	// scheduler gets its lifecycle dependency injected after construction.
	triggerScheduler := services.NewTimerTriggerScheduler()
	lifecycleService := services.NewLifecycleService(campaignRepo, contactRepo, triggerScheduler, dialController, statusNotifier)
	triggerScheduler.SetLifecycleService(lifecycleService)

	// Re-arm timers for triggers that survived a restart
	if err := triggerScheduler.Rearm(campaignRepo); err != nil {
		logrus.Warnf("Failed to re-arm scheduled triggers: %v", err)
	}

	// Event consumers
	actionDispatcher := services.NewActionDispatcherService(
		actionRepo, blacklistRepo, blacklistCache, telephonyCommander, smsSender, metricsService, rabbitMQService)
	if err := actionDispatcher.StartConsumer(); err != nil {
		logrus.Fatalf("Failed to start action consumer: %v", err)
	}
	defer actionDispatcher.StopConsumer()

	cdrIngest := services.NewCDRIngestService(cdrRepo, metricsService, rabbitMQService)
	if err := cdrIngest.StartConsumer(); err != nil {
		logrus.Fatalf("Failed to start CDR consumer: %v", err)
	}
	defer cdrIngest.StopConsumer()

	// Background reconciler
	reconciler := services.NewReconcilerService(campaignRepo, contactRepo, lifecycleService, metricsService)
	reconciler.Start()
	defer reconciler.Stop()

	// HTTP surface
	r := router.SetupRouter(router.Handlers{
		Campaign:  handlers.NewCampaignHandler(lifecycleService),
		Contact:   handlers.NewContactHandler(contactRepo, campaignRepo, blacklistRepo, blacklistCache),
		Blacklist: handlers.NewBlacklistHandler(blacklistRepo, blacklistCache),
		Metrics:   handlers.NewMetricsHandler(metricsService, metricsHub),
		CDR:       handlers.NewCDRHandler(cdrIngest, actionDispatcher, metricsService),
	})

	// Configure HTTP server
	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		logrus.Infof("Server starting on port %s", port)
		logrus.Infof("API Health Check: http://localhost:%s/api/v1/health", port)
		logrus.Infof("Swagger UI: http://localhost:%s/swagger/index.html", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown the server
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited properly")
}

func configureLogging() {
	logLevel := getEnv("LOG_LEVEL", "info")
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
