package router

import (
	"time"

	"github.com/voicebridge/campaign-engine-backend/internal/handlers"
	"github.com/voicebridge/campaign-engine-backend/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers groups the HTTP handlers the router wires up.
type Handlers struct {
	Campaign  *handlers.CampaignHandler
	Contact   *handlers.ContactHandler
	Blacklist *handlers.BlacklistHandler
	Metrics   *handlers.MetricsHandler
	CDR       *handlers.CDRHandler
}

// SetupRouter configures the Gin router with the campaign engine routes
func SetupRouter(h Handlers) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	// Create a new router
	r := gin.New()

	// Use middleware
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// Configure CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	logrus.Info("Swagger UI endpoint registered at /swagger/index.html")

	// API v1 routes
	api := r.Group("/api/v1")
	{
		// Health check
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
				"time":   time.Now().Format(time.RFC3339),
			})
		})

		// Campaign routes
		campaigns := api.Group("/campaigns")
		{
			campaigns.POST("", h.Campaign.CreateCampaign)
			campaigns.GET("", h.Campaign.ListCampaigns)
			campaigns.GET("/:id", h.Campaign.GetCampaign)
			campaigns.PUT("/:id", h.Campaign.UpdateCampaign)
			campaigns.DELETE("/:id", h.Campaign.DeleteCampaign)
			campaigns.POST("/:id/start", h.Campaign.StartCampaign)
			campaigns.POST("/:id/schedule", h.Campaign.ScheduleCampaign)
			campaigns.POST("/:id/pause", h.Campaign.PauseCampaign)
			campaigns.POST("/:id/resume", h.Campaign.ResumeCampaign)
			campaigns.POST("/:id/cancel", h.Campaign.CancelCampaign)
			campaigns.POST("/:id/contacts", h.Contact.ImportContacts)
			campaigns.GET("/:id/contacts", h.Contact.ListContacts)
			campaigns.GET("/:id/metrics", h.Metrics.GetSnapshot)
			campaigns.GET("/:id/metrics/stream", h.Metrics.StreamMetrics)
			campaigns.POST("/:id/metrics/rebuild", h.CDR.RebuildMetrics)
			campaigns.GET("/:id/report", h.CDR.ExportReport)
		}

		// Blacklist routes
		blacklist := api.Group("/blacklist")
		{
			blacklist.GET("", h.Blacklist.ListBlacklist)
			blacklist.POST("", h.Blacklist.AddBlacklistEntry)
			blacklist.GET("/:phone_number", h.Blacklist.CheckBlacklist)
			blacklist.DELETE("/:phone_number", h.Blacklist.RemoveBlacklistEntry)
		}

		// The aggregate metrics view; the live stream uses campaign id "aggregate"
		api.GET("/metrics/aggregate", h.Metrics.GetAggregateSnapshot)

		// CDR and action lookups
		api.GET("/cdrs/:call_id", h.CDR.GetCDR)
		api.GET("/actions/:id", h.CDR.GetAction)
	}

	return r
}
