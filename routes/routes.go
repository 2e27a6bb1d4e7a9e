package routes

import (
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/cache"
	"github.com/Bekzhanizb/LifeQuestBackend/config"
	"github.com/Bekzhanizb/LifeQuestBackend/handlers"
	"github.com/Bekzhanizb/LifeQuestBackend/middleware"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup builds the engine with the middleware chain and every route.
func Setup(cfg config.Config, h *handlers.Handler, signer *utils.Signer, store *cache.Store) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestLogger())
	r.Use(middleware.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendOrigin},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Cache", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.MaxMultipartMemory = handlers.MaxSyllabusBytes

	r.GET("/health", handlers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/shop", middleware.Cache(store, cfg.CacheTTL), h.Shop)
	api.GET("/leaderboard", middleware.Cache(store, cfg.CacheTTL), h.Leaderboard)

	oauth := api.Group("/auth/google")
	oauth.GET("/login", h.GoogleLogin)
	oauth.GET("/callback", h.GoogleCallback)

	identified := api.Group("")
	identified.Use(middleware.Identity(signer, cfg.AuthRequired))

	agent := identified.Group("/agent")
	agent.POST("/chat", middleware.RateLimit(store, cfg.ChatRateLimit, cfg.ChatRateWindow), h.AgentChat)
	agent.POST("/syllabus", middleware.RateLimit(store, cfg.ChatRateLimit, cfg.ChatRateWindow), h.AgentSyllabus)
	agent.POST("/bootstrap/:user_id", middleware.SameUser("user_id"), h.Bootstrap)

	user := identified.Group("")
	user.Use(middleware.SameUser("user_id"))
	user.POST("/validate-user/:user_id", h.ValidateUser)
	user.POST("/complete-task/:user_id", h.CompleteTask)
	user.POST("/purchase/:user_id/:shop_item_id", h.Purchase)
	user.GET("/purchases/:user_id", h.Purchases)
	user.GET("/profile/:user_id", h.Profile)

	events := user.Group("/calendar/:user_id/events")
	events.GET("", h.ListEvents)
	events.POST("", h.CreateEvent)
	events.PATCH("/:event_id", h.UpdateEvent)
	events.DELETE("/:event_id", h.DeleteEvent)

	return r
}
