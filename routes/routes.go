package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"direct-chat/controllers"
	"direct-chat/middlewares"
	"direct-chat/services"
)

// Dependencies are the constructed components the routes are bound to.
type Dependencies struct {
	Log      zerolog.Logger
	Tokens   *services.TokenManager
	Users    *services.UserService
	Messages *services.MessageService
	Store    *services.MessageStore
	Hub      *services.Hub
	Limiter  services.SendLimiter
	Upgrader *websocket.Upgrader

	CORSOrigins []string
	MediaDir    string // served under MediaURL when set
	MediaURL    string
}

// RegisterRoutes builds the engine with every route.
func RegisterRoutes(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.Metrics())
	r.Use(middlewares.RequestLogger(deps.Log))

	allowAll := len(deps.CORSOrigins) == 0 || deps.CORSOrigins[0] == "*"
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: !allowAll,
		MaxAge:           12 * time.Hour,
	}
	if allowAll {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = deps.CORSOrigins
	}
	r.Use(cors.New(corsConfig))

	r.GET("/health", controllers.Health(deps.Store, deps.Log))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", controllers.WSController(deps.Hub, deps.Tokens, deps.Upgrader))
	if deps.MediaDir != "" && deps.MediaURL != "" {
		r.Static(deps.MediaURL, deps.MediaDir)
	}

	users := controllers.NewUserController(deps.Users, deps.Tokens)
	messages := controllers.NewMessageController(deps.Messages, deps.Users, deps.Log)

	api := r.Group("/api")
	api.POST("/auth/register", users.Register)
	api.POST("/auth/login", users.Login)

	protected := api.Group("")
	protected.Use(middlewares.TokenAuthMiddleware(deps.Tokens))
	{
		protected.GET("/auth/me", users.GetUserInfo)
		protected.GET("/messages/users", messages.GetUsersForSidebar)
		protected.GET("/messages/:id", messages.GetMessages)
		protected.POST("/messages/send/:id", middlewares.SendRateLimit(deps.Limiter, deps.Log), messages.SendMessage)
	}

	return r
}
