package server

import (
	"time"

	"studyhall-session-svc/src/clients"
	"studyhall-session-svc/src/internal/dependency"
	"studyhall-session-svc/src/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func SetupRoutes(deps *dependency.Manager) {
	router := deps.Router
	router.Use(enableCORS)

	setupHealthEndpoint(deps)
	setupRoomRoutes(router, deps)
	setupInternalRoutes(router, deps)
}

func setupHealthEndpoint(deps *dependency.Manager) {
	router := deps.Router
	mongodb := deps.Mongodb
	redisClient := deps.Redis
	cfg := deps.Config

	router.GET("/health", func(c *gin.Context) {
		log.Info("Health check endpoint requested")

		mongoStatus := "ok"
		if err := mongodb.Client.Ping(c.Request.Context(), nil); err != nil {
			mongoStatus = "error: " + err.Error()
		}

		redisStatus := "ok"
		if err := redisClient.Client.Ping(c.Request.Context()).Err(); err != nil {
			redisStatus = "error: " + err.Error()
		}

		c.JSON(200, gin.H{
			"status":    "ok",
			"service":   cfg.App.Name,
			"version":   cfg.App.Version,
			"mongodb":   mongoStatus,
			"redis":     redisStatus,
			"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	})

	router.GET("health/detailed", func(c *gin.Context) {
		log.Info("Detailed health check endpoint requested")

		c.JSON(200, gin.H{
			"status":  "operational",
			"service": cfg.App.Name,
			"version": cfg.App.Version,
			"components": gin.H{
				"database": gin.H{
					"mongodb": getStatus(isMongoConnected(mongodb, c)),
					"redis":   getStatus(isRedisConnected(redisClient.Client, c)),
				},
				"queue": gin.H{
					"rabbitmq": getStatus(!deps.RabbitMQ.Conn.IsClosed()),
				},
				"services": gin.H{
					"rooms":      "operational",
					"presence":   "operational",
					"settlement": "operational",
					"ranking":    "operational",
				},
			},
		})
	})
}

func setupRoomRoutes(router *gin.Engine, deps *dependency.Manager) {
	authMiddleware := middleware.NewAuthMiddleware(deps.Config.Security.JwtKey)

	roomHandler := deps.RoomHandler
	presenceHandler := deps.PresenceHandler
	settlementHandler := deps.SettlementHandler

	// Apply route name FIRST, then auth middlewares
	api := router.Group("/api/v1")
	{
		api.POST("/rooms",
			setRouteName("createRoom"),
			authMiddleware.RequireAuth(),
			roomHandler.CreateRoom)

		api.GET("/rooms/:id",
			setRouteName("getRoom"),
			authMiddleware.RequireAuth(),
			roomHandler.GetRoom)

		api.POST("/rooms/:id/join",
			setRouteName("joinRoom"),
			authMiddleware.RequireAuth(),
			roomHandler.JoinRoom)

		api.POST("/rooms/:id/end",
			setRouteName("endRoom"),
			authMiddleware.RequireAuth(),
			roomHandler.EndRoom)

		api.POST("/rooms/:id/presence/open",
			setRouteName("openStay"),
			authMiddleware.RequireAuth(),
			presenceHandler.OpenStay)

		api.POST("/rooms/:id/presence/close",
			setRouteName("closeStay"),
			authMiddleware.RequireAuth(),
			presenceHandler.CloseStay)

		api.GET("/rooms/:id/ranking",
			setRouteName("getLeaderboard"),
			authMiddleware.RequireAuth(),
			roomHandler.GetLeaderboard)

		api.POST("/rooms/:id/ranking/save",
			setRouteName("saveRanking"),
			authMiddleware.RequireAuth(),
			roomHandler.SaveRanking)

		api.GET("/rooms/:id/results",
			setRouteName("getResults"),
			authMiddleware.RequireAuth(),
			roomHandler.GetResults)

		api.GET("/wallet",
			setRouteName("getWallet"),
			authMiddleware.RequireAuth(),
			settlementHandler.GetWallet)
	}
}

func setupInternalRoutes(router *gin.Engine, deps *dependency.Manager) {
	internal := router.Group("/internal/v1")
	{
		internal.POST("/terminate",
			setRouteName("terminateRoom"),
			middleware.RequireSchedulerToken(deps.Config.Security.SchedulerToken),
			deps.RoomHandler.Terminate)
	}
}

func setRouteName(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("route_name", name)
		c.Next()
	}
}

func isMongoConnected(mongodb *clients.MongoDB, c *gin.Context) bool {
	if err := mongodb.Client.Ping(c.Request.Context(), nil); err != nil {
		return false
	}
	return true
}

func isRedisConnected(redisClient *redis.Client, c *gin.Context) bool {
	if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
		return false
	}
	return true
}

func enableCORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if c.Request.Method == "OPTIONS" {
		c.AbortWithStatus(204)
		return
	}

	c.Next()
}

func getStatus(b bool) string {
	if b {
		return "connected"
	}
	return "disconnected"
}
