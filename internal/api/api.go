package api

import (
	"context"
	"net/http"

	voiceCallHandler "voice-server/internal/voicecall/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker reports whether an optional backing service is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type API struct {
	router           *gin.RouterGroup
	voiceCallHandler voiceCallHandler.Handler
	createCallLimit  gin.HandlerFunc
	health           HealthChecker
}

// New builds the route table. createCallLimit and health may be nil.
func New(router *gin.RouterGroup, voiceCallHandler voiceCallHandler.Handler, createCallLimit gin.HandlerFunc, health HealthChecker) API {
	return API{
		router:           router,
		voiceCallHandler: voiceCallHandler,
		createCallLimit:  createCallLimit,
		health:           health,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()
	a.router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Hello from the voice server")
	})
	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	phoneGroup := a.router.Group("/api/phone")
	{
		createCall := []gin.HandlerFunc{a.voiceCallHandler.HandleCreateCall}
		if a.createCallLimit != nil {
			createCall = append([]gin.HandlerFunc{a.createCallLimit}, createCall...)
		}
		phoneGroup.POST("/calls", createCall...)
		phoneGroup.POST("/status", a.voiceCallHandler.HandleStatusCallback)
		phoneGroup.GET("/voice", a.voiceCallHandler.HandleVoice)
		phoneGroup.POST("/voice", a.voiceCallHandler.HandleVoice)
		phoneGroup.GET("/media-stream", a.voiceCallHandler.HandleMediaStream)
		phoneGroup.GET("/ws", a.voiceCallHandler.HandleStreamStatus)
	}
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		if a.health != nil {
			if err := a.health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"message": "degraded", "error": "redis unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}
