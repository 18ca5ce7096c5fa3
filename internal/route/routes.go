package route

import (
	"github.com/gin-gonic/gin"

	"pettracker/internal/config"
	"pettracker/internal/handler"
	"pettracker/internal/logger"
	"pettracker/internal/middleware"
	"pettracker/internal/repository"
	"pettracker/internal/service/websocket"
)

// Deps are the services the HTTP API reads from.
type Deps struct {
	Cameras    handler.CameraLister
	Bus        handler.BusStatter
	Hub        *websocket.HubService
	Detections repository.DetectionRepository
	Snapshots  repository.SnapshotRepository
	Logger     *logger.Logger
}

// SetupRoutes registers the API under cfg.APIPrefix and wraps it with
// recovery, request logging and CORS.
func SetupRoutes(cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(deps.Logger), middleware.CORS(cfg.AllowedOrigins))

	api := router.Group(cfg.APIPrefix)
	api.GET("/", handler.RootHandler())
	api.GET("/status", handler.StatusHandler(deps.Cameras, deps.Bus, deps.Hub, deps.Detections, deps.Logger))

	// Detections
	api.GET("/detections", handler.GetDetectionsHandler(deps.Detections, deps.Logger))
	api.POST("/detections", handler.CreateDetectionHandler(deps.Detections, deps.Logger))

	// Snapshots
	api.GET("/snapshots", handler.GetSnapshotsHandler(deps.Snapshots, deps.Logger))
	api.GET("/snapshots/:name", handler.ViewSnapshotHandler(cfg.SnapshotDirectory))

	// Live channel
	api.GET("/ws", handler.ViewWebsocketHandler(deps.Hub, handler.NewUpgrader(cfg.AllowedOrigins), deps.Logger))

	// Log endpoints
	api.GET("/logs/:level", handler.ShowLogsHandler(deps.Logger))
	api.POST("/logs/:level/rotate", handler.RotateLogsHandler(deps.Logger))

	return router
}
