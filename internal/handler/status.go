package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"pettracker/internal/dto"
	"pettracker/internal/logger"
	"pettracker/internal/service/eventbus"
)

type CameraLister interface {
	Status() []dto.CameraStatus
}

type BusStatter interface {
	Stats() eventbus.Stats
}

type ClientCounter interface {
	ClientCount() int
}

type DetectionCounter interface {
	Count(ctx context.Context) (int64, error)
}

// RootHandler reports that the API is up.
func RootHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "Pet Tracker API is running"})
	}
}

// StatusHandler reports per-camera pipeline state, bus counters, the number
// of live clients and how many detections are stored.
func StatusHandler(cameras CameraLister, bus BusStatter, clients ClientCounter, detections DetectionCounter, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stored, err := detections.Count(c.Request.Context())
		if err != nil {
			log.Error("Failed to count detections: %v", err)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to count detections"})
			return
		}

		c.JSON(http.StatusOK, dto.StatusResponse{
			Status:           "running",
			Cameras:          cameras.Status(),
			Bus:              bus.Stats(),
			LiveClients:      clients.ClientCount(),
			StoredDetections: stored,
		})
	}
}
