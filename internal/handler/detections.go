package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cast"

	"pettracker/internal/dto"
	"pettracker/internal/logger"
	"pettracker/internal/model"
	"pettracker/internal/repository"
)

const maxLimit = 100

// queryLimit reads ?limit=N, falling back to def for missing or invalid values.
func queryLimit(c *gin.Context, def int) int {
	raw, ok := c.GetQuery("limit")
	if !ok {
		return def
	}
	n, err := cast.ToIntE(raw)
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxLimit)
}

// GetDetectionsHandler returns the most recent detections, newest first.
func GetDetectionsHandler(repo repository.DetectionRepository, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		detections, err := repo.Recent(c.Request.Context(), queryLimit(c, 10))
		if err != nil {
			log.Error("Failed to load detections: %v", err)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to load detections"})
			return
		}
		c.JSON(http.StatusOK, detections)
	}
}

// CreateDetectionHandler stores a detection submitted by an external client.
func CreateDetectionHandler(repo repository.DetectionRepository, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.CreateDetectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
			return
		}

		det := model.Detection{
			DetectionID: req.DetectionID,
			ModelID:     req.ModelID,
			CameraID:    req.CameraID,
			X:           req.X,
			Y:           req.Y,
			Width:       req.Width,
			Height:      req.Height,
			Confidence:  *req.Confidence,
			ClassName:   req.ClassName,
			ClassID:     req.ClassID,
			Timestamp:   time.Now(),
		}
		if det.DetectionID == "" {
			det.DetectionID = uuid.NewString()
		}
		if req.Timestamp != nil {
			det.Timestamp = *req.Timestamp
		}
		if err := det.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
			return
		}

		id, err := repo.Insert(c.Request.Context(), &det)
		if err != nil {
			log.Error("Failed to save detection: %v", err)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to save detection"})
			return
		}
		c.JSON(http.StatusCreated, dto.CreateDetectionResponse{ID: id, DetectionID: det.DetectionID})
	}
}
