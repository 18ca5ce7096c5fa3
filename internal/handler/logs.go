package handler

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"pettracker/internal/dto"
	"pettracker/internal/logger"
)

// ShowLogsHandler serves the level file named by :level as text/plain.
func ShowLogsHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, err := log.LogFile(c.Param("level"))
		if err != nil {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
			return
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			c.String(http.StatusNotFound, "Log file not found: %s", c.Param("level"))
			return
		}

		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Header("Cache-Control", "no-cache")
		c.File(path)
	}
}

// RotateLogsHandler starts a fresh level file, keeping the old one as a backup.
func RotateLogsHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := log.RotateLogs(c.Param("level")); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
