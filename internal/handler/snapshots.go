package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"pettracker/internal/dto"
	"pettracker/internal/logger"
	"pettracker/internal/repository"
)

// GetSnapshotsHandler returns the most recent snapshot records.
func GetSnapshotsHandler(repo repository.SnapshotRepository, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshots, err := repo.Recent(c.Request.Context(), queryLimit(c, 5))
		if err != nil {
			log.Error("Failed to load snapshots: %v", err)
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to load snapshots"})
			return
		}
		c.JSON(http.StatusOK, snapshots)
	}
}

// ViewSnapshotHandler serves one snapshot image from dir. Names that are
// not plain .jpg file names are rejected.
func ViewSnapshotHandler(dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") ||
			strings.ContainsAny(name, `/\`) || filepath.Ext(name) != ".jpg" {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid snapshot name"})
			return
		}

		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "snapshot not found"})
			return
		}

		c.Header("Cache-Control", "public, max-age=86400")
		c.File(path)
	}
}
