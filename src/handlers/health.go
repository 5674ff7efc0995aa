package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tradevault/tradevault-server/src/database"
	"github.com/tradevault/tradevault-server/src/services"
)

var startTime = time.Now()

// HealthHandler handles health check requests
type HealthHandler struct {
	db        *database.Database
	encryptor *services.EncryptorProvider
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.Database, encryptor *services.EncryptorProvider) *HealthHandler {
	return &HealthHandler{
		db:        db,
		encryptor: encryptor,
	}
}

func (hh *HealthHandler) encryptionStatus() string {
	if hh.encryptor != nil && hh.encryptor.Configured() {
		return "configured"
	}
	return "unconfigured"
}

// HandleHealth returns health status with DB check
func (hh *HealthHandler) HandleHealth(c *gin.Context) {
	start := time.Now()
	err := hh.db.Health(c.Request.Context())
	dbLatency := time.Since(start)

	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "unhealthy",
			"database":   "disconnected",
			"encryption": hh.encryptionStatus(),
			"error":      err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"database":   "connected",
		"encryption": hh.encryptionStatus(),
		"db_latency": dbLatency.String(),
		"uptime":     time.Since(startTime).String(),
	})
}

// HandleInfo returns service information
func (hh *HealthHandler) HandleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "tradevault-server",
		"version": "1.0.0",
		"status":  "running",
		"uptime":  time.Since(startTime).String(),
	})
}

// HandleReady returns readiness status (for load balancers)
func (hh *HealthHandler) HandleReady(c *gin.Context) {
	err := hh.db.Health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"ready": false,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ready": true,
	})
}
