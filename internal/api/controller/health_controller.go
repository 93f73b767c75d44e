package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uksgomel/uks_checker/internal/logger"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthController struct {
	checker HealthChecker
}

func NewHealthController(checker HealthChecker) *HealthController {
	return &HealthController{checker: checker}
}

// Health handles GET /health. It is DOWN when the state file cannot be
// read or its directory is not writable.
func (hc *HealthController) Health(c *gin.Context) {
	if err := hc.checker.HealthCheck(c.Request.Context()); err != nil {
		logger.WithComponent("health").Warnf("health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "DOWN", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "UP"})
}
