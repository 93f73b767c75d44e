package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uksgomel/uks_checker/internal/api/controller"
	"github.com/uksgomel/uks_checker/internal/api/middleware"
	"github.com/uksgomel/uks_checker/internal/config"
)

// NewConfigurationRouter exposes the non-secret settings under
// /configuration: the monitored sources and, below it, the poll schedule.
func NewConfigurationRouter(timeout time.Duration, group *gin.RouterGroup, cfg *config.Config) {
	cc := controller.NewConfigurationController(cfg)

	configuration := group.Group("configuration", middleware.RequestTimeout(timeout))
	configuration.GET("", cc.GetConfiguration)
	configuration.GET("schedule", cc.GetSchedule)
}
