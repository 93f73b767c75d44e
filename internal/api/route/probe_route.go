package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uksgomel/uks_checker/internal/api/controller"
	"github.com/uksgomel/uks_checker/internal/api/middleware"
)

func NewProbeRouter(timeout time.Duration, group *gin.RouterGroup, prober controller.Prober) {
	pc := controller.NewProbeController(prober)

	group.POST("probes/:kind", middleware.RequestTimeout(timeout), pc.RunProbe)
}
