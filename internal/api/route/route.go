package route

import (
	"github.com/gin-gonic/gin"

	"github.com/uksgomel/uks_checker/internal/api/controller"
	"github.com/uksgomel/uks_checker/internal/api/middleware"
	"github.com/uksgomel/uks_checker/internal/app"
	"github.com/uksgomel/uks_checker/internal/errreport"
)

// SetupRoutes builds the engine with the shared middleware and every route.
func SetupRoutes(appCtx *app.App, reporter *errreport.Reporter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.HoneybadgerMiddleware(reporter))
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(appCtx.Config.Server.CORSAllowedOrigins))

	serverCfg := appCtx.Config.Server
	hc := controller.NewHealthController(appCtx.Repo)
	r.GET("/health", middleware.RequestTimeout(serverCfg.RequestTimeout), hc.Health)

	publicRouter := r.Group("")

	NewConfigurationRouter(serverCfg.RequestTimeout, publicRouter, appCtx.Config)
	NewStateRouter(serverCfg.RequestTimeout, serverCfg.ProbeTimeout, publicRouter, appCtx.Monitor)
	NewProbeRouter(serverCfg.ProbeTimeout, publicRouter, appCtx.Monitor)

	return r
}
