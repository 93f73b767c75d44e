package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uksgomel/uks_checker/internal/api/controller"
	"github.com/uksgomel/uks_checker/internal/api/middleware"
)

// NewStateRouter sets up the read-only state routes. The latest-item lookups
// fetch and download from the sources, so they get fetchTimeout instead of
// the default timeout.
func NewStateRouter(timeout, fetchTimeout time.Duration, group *gin.RouterGroup, reader controller.StateReader) {
	sc := controller.NewStateController(reader)
	defaultTimeout := middleware.RequestTimeout(timeout)
	lookupTimeout := middleware.RequestTimeout(fetchTimeout)

	group.GET("state", defaultTimeout, sc.GetState)
	group.GET("documents/latest", lookupTimeout, sc.LatestDocument)
	group.GET("articles/latest", lookupTimeout, sc.LatestArticle)
}
