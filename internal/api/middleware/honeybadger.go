package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	honeybadger "github.com/honeybadger-io/honeybadger-go"

	"github.com/uksgomel/uks_checker/internal/errreport"
	"github.com/uksgomel/uks_checker/internal/logger"
)

// HoneybadgerMiddleware reports panics and 5xx responses.
// On panic it notifies and re-panics so gin.Recovery writes the response.
func HoneybadgerMiddleware(reporter *errreport.Reporter) gin.HandlerFunc {
	if !reporter.Enabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		log := logger.WithComponent("http")
		defer func() {
			if rec := recover(); rec != nil {
				reporter.NotifyMessage(fmt.Sprintf("Panic: %s %s", c.Request.Method, c.Request.URL.Path),
					c.Request, honeybadger.Context{"stack": string(debug.Stack())}, honeybadger.Tags{"panic", "http"})
				log.Error("recovered from panic, notified Honeybadger: ", rec)
				panic(rec)
			}
		}()

		c.Next()

		if status := c.Writer.Status(); status >= 500 {
			reporter.NotifyMessage(fmt.Sprintf("Error: HTTP %d: %s %s", status, c.Request.Method, c.Request.URL.Path),
				c.Request, honeybadger.Tags{"5XX", "http"})
			log.Warnf("Honeybadger reported HTTP %d for %s %s", status, c.Request.Method, c.Request.URL.Path)
		}
	}
}
