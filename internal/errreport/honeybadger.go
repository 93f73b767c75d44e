// Package errreport forwards failures to Honeybadger when an API key is set.
package errreport

import (
	"os"

	honeybadger "github.com/honeybadger-io/honeybadger-go"
	"github.com/sirupsen/logrus"
)

// Reporter is a no-op unless Honeybadger was configured.
type Reporter struct {
	enabled bool
}

// FromEnv configures Honeybadger from HONEYBADGER_API_KEY and GO_ENV.
func FromEnv(logger *logrus.Logger) *Reporter {
	apiKey := os.Getenv("HONEYBADGER_API_KEY")
	if apiKey == "" {
		logger.Info("Honeybadger is not active. To enable error reporting, set the HONEYBADGER_API_KEY environment variable.")
		return &Reporter{}
	}

	honeybadger.Configure(honeybadger.Configuration{
		APIKey: apiKey,
		Env:    os.Getenv("GO_ENV"),
	})
	logger.Info("Honeybadger error reporting is enabled.")
	return &Reporter{enabled: true}
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// Notify sends err tagged with component. extra is attached as context.
func (r *Reporter) Notify(err error, component string, extra map[string]interface{}) {
	if !r.Enabled() || err == nil {
		return
	}
	ctx := honeybadger.Context{"component": component}
	for k, v := range extra {
		ctx[k] = v
	}
	_, _ = honeybadger.Notify(err, ctx, honeybadger.Tags{component})
}

// NotifyMessage sends a plain message, optionally with the originating request
// and extra arguments understood by honeybadger.Notify.
func (r *Reporter) NotifyMessage(msg string, extra ...interface{}) {
	if !r.Enabled() {
		return
	}
	_, _ = honeybadger.Notify(msg, extra...)
}

// Flush waits for queued notices to be delivered.
func (r *Reporter) Flush() {
	if r.Enabled() {
		honeybadger.Flush()
	}
}
