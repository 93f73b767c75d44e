package errreport

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestFromEnv_DisabledWithoutKey(t *testing.T) {
	t.Setenv("HONEYBADGER_API_KEY", "")

	r := FromEnv(logrus.New())
	if r.Enabled() {
		t.Fatal("expected reporter to be disabled without an API key")
	}

	// Must be safe no-ops.
	r.Notify(errors.New("boom"), "detector", map[string]interface{}{"kind": "page"})
	r.NotifyMessage("boom")
	r.Flush()
}

func TestReporter_NilIsDisabled(t *testing.T) {
	var r *Reporter
	if r.Enabled() {
		t.Fatal("expected nil reporter to be disabled")
	}
	r.Notify(errors.New("boom"), "detector", nil)
}
