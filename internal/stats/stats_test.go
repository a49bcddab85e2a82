package stats

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// expvar panics on duplicate names, so every test shares one updater.
var (
	testMux     = http.NewServeMux()
	testUpdater = NewStatsUpdater(testMux)
)

func TestNewStatsUpdater(t *testing.T) {
	assert.NotNil(t, testUpdater, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, testUpdater.updateChan, "expected updateChan to be initialized")
	handler, pattern := testMux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")
}

func TestStatsUpdater_Snapshot(t *testing.T) {
	testUpdater.RegisterMetric("MessagesSent")
	testUpdater.RegisterMetric("MessagesReceived")
	testUpdater.Run()
	defer testUpdater.Stop()

	testUpdater.Incr("MessagesSent")
	testUpdater.Incr("MessagesSent")
	testUpdater.Incr("MessagesReceived")
	testUpdater.Decr("MessagesReceived")

	assert.Eventually(t, func() bool {
		counters := testUpdater.Snapshot()
		return counters["MessagesSent"] == 2 && counters["MessagesReceived"] == 0
	}, time.Second, 10*time.Millisecond, "expected snapshot to reflect applied updates")

	counters := testUpdater.Snapshot()
	_, ok := counters["Uptime"]
	assert.False(t, ok, "expected func metrics to be excluded from the snapshot")
}
