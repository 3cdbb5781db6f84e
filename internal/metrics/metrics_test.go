package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginAttemptedLabelsResult(t *testing.T) {
	before := testutil.ToFloat64(logins.WithLabelValues("failure"))
	LoginAttempted(false)
	assert.Equal(t, before+1, testutil.ToFloat64(logins.WithLabelValues("failure")))
}

func TestGameLifecycleGauges(t *testing.T) {
	active := testutil.ToFloat64(gamesActive)
	abandoned := testutil.ToFloat64(gamesFinished.WithLabelValues("abandoned"))

	GameStarted()
	assert.Equal(t, active+1, testutil.ToFloat64(gamesActive))

	GameFinished("abandoned")
	assert.Equal(t, active, testutil.ToFloat64(gamesActive))
	assert.Equal(t, abandoned+1, testutil.ToFloat64(gamesFinished.WithLabelValues("abandoned")))
}

func TestMatchMadeCounts(t *testing.T) {
	before := testutil.ToFloat64(matchesMade)
	MatchMade(3 * time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(matchesMade))
}

func TestMiddlewareUsesRouteName(t *testing.T) {
	handler := Middleware(func(*http.Request) string { return "/players/{username}" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}),
	)

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/players/{username}", "404"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/players/alice", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/players/{username}", "404")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ConnectionOpened()
	defer ConnectionClosed()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "chess_connections"))
}
