package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("/api/v1/requests")
		IncSubmitted("الخرطوم")
		IncTransition("accept")
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(submittedRequests.WithLabelValues("الخرطوم")))
	assert.Equal(t, float64(1), testutil.ToFloat64(statusTransitions.WithLabelValues("accept")))
}
