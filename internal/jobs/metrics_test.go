package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	_ "github.com/odyssey-erp/qbportal/testing"
)

func TestTrackerRecordsStatus(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, metrics.Track("qbo:token_sweep").End(nil))
	err := errors.New("boom")
	assert.Equal(t, err, metrics.Track("qbo:token_sweep").End(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("qbo:token_sweep", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("qbo:token_sweep", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("qbo:token_sweep")))
}

func TestAddSwept(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.AddSwept("refreshed", 3)
	metrics.AddSwept("rejected", 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.swept.WithLabelValues("refreshed")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.swept), "zero counts are not recorded")

	var nilMetrics *Metrics
	nilMetrics.AddSwept("refreshed", 1)
	assert.NoError(t, nilMetrics.Track("noop").End(nil))
}
