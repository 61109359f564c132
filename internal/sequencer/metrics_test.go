package sequencer

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestMetricsLabelValuesSortedByKey(t *testing.T) {
	m := NewMetrics(prometheus.Labels{"zone": "us", "shard": "3"})

	assert.Equal(t, []string{"3", "us"}, m.labelValues(""))
	assert.Equal(t, []string{"3", "us", "success"}, m.labelValues("success"))
}

func TestMetricsPrometheusCollectorsNonEmpty(t *testing.T) {
	m := NewMetrics(nil)
	assert.Len(t, m.PrometheusCollectors(), 7)
}
