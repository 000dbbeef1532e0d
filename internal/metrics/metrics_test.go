package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"gpu_sniper/internal/model"
)

func TestCountersAndGauge(t *testing.T) {
	t.Parallel()

	m := New(prometheus.NewRegistry())
	m.StockCheck("out_of_stock")
	m.StockCheck("out_of_stock")
	m.CartAttempt(false)
	m.APIStatus(model.APIStatusOffline)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stockChecks.WithLabelValues("out_of_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cartAttempts.WithLabelValues("failure")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.apiOnline))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.StockCheck("error")
		m.TokenRequest(true)
		m.WorkerRestart()
		m.CatalogRestart()
		m.APIStatus(model.APIStatusOnline)
	})
}
