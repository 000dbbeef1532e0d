package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"gpu_sniper/internal/model"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	stockChecks    *prometheus.CounterVec
	tokenRequests  *prometheus.CounterVec
	cartAttempts   *prometheus.CounterVec
	workerRestarts prometheus.Counter
	catalogResets  prometheus.Counter
	apiOnline      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stockChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gpu_sniper",
			Name:      "stock_checks_total",
			Help:      "Inventory polls by result (in_stock, out_of_stock, error).",
		}, []string{"result"}),
		tokenRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gpu_sniper",
			Name:      "session_token_requests_total",
			Help:      "Session token requests by result.",
		}, []string{"result"}),
		cartAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gpu_sniper",
			Name:      "cart_attempts_total",
			Help:      "Add to cart attempts by result.",
		}, []string{"result"}),
		workerRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gpu_sniper",
			Name:      "worker_restarts_total",
			Help:      "Buy cycles restarted from stock checking after a transport error.",
		}),
		catalogResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gpu_sniper",
			Name:      "catalog_restarts_total",
			Help:      "Runs restarted because the product catalog changed.",
		}),
		apiOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gpu_sniper",
			Name:      "api_online",
			Help:      "1 while the store API is considered online.",
		}),
	}
	m.apiOnline.Set(1)
	if reg != nil {
		reg.MustRegister(m.stockChecks, m.tokenRequests, m.cartAttempts, m.workerRestarts, m.catalogResets, m.apiOnline)
	}
	return m
}

func (m *Metrics) StockCheck(result string) {
	if m == nil {
		return
	}
	m.stockChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) TokenRequest(ok bool) {
	if m == nil {
		return
	}
	m.tokenRequests.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) CartAttempt(ok bool) {
	if m == nil {
		return
	}
	m.cartAttempts.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) WorkerRestart() {
	if m == nil {
		return
	}
	m.workerRestarts.Inc()
}

func (m *Metrics) CatalogRestart() {
	if m == nil {
		return
	}
	m.catalogResets.Inc()
}

func (m *Metrics) APIStatus(s model.APIStatus) {
	if m == nil {
		return
	}
	if s == model.APIStatusOnline {
		m.apiOnline.Set(1)
		return
	}
	m.apiOnline.Set(0)
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
