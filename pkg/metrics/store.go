package metrics

import "github.com/prometheus/client_golang/prometheus"

// StoreMetrics tracks order and settlement activity.
type StoreMetrics struct {
	ordersCreated      *prometheus.CounterVec
	settlements        *prometheus.CounterVec
	allocationFailures *prometheus.CounterVec
	remainingStock     *prometheus.GaugeVec
}

// NewStoreMetrics registers storefront metrics on the provided registerer.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created, labeled by product slug.",
	}, []string{"product"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_settlements_total",
		Help: "Settlement outcomes, labeled by trigger path and result.",
	}, []string{"trigger", "result"})
	allocationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_failures_total",
		Help: "Allocations aborted for insufficient stock.",
	}, []string{"product"})
	remainingStock := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "remaining_stock",
		Help: "Unsold cards remaining per product.",
	}, []string{"product"})
	reg.MustRegister(ordersCreated, settlements, allocationFailures, remainingStock)
	return &StoreMetrics{
		ordersCreated:      ordersCreated,
		settlements:        settlements,
		allocationFailures: allocationFailures,
		remainingStock:     remainingStock,
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// IncOrderCreated counts a new order for the product.
func (m *StoreMetrics) IncOrderCreated(product string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(product)).Inc()
}

// IncSettlement counts a settlement attempt outcome.
func (m *StoreMetrics) IncSettlement(trigger, result string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(trigger), normalizeLabel(result)).Inc()
}

// IncAllocationFailure counts an out-of-stock allocation abort.
func (m *StoreMetrics) IncAllocationFailure(product string) {
	if m == nil || m.allocationFailures == nil {
		return
	}
	m.allocationFailures.WithLabelValues(normalizeLabel(product)).Inc()
}

// SetRemainingStock records the observed unsold count for the product.
func (m *StoreMetrics) SetRemainingStock(product string, count int) {
	if m == nil || m.remainingStock == nil {
		return
	}
	m.remainingStock.WithLabelValues(normalizeLabel(product)).Set(float64(count))
}
