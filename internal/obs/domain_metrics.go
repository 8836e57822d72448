package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// WizardStepTotal counts wizard step transitions by step and result.
	WizardStepTotal *prometheus.CounterVec
	// PaymentDispatchTotal counts payment dispatch outcomes.
	PaymentDispatchTotal *prometheus.CounterVec
	// SettlementReconcileTotal counts settlement reconciliation outcomes.
	SettlementReconcileTotal *prometheus.CounterVec
	// CartCheckoutTotal counts cart checkout outcomes.
	CartCheckoutTotal *prometheus.CounterVec
	// RateLookupTotal counts conversion-rate lookups by source.
	RateLookupTotal *prometheus.CounterVec
	// CatalogFetchLatency records catalog collaborator latency in milliseconds.
	CatalogFetchLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		WizardStepTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_step_total",
			Help:      "Count of wizard step transition attempts by result.",
		}, []string{"step", "action", "result"})
		PaymentDispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_dispatch_total",
			Help:      "Count of payment dispatch outcomes by method.",
		}, []string{"method", "result"})
		SettlementReconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_reconcile_total",
			Help:      "Count of pending settlement reconciliation outcomes.",
		}, []string{"result"})
		CartCheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_checkout_total",
			Help:      "Count of cart checkout outcomes by method.",
		}, []string{"method", "result"})
		RateLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_lookup_total",
			Help:      "Count of conversion-rate lookups by source (live, cached, fallback).",
		}, []string{"source"})
		CatalogFetchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_fetch_duration_ms",
			Help:      "Latency for catalog collaborator calls in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"resource"})

		registerCollector(reg, WizardStepTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WizardStepTotal = v
			}
		})
		registerCollector(reg, PaymentDispatchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentDispatchTotal = v
			}
		})
		registerCollector(reg, SettlementReconcileTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SettlementReconcileTotal = v
			}
		})
		registerCollector(reg, CartCheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartCheckoutTotal = v
			}
		})
		registerCollector(reg, RateLookupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RateLookupTotal = v
			}
		})
		registerCollector(reg, CatalogFetchLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CatalogFetchLatency = v
			}
		})
	})
}
