package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsCollector struct {
	registry             *prometheus.Registry
	ledgerMutations      *prometheus.CounterVec
	ledgerConflicts      prometheus.Counter
	mutationDuration     prometheus.Histogram
	riskScores           prometheus.Histogram
	alertsGenerated      *prometheus.CounterVec
	subCheckFailures     *prometheus.CounterVec
	forecastConfidence   prometheus.Histogram
	outstandingByShop    *prometheus.GaugeVec
	notificationsDropped prometheus.Counter
	logger               *slog.Logger
}

func NewMetricsCollector(logger *slog.Logger) *MetricsCollector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &MetricsCollector{
		registry: registry,
		ledgerMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_mutations_total",
			Help: "Ledger mutations by transaction type and outcome",
		}, []string{"type", "outcome"}),
		ledgerConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_version_conflicts_total",
			Help: "Ledger saves rejected because the record changed since it was read",
		}),
		mutationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_mutation_duration_seconds",
			Help:    "Time taken to apply and persist a ledger mutation",
			Buckets: prometheus.DefBuckets,
		}),
		riskScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "customer_risk_score_distribution",
			Help:    "Distribution of computed customer risk scores",
			Buckets: []float64{0, 0.2, 0.4, 0.6, 0.8, 1},
		}),
		alertsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_generated_total",
			Help: "Alerts produced by type and priority",
		}, []string{"type", "priority"}),
		subCheckFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_subcheck_failures_total",
			Help: "Alert sub-checks that could not read their data source",
		}, []string{"check"}),
		forecastConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_confidence_distribution",
			Help:    "Distribution of demand forecast confidence values",
			Buckets: []float64{0.5, 0.6, 0.7, 0.8, 0.9, 0.95},
		}),
		outstandingByShop: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shop_outstanding_amount",
			Help: "Total outstanding udhaar per shop at last summary",
		}, []string{"shop_id"}),
		notificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "alert_notifications_failed_total",
			Help: "Alert reports that could not be published",
		}),
		logger: logger,
	}
}

func (m *MetricsCollector) RecordLedgerMutation(kind string, duration time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "rejected"
	}
	m.ledgerMutations.WithLabelValues(kind, outcome).Inc()
	m.mutationDuration.Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordVersionConflict() {
	m.ledgerConflicts.Inc()
}

func (m *MetricsCollector) RecordRiskScore(score float64) {
	m.riskScores.Observe(score)
}

func (m *MetricsCollector) RecordAlert(alertType, priority string) {
	m.alertsGenerated.WithLabelValues(alertType, priority).Inc()
}

func (m *MetricsCollector) RecordSubCheckFailure(check string) {
	m.subCheckFailures.WithLabelValues(check).Inc()
}

func (m *MetricsCollector) RecordForecastConfidence(confidence float64) {
	m.forecastConfidence.Observe(confidence)
}

func (m *MetricsCollector) UpdateShopOutstanding(shopID string, amount float64) {
	m.outstandingByShop.WithLabelValues(shopID).Set(amount)
}

func (m *MetricsCollector) RecordNotificationFailure() {
	m.notificationsDropped.Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MetricsCollector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}
