package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

// WorkerMetrics covers document processing, classifier decisions and
// filename resolution. It satisfies ports.DecisionObserver.
type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec

	decisionsTotal   *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec
	decisionScore    *prometheus.HistogramVec
	oracleTotal      *prometheus.CounterVec
	oracleDuration   *prometheus.HistogramVec
	filenamesTotal   *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total processed documents by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archive",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "archive",
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight document processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archive",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive",
			Subsystem: "classifier",
			Name:      "decisions_total",
			Help:      "Total classification decisions by method and confidence level.",
		},
		[]string{"service", "method", "level"},
	)
	decisionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archive",
			Subsystem: "classifier",
			Name:      "decision_duration_seconds",
			Help:      "Time to reach a classification decision by method.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method"},
	)
	decisionScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archive",
			Subsystem: "classifier",
			Name:      "confidence_score",
			Help:      "Distribution of final confidence scores by method.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service", "method"},
	)
	oracleTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive",
			Subsystem: "oracle",
			Name:      "calls_total",
			Help:      "Total oracle consultations by outcome.",
		},
		[]string{"service", "outcome"},
	)
	oracleDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archive",
			Subsystem: "oracle",
			Name:      "call_duration_seconds",
			Help:      "Oracle consultation duration in seconds by outcome.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"service", "outcome"},
	)
	filenamesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archive",
			Subsystem: "naming",
			Name:      "filename_resolutions_total",
			Help:      "Total filename resolutions by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		processTotal,
		processDuration,
		processInFlight,
		queueLag,
		decisionsTotal,
		decisionDuration,
		decisionScore,
		oracleTotal,
		oracleDuration,
		filenamesTotal,
	)

	return &WorkerMetrics{
		service:          service,
		registry:         registry,
		processTotal:     processTotal,
		processDuration:  processDuration,
		processInFlight:  processInFlight,
		queueLag:         queueLag,
		decisionsTotal:   decisionsTotal,
		decisionDuration: decisionDuration,
		decisionScore:    decisionScore,
		oracleTotal:      oracleTotal,
		oracleDuration:   oracleDuration,
		filenamesTotal:   filenamesTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(m.service, status).Inc()
	m.processDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveDecision(decision domain.Decision, elapsed time.Duration) {
	method := string(decision.Method)
	if method == "" {
		method = "unknown"
	}
	level := string(decision.ConfidenceLevel)
	if level == "" {
		level = "none"
	}
	m.decisionsTotal.WithLabelValues(m.service, method, level).Inc()
	m.decisionDuration.WithLabelValues(m.service, method).Observe(elapsed.Seconds())
	if decision.Method != domain.MethodError {
		m.decisionScore.WithLabelValues(m.service, method).Observe(decision.ConfidenceScore)
	}
}

func (m *WorkerMetrics) ObserveOracle(outcome string, elapsed time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.oracleTotal.WithLabelValues(m.service, outcome).Inc()
	m.oracleDuration.WithLabelValues(m.service, outcome).Observe(elapsed.Seconds())
}

func (m *WorkerMetrics) RecordFilename(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.filenamesTotal.WithLabelValues(m.service, status).Inc()
}
