package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for one dispatch process.
// All Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Storage and messaging
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec
	KafkaEventsPublished     *prometheus.CounterVec
	OutboxEventsPending      prometheus.Gauge

	// Dispatch metrics
	ScansTotal          *prometheus.CounterVec
	GatewayCalls        *prometheus.CounterVec
	GatewayCallDuration *prometheus.HistogramVec
	PrintJobs           *prometheus.CounterVec
	CarrierRequests     *prometheus.CounterVec
	ShipmentsShipped    prometheus.Counter

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates a new Metrics instance on its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operations_total",
			Help:      "Total number of MongoDB operations",
		},
		[]string{"service", "collection", "operation", "status"},
	)

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "collection", "operation"},
	)

	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "kafka_events_published_total",
			Help:      "Total number of Kafka events published",
		},
		[]string{"service", "topic", "event_type", "status"},
	)

	m.OutboxEventsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "outbox_events_pending",
			Help:        "Outbox events found unpublished in the last poll",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "dispatch",
			Name:      "scans_total",
			Help:      "Barcode scans by resolution outcome",
		},
		[]string{"service", "outcome"},
	)

	m.GatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "dispatch",
			Name:      "gateway_calls_total",
			Help:      "Calls made to the fulfillment and print gateways",
		},
		[]string{"service", "op", "status"},
	)

	m.GatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: "dispatch",
			Name:      "gateway_call_duration_seconds",
			Help:      "Gateway call duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "op"},
	)

	m.PrintJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "dispatch",
			Name:      "print_jobs_total",
			Help:      "Label print jobs by mode and result",
		},
		[]string{"service", "mode", "status"},
	)

	m.CarrierRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: "dispatch",
			Name:      "carrier_requests_total",
			Help:      "Requests made to the carrier label API",
		},
		[]string{"service", "op", "status"},
	)

	m.ShipmentsShipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "dispatch",
			Name:        "shipments_shipped_total",
			Help:        "Shipments marked shipped by the fulfillment gateway",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.KafkaEventsPublished,
		m.OutboxEventsPending,
		m.ScansTotal,
		m.GatewayCalls,
		m.GatewayCallDuration,
		m.PrintJobs,
		m.CarrierRequests,
		m.ShipmentsShipped,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, status(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// RecordKafkaPublish records a Kafka publish
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool) {
	if m == nil {
		return
	}
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, status(success)).Inc()
}

// SetOutboxPending sets the number of unpublished outbox events seen in a poll
func (m *Metrics) SetOutboxPending(n int) {
	if m == nil {
		return
	}
	m.OutboxEventsPending.Set(float64(n))
}

// RecordScan records the outcome of one scan resolution
func (m *Metrics) RecordScan(outcome string) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(m.serviceName, outcome).Inc()
}

// RecordGatewayCall records a call to a remote gateway
func (m *Metrics) RecordGatewayCall(op string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.GatewayCalls.WithLabelValues(m.serviceName, op, status(success)).Inc()
	m.GatewayCallDuration.WithLabelValues(m.serviceName, op).Observe(duration.Seconds())
}

// RecordPrintJob records a label print job; mode is "existing" or "generated"
func (m *Metrics) RecordPrintJob(mode string, success bool) {
	if m == nil {
		return
	}
	m.PrintJobs.WithLabelValues(m.serviceName, mode, status(success)).Inc()
}

// RecordCarrierRequest records a carrier API request
func (m *Metrics) RecordCarrierRequest(op string, success bool) {
	if m == nil {
		return
	}
	m.CarrierRequests.WithLabelValues(m.serviceName, op, status(success)).Inc()
}

// RecordShipmentShipped records a successful mark-shipped update
func (m *Metrics) RecordShipmentShipped() {
	if m == nil {
		return
	}
	m.ShipmentsShipped.Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}
