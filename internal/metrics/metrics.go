// Package metrics registers Prometheus collectors for the ingestion and
// control paths. Collectors are package-level and registered once; helper
// functions are nil-safe so code paths work before Init is called (tests).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "iotcore_"

var (
	registerOnce sync.Once

	readingsIngested *prometheus.CounterVec
	readingsRejected *prometheus.CounterVec

	commandsSent     prometheus.Counter
	commandsRejected *prometheus.CounterVec
	confirmations    *prometheus.CounterVec

	workerDropped prometheus.Counter
	workerDepth   prometheus.Gauge
)

// Init registers all collectors with the default registry.
// Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		readingsIngested = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_ingested_total",
				Help: "Total telemetry readings accepted by device",
			},
			[]string{"device"},
		)
		readingsRejected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_rejected_total",
				Help: "Total telemetry readings rejected by reason",
			},
			[]string{"reason"},
		)

		commandsSent = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_sent_total",
				Help: "Total LED commands accepted for delivery",
			},
		)
		commandsRejected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_rejected_total",
				Help: "Total LED commands rejected by reason",
			},
			[]string{"reason"},
		)
		confirmations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "confirmations_total",
				Help: "Total device confirmations by type",
			},
			[]string{"type"},
		)

		workerDropped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "worker_tasks_dropped_total",
				Help: "Total store-write tasks dropped due to a full queue",
			},
		)
		workerDepth = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "worker_queue_depth",
				Help: "Current store-write queue depth",
			},
		)

		prometheus.MustRegister(
			readingsIngested,
			readingsRejected,
			commandsSent,
			commandsRejected,
			confirmations,
			workerDropped,
			workerDepth,
		)
	})
}

// IncReadingIngested counts an accepted telemetry reading.
func IncReadingIngested(device string) {
	if device == "" {
		device = "unknown"
	}
	if readingsIngested != nil {
		readingsIngested.WithLabelValues(device).Inc()
	}
}

// IncReadingRejected counts a rejected telemetry reading.
func IncReadingRejected(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if readingsRejected != nil {
		readingsRejected.WithLabelValues(reason).Inc()
	}
}

// IncCommandSent counts a command accepted for delivery.
func IncCommandSent() {
	if commandsSent != nil {
		commandsSent.Inc()
	}
}

// IncCommandRejected counts a rejected command.
func IncCommandRejected(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if commandsRejected != nil {
		commandsRejected.WithLabelValues(reason).Inc()
	}
}

// IncConfirmation counts a received confirmation by record type.
func IncConfirmation(recordType string) {
	if recordType == "" {
		recordType = "unknown"
	}
	if confirmations != nil {
		confirmations.WithLabelValues(recordType).Inc()
	}
}

// IncWorkerDropped counts a task dropped because the queue was full.
func IncWorkerDropped() {
	if workerDropped != nil {
		workerDropped.Inc()
	}
}

// SetWorkerDepth records the current queue depth.
func SetWorkerDepth(depth int) {
	if workerDepth != nil {
		workerDepth.Set(float64(depth))
	}
}
