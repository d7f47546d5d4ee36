// Package metrics provides Prometheus metrics for the typing race pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "typerace"

// registry holds all pipeline metrics; the default registerer is avoided so the
// /metrics endpoint exposes only what the pipeline reports.
var registry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton metrics registry

var (
	devicesConnected = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "devices_connected",
		Help:      "Number of keyboard devices currently connected.",
	})
	deviceConnects = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "device_connects_total",
		Help:      "Total device connect events observed.",
	})
	deviceDisconnects = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "device_disconnects_total",
		Help:      "Total device disconnect events observed.",
	})
	snapshotFailures = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "snapshot_failures_total",
		Help:      "Device snapshot reads that failed and were skipped.",
	})
	ticksSkipped = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "ticks_skipped_total",
		Help:      "Monitor ticks skipped because the previous tick was still running.",
	})

	eventsRouted = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "events_routed_total",
		Help:      "Key events decoded and forwarded by the router.",
	})
	reportsDiscarded = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "reports_discarded_total",
		Help:      "Raw reports discarded as key releases or malformed frames.",
	})
	streamErrors = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "stream_errors_total",
		Help:      "Per-device stream open or read errors.",
	}, []string{"device"})
	heuristicEvents = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "heuristic_events_total",
		Help:      "Events attributed by the low-confidence timing heuristic.",
	})

	queueDepth = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Current number of key events waiting for judgment.",
	})
	queueDrops = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "drops_total",
		Help:      "Key events dropped because the queue was full or closed.",
	})

	keystrokesJudged = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "judge",
		Name:      "keystrokes_total",
		Help:      "Keystrokes judged, labelled by outcome.",
	}, []string{"outcome"})
	completions = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "judge",
		Name:      "completions_total",
		Help:      "Contestants that completed their target phrase.",
	})
	judgeLatency = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "judge",
		Name:      "latency_seconds",
		Help:      "Time spent judging a single key event.",
		Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
	})
)

// Registry returns the registry backing the /metrics endpoint.
func Registry() *prometheus.Registry { return registry }

// Monitor helpers.
func UpdateDevicesConnected(n int) { devicesConnected.Set(float64(n)) }
func RecordDeviceConnect()         { deviceConnects.Inc() }
func RecordDeviceDisconnect()      { deviceDisconnects.Inc() }
func RecordSnapshotFailure()       { snapshotFailures.Inc() }
func RecordTickSkipped()           { ticksSkipped.Inc() }

// Router helpers.
func RecordEventRouted()              { eventsRouted.Inc() }
func RecordReportDiscarded()          { reportsDiscarded.Inc() }
func RecordStreamError(device string) { streamErrors.WithLabelValues(device).Inc() }
func RecordHeuristicEvent()           { heuristicEvents.Inc() }

// Queue helpers.
func UpdateQueueDepth(n int) { queueDepth.Set(float64(n)) }
func RecordQueueDrop()       { queueDrops.Inc() }

// Judgment helpers.
func RecordKeystroke(outcome string)     { keystrokesJudged.WithLabelValues(outcome).Inc() }
func RecordCompletion()                  { completions.Inc() }
func RecordJudgeLatency(seconds float64) { judgeLatency.Observe(seconds) }

// Keystroke outcome labels.
const (
	OutcomeCorrect   = "correct"
	OutcomeIncorrect = "incorrect"
	OutcomeBackspace = "backspace"
	OutcomeInvalid   = "invalid"
	OutcomeIgnored   = "ignored"
)
