package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks command pipeline activity.
//
// Usage:
//
//	metrics := observability.NewMetrics(nil)
//	metrics.CommandsProcessed.WithLabelValues("ok").Inc()
type Metrics struct {
	// CommandsProcessed counts dispatched commands.
	// Labels: status (ok|denied|compile_failed|plugin_stopped|usage|error)
	CommandsProcessed *prometheus.CounterVec

	// CompileFailures counts parameter-compiler rejections.
	// Labels: reason (command_disabled|command_exclusive|parameter_disabled|parameter_invalid)
	CompileFailures *prometheus.CounterVec

	// QueueDropped counts enqueue failures on the full command queue.
	QueueDropped prometheus.Counter

	// HistoryDropped counts history appends refused at capacity.
	HistoryDropped prometheus.Counter

	// AliasExpansions counts generic alias expansions.
	AliasExpansions prometheus.Counter

	// HandlerDuration measures handler execution time in seconds.
	// Labels: plugin, command
	HandlerDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all pipeline metrics. Passing nil uses
// the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		CommandsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voxbot_commands_processed_total",
				Help: "Commands drained from the processing queue, by outcome.",
			},
			[]string{"status"},
		),
		CompileFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voxbot_compile_failures_total",
				Help: "Parameter compilation rejections, by reason.",
			},
			[]string{"reason"},
		),
		QueueDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "voxbot_queue_dropped_total",
				Help: "Commands refused by the full pending-command queue.",
			},
		),
		HistoryDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "voxbot_history_dropped_total",
				Help: "Commands the bounded history refused at capacity.",
			},
		),
		AliasExpansions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "voxbot_alias_expansions_total",
				Help: "Generic alias expansions performed.",
			},
		),
		HandlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voxbot_handler_duration_seconds",
				Help:    "Command handler execution time.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"plugin", "command"},
		),
	}
}
