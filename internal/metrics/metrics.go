package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devmux",
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Number of successful process spawns.",
		}, []string{"project", "name"},
	)
	processStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devmux",
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Number of clean stops (requested or exit 0).",
		}, []string{"project", "name"},
	)
	processCrashes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devmux",
			Subsystem: "process",
			Name:      "crashes_total",
			Help:      "Number of unexpected exits (nonzero code or signal).",
		}, []string{"project", "name"},
	)
	processRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devmux",
			Subsystem: "process",
			Name:      "restarts_total",
			Help:      "Number of crash-triggered automatic restarts.",
		}, []string{"project", "name"},
	)
	runningProcesses = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "devmux",
			Subsystem: "process",
			Name:      "running",
			Help:      "Currently running processes per project.",
		}, []string{"project"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devmux",
			Subsystem: "process",
			Name:      "state_transitions_total",
			Help:      "Number of state transitions between process states.",
		}, []string{"name", "from", "to"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{processStarts, processStops, processCrashes, processRestarts, runningProcesses, stateTransitions}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncStart(project, name string) {
	if regOK.Load() {
		processStarts.WithLabelValues(project, name).Inc()
	}
}
func IncStop(project, name string) {
	if regOK.Load() {
		processStops.WithLabelValues(project, name).Inc()
	}
}
func IncCrash(project, name string) {
	if regOK.Load() {
		processCrashes.WithLabelValues(project, name).Inc()
	}
}
func IncRestart(project, name string) {
	if regOK.Load() {
		processRestarts.WithLabelValues(project, name).Inc()
	}
}
func AddRunning(project string, delta int) {
	if regOK.Load() {
		runningProcesses.WithLabelValues(project).Add(float64(delta))
	}
}
func RecordStateTransition(name, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(name, from, to).Inc()
	}
}
