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

	workerLaunches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "batchctl",
			Subsystem: "worker",
			Name:      "launches_total",
			Help:      "Number of successful worker launches.",
		},
	)
	workerStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "batchctl",
			Subsystem: "worker",
			Name:      "stops_total",
			Help:      "Number of confirmed worker stops (graceful or kill).",
		},
	)
	workerForceKills = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "batchctl",
			Subsystem: "worker",
			Name:      "force_kills_total",
			Help:      "Number of stops that escalated to SIGKILL.",
		},
	)
	staleCleanups = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "batchctl",
			Subsystem: "worker",
			Name:      "stale_cleanups_total",
			Help:      "Number of stale handle files removed.",
		},
	)
	workerUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "batchctl",
			Subsystem: "worker",
			Name:      "up",
			Help:      "Whether the supervised worker is currently running.",
		},
	)
	journalsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "batchctl",
			Subsystem: "progress",
			Name:      "journals",
			Help:      "Journals in the progress log per outcome status.",
		}, []string{"status"},
	)
	articlesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "batchctl",
			Subsystem: "progress",
			Name:      "articles_total",
			Help:      "Total articles downloaded (success and skipped journals).",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{workerLaunches, workerStops, workerForceKills, staleCleanups, workerUp, journalsByStatus, articlesTotal}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// Already registered is fine (allows double Register with default registry)
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

// Lightweight helpers used by internal packages. They no-op until Register
// has been called.

func IncLaunch() {
	if regOK.Load() {
		workerLaunches.Inc()
	}
}

func IncStop() {
	if regOK.Load() {
		workerStops.Inc()
	}
}

func IncForceKill() {
	if regOK.Load() {
		workerForceKills.Inc()
	}
}

func IncStaleCleanup() {
	if regOK.Load() {
		staleCleanups.Inc()
	}
}

func SetWorkerUp(up bool) {
	if !regOK.Load() {
		return
	}
	if up {
		workerUp.Set(1)
	} else {
		workerUp.Set(0)
	}
}

// SetProgress refreshes the progress gauges from aggregate counts.
func SetProgress(success, skipped, notFound, failed, articles int) {
	if !regOK.Load() {
		return
	}
	journalsByStatus.WithLabelValues("success").Set(float64(success))
	journalsByStatus.WithLabelValues("skipped").Set(float64(skipped))
	journalsByStatus.WithLabelValues("not_found").Set(float64(notFound))
	journalsByStatus.WithLabelValues("failed").Set(float64(failed))
	articlesTotal.Set(float64(articles))
}
