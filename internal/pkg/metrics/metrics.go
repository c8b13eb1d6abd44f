// Package metrics provides Prometheus metrics recording for internal packages.
// It sits below service, physics and storage so none of them import the
// HTTP middleware for instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bakeBodies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_bake_bodies_total",
			Help: "Bodies processed by bakes, by outcome",
		},
		[]string{"status"},
	)

	bakeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stage_bake_duration_seconds",
			Help:    "Wall time of a whole bake request",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	bakeRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stage_bake_rejected_total",
			Help: "Bakes rejected because a (scene, object) slot was already held",
		},
	)

	bakesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stage_bakes_in_flight",
			Help: "Bakes currently holding their guard",
		},
	)

	physicsFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stage_physics_fetch_duration_seconds",
			Help:    "Physics trajectory fetch latency",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	physicsCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stage_physics_circuit_state",
			Help: "Physics circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"breaker"},
	)

	cameraEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_camera_evaluations_total",
			Help: "Camera path evaluations, by mode and outcome",
		},
		[]string{"mode", "status"},
	)

	storageOps = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stage_storage_operation_duration_seconds",
			Help:    "Storage operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"store", "operation"},
	)

	storageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_storage_errors_total",
			Help: "Storage operation failures",
		},
		[]string{"store", "operation"},
	)
)

// RecordBakeBody counts one body's outcome ("ok", "failed", "canceled")
func RecordBakeBody(status string) {
	bakeBodies.WithLabelValues(status).Inc()
}

// RecordBakeDuration records how long a bake took
func RecordBakeDuration(d time.Duration) {
	bakeDuration.Observe(d.Seconds())
}

// RecordBakeRejected counts a guard rejection
func RecordBakeRejected() {
	bakeRejected.Inc()
}

// BakeStarted and BakeFinished bracket a bake holding its guard
func BakeStarted()  { bakesInFlight.Inc() }
func BakeFinished() { bakesInFlight.Dec() }

// RecordPhysicsFetch records one trajectory fetch
func RecordPhysicsFetch(status string, d time.Duration) {
	physicsFetchDuration.WithLabelValues(status).Observe(d.Seconds())
}

// SetPhysicsCircuitState publishes a breaker transition
func SetPhysicsCircuitState(breaker string, state int) {
	physicsCircuitState.WithLabelValues(breaker).Set(float64(state))
}

// RecordCameraEvaluation counts one evaluation
func RecordCameraEvaluation(mode, status string) {
	cameraEvaluations.WithLabelValues(mode, status).Inc()
}

// RecordStorageOp records a storage call, counting failures separately
func RecordStorageOp(store, operation string, d time.Duration, err error) {
	storageOps.WithLabelValues(store, operation).Observe(d.Seconds())
	if err != nil {
		storageErrors.WithLabelValues(store, operation).Inc()
	}
}
