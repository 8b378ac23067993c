package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksDispatched counts tasks handed to the queue or stored for later
	TasksDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "tasks_dispatched_total",
			Help:      "The total number of dispatched tasks",
		},
		[]string{"type", "mode"},
	)

	// TaskDispatchFailures counts failed dispatch attempts
	TaskDispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "task_dispatch_failed_total",
			Help:      "The total number of failed task dispatches",
		},
		[]string{"type"},
	)

	// AmendmentsRecorded counts amendment log writes by outcome (created, merged, preapproved)
	AmendmentsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "amendments_recorded_total",
			Help:      "The total number of recorded amendments",
		},
		[]string{"kind", "outcome"},
	)

	// AmendmentsResolved counts staff decisions on amendment logs
	AmendmentsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "amendments_resolved_total",
			Help:      "The total number of approved or rejected amendments",
		},
		[]string{"kind", "decision"},
	)

	// StatusTransitions counts booking status and eligibility changes
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "status_transitions_total",
			Help:      "The total number of booking status transitions",
		},
		[]string{"axis", "to"},
	)

	// ReconcileDuration is the time spent reconciling a submission
	ReconcileDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "bookings",
			Name:       "reconcile_duration_seconds",
			Help:       "The time spent reconciling submissions",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"amended"},
	)
)
