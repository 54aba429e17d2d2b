// Package metrics provides Prometheus metrics for the Laurel service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChangeSubmissionsTotal tracks pending-change submissions by entity kind and outcome
	ChangeSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "changes",
			Name:      "submissions_total",
			Help:      "Total number of pending-change submissions by entity kind and outcome",
		},
		[]string{"entity_kind", "outcome"},
	)

	// ChangeReviewsTotal tracks review decisions
	ChangeReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "changes",
			Name:      "reviews_total",
			Help:      "Total number of pending-change review decisions",
		},
		[]string{"entity_kind", "decision"},
	)

	// ApproveRollbacksTotal tracks compensating rollbacks during approval
	ApproveRollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "changes",
			Name:      "approve_rollbacks_total",
			Help:      "Total number of canonical-write rollbacks during approval",
		},
		[]string{"entity_kind", "result"},
	)

	// TicketTransitionsTotal tracks loan ticket status transitions
	TicketTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "tickets",
			Name:      "transitions_total",
			Help:      "Total number of loan ticket status transitions",
		},
		[]string{"from", "to"},
	)

	// TicketVersionConflictsTotal tracks optimistic-concurrency conflicts
	TicketVersionConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "tickets",
			Name:      "version_conflicts_total",
			Help:      "Total number of optimistic-concurrency conflicts on ticket writes",
		},
	)

	// DashboardCacheHits tracks dashboard cache effectiveness
	DashboardCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "dashboard",
			Name:      "cache_requests_total",
			Help:      "Dashboard cache lookups by result",
		},
		[]string{"result"},
	)

	// NotifierFailuresTotal tracks swallowed notification delivery failures
	NotifierFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "notifier",
			Name:      "failures_total",
			Help:      "Total number of notification delivery failures (swallowed)",
		},
	)
)
