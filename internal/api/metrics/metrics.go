// Package metrics defines and registers all custom Prometheus metrics for the
// dashboard session service. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics are registered with the default registry on package init via
// promauto, so importing the package is enough.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dashboard"

// ── Session metrics ───────────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - result: "authenticated", "password_reset_required", or the failure reason
//     (e.g. "invalid_credentials", "no_valid_role", "backend_unavailable", "busy")
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// PasswordResetsTotal counts first-login password resets.
// Label:
//   - result: "ok" or the failure reason
var PasswordResetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_resets_total",
		Help:      "Total number of first-login password reset attempts, by result.",
	},
	[]string{"result"},
)

// RoleSwitchesTotal counts role switch requests.
// Labels:
//   - role: the requested role
//   - applied: "true" when the role became current, "false" for a no-op
var RoleSwitchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_switches_total",
		Help:      "Total number of role switch requests.",
	},
	[]string{"role", "applied"},
)

var LogoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logouts_total",
		Help:      "Total number of logouts.",
	},
)

// RevalidationsTotal counts session revalidations against the identity backend.
// Label:
//   - result: "ok" or the failure reason (e.g. "session_expired")
var RevalidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "revalidations_total",
		Help:      "Total number of session revalidations, by result.",
	},
	[]string{"result"},
)

// ── Route guard metrics ───────────────────────────────────────────────────────

// GuardDecisionsTotal counts route guard verdicts.
// Labels:
//   - outcome: "allow" or "redirect"
//   - reason: the guard rule that fired (e.g. "misrouted", "password_reset_required")
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard decisions.",
	},
	[]string{"outcome", "reason"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditQueueDepth tracks the number of session events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of session events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditEventsTotal counts audit events by outcome.
// Label:
//   - result: "stored", "failed", or "dropped" (queue full)
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Total number of session audit events, by outcome.",
	},
	[]string{"result"},
)

// AuditWriteDuration measures how long persisting one audit event takes.
var AuditWriteDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "audit_write_duration_seconds",
		Help:      "Duration of a single session event write.",
		Buckets:   prometheus.DefBuckets,
	},
)
