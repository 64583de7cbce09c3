package telemetry

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
)

// Metrics exposes Prometheus collectors for authorization decisions.
type Metrics struct {
	decisions      *prometheus.CounterVec
	auditFailures  prometheus.Counter
	cacheFallbacks prometheus.Counter
}

var _ port.DecisionMetrics = (*Metrics)(nil)

// NewMetrics constructs decision collectors and registers them with the provided registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authz",
		Name:      "decisions_total",
		Help:      "Total number of authorization decisions partitioned by outcome and granted scope.",
	}, []string{"granted", "scope"})

	if err := reg.Register(decisions); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				decisions = existing
			} else {
				return nil, fmt.Errorf("existing decisions collector has unexpected type %T", already.ExistingCollector)
			}
		} else {
			return nil, fmt.Errorf("register decisions collector: %w", err)
		}
	}

	auditFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "authz",
		Name:      "audit_failures_total",
		Help:      "Total number of decisions that could not be written to the audit sink.",
	})

	if err := reg.Register(auditFailures); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				auditFailures = existing
			} else {
				return nil, fmt.Errorf("existing audit failures collector has unexpected type %T", already.ExistingCollector)
			}
		} else {
			return nil, fmt.Errorf("register audit failures collector: %w", err)
		}
	}

	cacheFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "authz",
		Name:      "cache_fallbacks_total",
		Help:      "Total number of permission lookups served from the authoritative store after a cache failure.",
	})

	if err := reg.Register(cacheFallbacks); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				cacheFallbacks = existing
			} else {
				return nil, fmt.Errorf("existing cache fallbacks collector has unexpected type %T", already.ExistingCollector)
			}
		} else {
			return nil, fmt.Errorf("register cache fallbacks collector: %w", err)
		}
	}

	return &Metrics{
		decisions:      decisions,
		auditFailures:  auditFailures,
		cacheFallbacks: cacheFallbacks,
	}, nil
}

// ObserveDecision records one authorization decision outcome.
func (m *Metrics) ObserveDecision(granted bool, scope domain.Scope) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.With(prometheus.Labels{
		"granted": strconv.FormatBool(granted),
		"scope":   string(scope),
	}).Inc()
}

// ObserveAuditFailure records a decision that was served without an audit record.
func (m *Metrics) ObserveAuditFailure() {
	if m == nil || m.auditFailures == nil {
		return
	}
	m.auditFailures.Inc()
}

// ObserveCacheFallback records a permission lookup that bypassed the cache.
func (m *Metrics) ObserveCacheFallback() {
	if m == nil || m.cacheFallbacks == nil {
		return
	}
	m.cacheFallbacks.Inc()
}
