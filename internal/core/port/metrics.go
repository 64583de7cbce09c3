package port

import "github.com/caldora/practice-authz/internal/core/domain"

// DecisionMetrics receives authorization outcomes for monitoring.
type DecisionMetrics interface {
	ObserveDecision(granted bool, scope domain.Scope)
	ObserveAuditFailure()
	ObserveCacheFallback()
}
