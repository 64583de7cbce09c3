package port

import (
	"context"

	"github.com/caldora/practice-authz/internal/core/domain"
)

// AuditSink records permission decisions append-only. Sinks are best-effort:
// a failed write must not block the underlying operation, but it must surface
// as a degraded-mode signal rather than disappear.
type AuditSink interface {
	Record(ctx context.Context, record domain.AuditRecord) error
}
