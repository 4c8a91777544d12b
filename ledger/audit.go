/*
audit.go - Best-effort immutable audit trail

PURPOSE:
  Every mutating ledger operation appends an auditoria row. The trail
  must never block or fail the primary operation: if the append itself
  fails (disk full, lock budget exhausted), the primary result still
  stands and the failure is only logged as a warning.
*/
package ledger

import (
	"context"
	"log"
	"time"
)

// AuditTrail records and queries audit entries.
type AuditTrail struct {
	store  AuditStore
	logger *log.Logger
}

// NewAuditTrail wires the trail to its store. A nil logger falls back
// to the process default.
func NewAuditTrail(store AuditStore, logger *log.Logger) *AuditTrail {
	if logger == nil {
		logger = log.Default()
	}
	return &AuditTrail{store: store, logger: logger}
}

// Record appends an entry. Failures are swallowed and logged; the
// caller's primary operation has already succeeded and must not be
// negated by audit plumbing.
func (t *AuditTrail) Record(ctx context.Context, e AuditEntry) {
	if e.Outcome == "" {
		e.Outcome = OutcomeSuccess
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if err := t.store.AppendAudit(ctx, e); err != nil {
		t.logger.Printf("audit entry lost (%s %s %s/%s): %v",
			e.Actor, e.Action, e.Table, e.RecordID, err)
	}
}

// Query returns entries ordered by timestamp descending, newest first.
func (t *AuditTrail) Query(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	return t.store.QueryAudit(ctx, f)
}
