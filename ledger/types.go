/*
Package ledger implements the cooperation payment ledger: campaigns,
per-person enrollments, append-only payments, an immutable audit trail,
and safe-delete with restorable backups.

PURPOSE:
  This is the monetary core of the community system. Several
  independently launched desktop processes (census, payments,
  work-hours) share one SQLite file; this package guarantees that no
  payment is silently lost or double-counted under that contention.

KEY CONCEPTS IN THIS FILE (types.go):
  - Campaign: a named fundraising effort ("cooperación")
  - Enrollment: one person's participation in one campaign; its ID is
    the human-readable folio (e.g. PC-0007)
  - Payment: append-only money record; voided rows are flagged, never
    deleted
  - AuditEntry: immutable record of every mutating operation
  - DeletionBackup: full snapshot written before any hard delete

DESIGN PRINCIPLES:
  1. Facts only: payment state is computed from non-voided payment
     sums, never stored as a column that can drift
  2. Precision: decimal.Decimal for all money, stored as TEXT
  3. Append-only payments: corrections go through the void path
  4. Auditability: every mutation leaves an auditoria row

SEE ALSO:
  - classifier.go: payment state derivation and legal transitions
  - service.go: the ledger operations
  - store/sqlite: persistence and the cross-process retry policy
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CampaignID string
type EnrollmentID string
type PaymentID string

// BackupHandle identifies a single deletion backup row.
type BackupHandle int64

// =============================================================================
// CAMPAIGN - a fundraising effort ("cooperación")
// =============================================================================

type Campaign struct {
	ID            CampaignID
	Name          string
	Project       string
	DefaultAmount decimal.Decimal // expected contribution unless overridden per person
	Active        bool            // at most one campaign is the UI default
	CreatedAt     time.Time
}

// =============================================================================
// ENROLLMENT - one person in one campaign
// =============================================================================

// Enrollment links a census person to a campaign. The census person is
// referenced by ID only; this package never writes census data.
//
// The ID doubles as the enrollment's folio. Name is snapshotted from
// the census at enrollment time so the ledger stays readable even if
// the census record later changes or disappears.
type Enrollment struct {
	ID         EnrollmentID
	CampaignID CampaignID
	PersonID   string
	Name       string
	Expected   decimal.Decimal
	Notes      string
	AddedAt    time.Time

	// Computed on read from non-voided payments; never persisted.
	Status PaymentStatus   `json:"-"`
	Paid   decimal.Decimal `json:"-"`
}

// =============================================================================
// PAYMENT - append-only money record
// =============================================================================

// Payment is permanent audit evidence. Voiding sets Voided and
// VoidReason; the row itself is never updated otherwise and never
// deleted except together with its enrollment (after a backup).
type Payment struct {
	ID           PaymentID
	EnrollmentID EnrollmentID
	Amount       decimal.Decimal
	PaidDate     string // "2006-01-02"
	PaidTime     string // "15:04:05"
	Concept      string
	RecordedBy   string
	Voided       bool
	VoidReason   string
	RecordedAt   time.Time
}

// =============================================================================
// AUDIT ENTRY
// =============================================================================

type AuditAction string

const (
	ActionCreate  AuditAction = "CREATE"
	ActionEdit    AuditAction = "EDIT"
	ActionDelete  AuditAction = "DELETE"
	ActionPay     AuditAction = "PAY"
	ActionVoid    AuditAction = "VOID"
	ActionRestore AuditAction = "RESTORE"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuditEntry is append-only: normal operations never edit or delete a
// row once written.
type AuditEntry struct {
	ID       int64
	Actor    string
	Action   AuditAction
	Table    string
	RecordID string
	At       time.Time
	Details  string
	Outcome  string
}

// AuditFilter narrows an audit query. Zero fields match everything.
type AuditFilter struct {
	Actor  string
	Action AuditAction
	Table  string
	Limit  int
}

// =============================================================================
// DELETION BACKUP
// =============================================================================

// EnrollmentSnapshot is the serialized form stored inside a backup row.
type EnrollmentSnapshot struct {
	Enrollment Enrollment `json:"enrollment"`
	Payments   []Payment  `json:"payments"`
}

// DeletionBackup is written before any hard delete of an enrollment.
// It is read only by the restore operation and never auto-expired.
type DeletionBackup struct {
	ID         BackupHandle
	Folio      EnrollmentID
	CampaignID CampaignID
	Actor      string
	Reason     string
	At         time.Time
	Snapshot   EnrollmentSnapshot
}
