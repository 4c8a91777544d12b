/*
store.go - Persistence interface consumed by the ledger

PURPOSE:
  The ledger operations are written against this interface; the SQLite
  implementation lives in store/sqlite. Implementations own the
  cross-process retry policy: every method is expected to retry
  transient lock contention internally and surface
  ErrStorageUnavailable only after exhausting its budget.

CONTRACTS:
  - Get* methods return (nil, nil) when the record does not exist.
  - Insert* methods translate uniqueness violations into the ledger's
    sentinel errors (ErrFolioTaken, ErrDuplicateEnrollment,
    ErrAlreadyExists) so the service can tell a folio race from a
    business duplicate.
  - InsertBackup must be durable before DeleteEnrollment is called;
    the two are deliberately separate calls, not one transaction.
*/
package ledger

import "context"

type Store interface {
	// MaxFolioSuffix returns the highest numeric folio suffix already
	// stored in the scope's series, 0 when the series is empty.
	MaxFolioSuffix(ctx context.Context, scope FolioScope) (int, error)

	// Campaigns
	InsertCampaign(ctx context.Context, c Campaign) error
	GetCampaign(ctx context.Context, id CampaignID) (*Campaign, error)
	ListCampaigns(ctx context.Context) ([]Campaign, error)
	SetActiveCampaign(ctx context.Context, id CampaignID) error

	// Enrollments
	InsertEnrollment(ctx context.Context, e Enrollment) error
	GetEnrollment(ctx context.Context, id EnrollmentID) (*Enrollment, error)
	ListEnrollments(ctx context.Context, campaignID CampaignID) ([]Enrollment, error)
	UpdateEnrollment(ctx context.Context, e Enrollment) error
	FindEnrollmentByName(ctx context.Context, campaignID CampaignID, name string) (*Enrollment, error)
	// DeleteEnrollment removes the enrollment and its payments in one
	// storage transaction. Callers must have written a backup first.
	DeleteEnrollment(ctx context.Context, id EnrollmentID) error
	// InsertEnrollmentWithPayments reinserts a backed-up enrollment and
	// its payment history atomically (the restore path).
	InsertEnrollmentWithPayments(ctx context.Context, e Enrollment, payments []Payment) error

	// Payments
	InsertPayment(ctx context.Context, p Payment) error
	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)
	ListPayments(ctx context.Context, enrollmentID EnrollmentID) ([]Payment, error)
	// MarkPaymentVoided flags a non-voided payment. Returns
	// ErrAlreadyVoided when the row was already flagged, so a race
	// between two void attempts resolves deterministically.
	MarkPaymentVoided(ctx context.Context, id PaymentID, reason string) error

	// Deletion backups
	InsertBackup(ctx context.Context, b DeletionBackup) (BackupHandle, error)
	LatestBackup(ctx context.Context, folio EnrollmentID) (*DeletionBackup, error)
	ListBackups(ctx context.Context) ([]DeletionBackup, error)

	AuditStore
}

// AuditStore is the slice of persistence the audit trail needs. Split
// out so tests can fail audit writes without touching the main store.
type AuditStore interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	QueryAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}
