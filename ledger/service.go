/*
service.go - The ledger operations

PURPOSE:
  Each exported method is a single-invariant-preserving unit of work:
  enroll, register payment, void payment, edit enrollment,
  backup-then-delete, restore, plus campaign management. The UI layer
  calls these with plain data and gets plain data back.

CONTROL FLOW:
  UI → Service → (folio derivation | classifier) → Store → SQLite.
  Every successful mutation also appends an audit entry; audit failures
  never roll back the primary operation.

CONCURRENCY:
  The store retries transient lock contention internally. The one
  business-level race - two processes deriving the same folio - is
  resolved here by conflict detection plus bounded retry, because
  locking cannot be enforced across independently launched processes.
*/
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/census"
)

// Table names as they appear in auditoria rows.
const (
	TableCampaigns   = "cooperaciones"
	TableEnrollments = "personas_cooperacion"
	TablePayments    = "pagos_coop"
)

// Reauthenticator re-verifies an actor's credential. Required for the
// void path, which mutates historical money records.
type Reauthenticator interface {
	Verify(actor, credential string) error
}

// Service implements the ledger operations over a Store.
type Service struct {
	store  Store
	census census.Directory
	trail  *AuditTrail
	reauth Reauthenticator
	limits Limits
}

// NewService wires the ledger together. Zero-valued limits fall back
// to DefaultLimits.
func NewService(store Store, dir census.Directory, trail *AuditTrail, reauth Reauthenticator, limits Limits) *Service {
	def := DefaultLimits()
	if limits.FolioRetries <= 0 {
		limits.FolioRetries = def.FolioRetries
	}
	if limits.MinAmount.IsZero() {
		limits.MinAmount = def.MinAmount
	}
	if limits.MaxAmount.IsZero() {
		limits.MaxAmount = def.MaxAmount
	}
	return &Service{store: store, census: dir, trail: trail, reauth: reauth, limits: limits}
}

// =============================================================================
// CAMPAIGNS
// =============================================================================

// CreateCampaign registers a new cooperación with a unique name and a
// default expected amount.
func (s *Service) CreateCampaign(ctx context.Context, name, project string, defaultAmount decimal.Decimal, actor string) (Campaign, error) {
	if err := ValidateName("nombre", name); err != nil {
		return Campaign{}, err
	}
	if err := ValidateAmount("monto_cooperacion", defaultAmount, s.limits); err != nil {
		return Campaign{}, err
	}

	c := Campaign{
		Name:          name,
		Project:       project,
		DefaultAmount: defaultAmount,
		CreatedAt:     time.Now().UTC(),
	}
	folio, err := s.insertWithFolio(ctx, ScopeCampaign, func(folio string) error {
		c.ID = CampaignID(folio)
		return s.store.InsertCampaign(ctx, c)
	})
	if err != nil {
		return Campaign{}, err
	}

	s.trail.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   ActionCreate,
		Table:    TableCampaigns,
		RecordID: folio,
		Details:  detailsJSON(map[string]string{"nombre": name, "monto_cooperacion": defaultAmount.String()}),
	})
	return c, nil
}

// SetActiveCampaign marks one campaign as the UI default, clearing the
// flag on every other campaign.
func (s *Service) SetActiveCampaign(ctx context.Context, id CampaignID, actor string) error {
	if err := s.store.SetActiveCampaign(ctx, id); err != nil {
		return err
	}
	s.trail.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   ActionEdit,
		Table:    TableCampaigns,
		RecordID: string(id),
		Details:  `{"activa":{"before":"0","after":"1"}}`,
	})
	return nil
}

func (s *Service) GetCampaign(ctx context.Context, id CampaignID) (*Campaign, error) {
	return s.store.GetCampaign(ctx, id)
}

func (s *Service) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	return s.store.ListCampaigns(ctx)
}

// =============================================================================
// ENROLLMENT
// =============================================================================

// Enroll adds a census person to a campaign. The expected amount
// defaults from the campaign unless overridden. Fails with
// ErrDuplicateEnrollment if the person is already in the campaign.
func (s *Service) Enroll(ctx context.Context, campaignID CampaignID, personID string, expected *decimal.Decimal, notes, actor string) (Enrollment, error) {
	campaign, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return Enrollment{}, err
	}
	if campaign == nil {
		return Enrollment{}, fmt.Errorf("cooperación %s: %w", campaignID, ErrNotFound)
	}

	person, err := s.census.GetPerson(ctx, personID)
	if err != nil {
		if errors.Is(err, census.ErrPersonNotFound) {
			return Enrollment{}, fmt.Errorf("habitante %s: %w", personID, ErrNotFound)
		}
		return Enrollment{}, err
	}

	amount := campaign.DefaultAmount
	if expected != nil {
		amount = *expected
	}
	if err := ValidateAmount("monto_esperado", amount, s.limits); err != nil {
		return Enrollment{}, err
	}

	e := Enrollment{
		CampaignID: campaignID,
		PersonID:   person.ID,
		Name:       person.Name,
		Expected:   amount,
		Notes:      notes,
		AddedAt:    time.Now().UTC(),
		Status:     StatusPending,
		Paid:       decimal.Zero,
	}
	folio, err := s.insertWithFolio(ctx, ScopeEnrollment, func(folio string) error {
		e.ID = EnrollmentID(folio)
		return s.store.InsertEnrollment(ctx, e)
	})
	if err != nil {
		return Enrollment{}, err
	}

	s.trail.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   ActionCreate,
		Table:    TableEnrollments,
		RecordID: folio,
		Details: detailsJSON(map[string]string{
			"cooperacion_id": string(campaignID),
			"habitante_id":   person.ID,
			"nombre":         person.Name,
			"monto_esperado": amount.String(),
		}),
	})
	return e, nil
}

// GetEnrollment returns an enrollment with its derived status filled
// in. Status is always recomputed from storage; there is no cached
// total that a sibling process could make stale.
func (s *Service) GetEnrollment(ctx context.Context, id EnrollmentID) (*Enrollment, error) {
	e, err := s.store.GetEnrollment(ctx, id)
	if err != nil || e == nil {
		return e, err
	}
	if err := s.fillStatus(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEnrollments returns a campaign's enrollments with derived status.
func (s *Service) ListEnrollments(ctx context.Context, campaignID CampaignID) ([]Enrollment, error) {
	list, err := s.store.ListEnrollments(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if err := s.fillStatus(ctx, &list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// EnrollmentChanges carries the editable fields; nil means unchanged.
type EnrollmentChanges struct {
	Name     *string
	Expected *decimal.Decimal
	Notes    *string
}

// FieldChange is one before/after pair in an EDIT audit entry.
type FieldChange struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// EditEnrollment applies a field-level diff. Only changed fields are
// written and audited. Renaming onto another enrollment in the same
// campaign is rejected.
func (s *Service) EditEnrollment(ctx context.Context, id EnrollmentID, changes EnrollmentChanges, actor string) (map[string]FieldChange, error) {
	e, err := s.store.GetEnrollment(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("persona_cooperación %s: %w", id, ErrNotFound)
	}

	diff := map[string]FieldChange{}

	if changes.Name != nil && *changes.Name != e.Name {
		if err := ValidateName("nombre", *changes.Name); err != nil {
			return nil, err
		}
		other, err := s.store.FindEnrollmentByName(ctx, e.CampaignID, *changes.Name)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != e.ID {
			return nil, fmt.Errorf("nombre %q ya registrado en la cooperación: %w", *changes.Name, ErrAlreadyExists)
		}
		diff["nombre"] = FieldChange{Before: e.Name, After: *changes.Name}
		e.Name = *changes.Name
	}
	if changes.Expected != nil && !changes.Expected.Equal(e.Expected) {
		if err := ValidateAmount("monto_esperado", *changes.Expected, s.limits); err != nil {
			return nil, err
		}
		diff["monto_esperado"] = FieldChange{Before: e.Expected.String(), After: changes.Expected.String()}
		e.Expected = *changes.Expected
	}
	if changes.Notes != nil && *changes.Notes != e.Notes {
		diff["notas"] = FieldChange{Before: e.Notes, After: *changes.Notes}
		e.Notes = *changes.Notes
	}

	if len(diff) == 0 {
		return diff, nil
	}
	if err := s.store.UpdateEnrollment(ctx, *e); err != nil {
		return nil, err
	}

	s.trail.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   ActionEdit,
		Table:    TableEnrollments,
		RecordID: string(id),
		Details:  detailsJSON(diff),
	})
	return diff, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentResult reports a registered payment together with the totals
// and classifications before and after, so the UI can tell the cashier
// "this completes the debt". The report is advisory: once the amount
// validated, the write already happened.
type PaymentResult struct {
	Payment        Payment
	PreviousTotal  decimal.Decimal
	NewTotal       decimal.Decimal
	PreviousStatus PaymentStatus
	NewStatus      PaymentStatus
}

// RegisterPayment appends a payment to an enrollment. The enrollment's
// derived status changes on next read; nothing is stored redundantly.
func (s *Service) RegisterPayment(ctx context.Context, enrollmentID EnrollmentID, amount decimal.Decimal, concept, actor string) (PaymentResult, error) {
	if err := ValidateAmount("monto", amount, s.limits); err != nil {
		return PaymentResult{}, err
	}

	e, err := s.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return PaymentResult{}, err
	}
	if e == nil {
		return PaymentResult{}, fmt.Errorf("persona_cooperación %s: %w", enrollmentID, ErrNotFound)
	}

	payments, err := s.store.ListPayments(ctx, enrollmentID)
	if err != nil {
		return PaymentResult{}, err
	}
	prevTotal := sumNonVoided(payments)
	newTotal := prevTotal.Add(amount)

	now := time.Now()
	p := Payment{
		EnrollmentID: enrollmentID,
		Amount:       amount,
		PaidDate:     now.Format("2006-01-02"),
		PaidTime:     now.Format("15:04:05"),
		Concept:      concept,
		RecordedBy:   actor,
		RecordedAt:   now.UTC(),
	}
	if _, err := s.insertWithFolio(ctx, ScopePayment, func(folio string) error {
		p.ID = PaymentID(folio)
		return s.store.InsertPayment(ctx, p)
	}); err != nil {
		return PaymentResult{}, err
	}

	result := PaymentResult{
		Payment:        p,
		PreviousTotal:  prevTotal,
		NewTotal:       newTotal,
		PreviousStatus: Classify(prevTotal, e.Expected),
		NewStatus:      Classify(newTotal, e.Expected),
	}
	s.trail.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   ActionPay,
		Table:    TablePayments,
		RecordID: string(p.ID),
		Details: detailsJSON(map[string]string{
			"persona_coop_id": string(enrollmentID),
			"monto":           amount.String(),
			"total_antes":     prevTotal.String(),
			"total_despues":   newTotal.String(),
			"estado_antes":    string(result.PreviousStatus),
			"estado_despues":  string(result.NewStatus),
		}),
	})
	return result, nil
}

// Payments returns the full payment history of an enrollment, voided
// rows included, oldest first.
func (s *Service) Payments(ctx context.Context, enrollmentID EnrollmentID) ([]Payment, error) {
	return s.store.ListPayments(ctx, enrollmentID)
}

// VoidPayment flags a payment as invalid, keeping the row as audit
// evidence. This is the only path by which an enrollment's state may
// move backwards, and it requires the actor to re-authenticate.
func (s *Service) VoidPayment(ctx context.Context, id PaymentID, reason, actor, credential string) error {
	if s.reauth == nil {
		return fmt.Errorf("no verifier configured: %w", ErrReauthRequired)
	}
	if err := s.reauth.Verify(actor, credential); err != nil {
		return fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}
	if err := ValidateName("motivo_anulacion", reason); err != nil {
		return err
	}

	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("pago %s: %w", id, ErrNotFound)
	}
	if p.Voided {
		return fmt.Errorf("pago %s: %w", id, ErrAlreadyVoided)
	}

	e, err := s.store.GetEnrollment(ctx, p.EnrollmentID)
	if err != nil {
		return err
	}
	payments, err := s.store.ListPayments(ctx, p.EnrollmentID)
	if err != nil {
		return err
	}
	oldTotal := sumNonVoided(payments)
	newTotal := oldTotal.Sub(p.Amount)

	if err := s.store.MarkPaymentVoided(ctx, id, reason); err != nil {
		return err
	}

	details := map[string]string{
		"motivo":        reason,
		"monto":         p.Amount.String(),
		"total_antes":   oldTotal.String(),
		"total_despues": newTotal.String(),
	}
	if e != nil {
		details["estado_antes"] = string(Classify(oldTotal, e.Expected))
		details["estado_despues"] = string(Classify(newTotal, e.Expected))
	}
	s.trail.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   ActionVoid,
		Table:    TablePayments,
		RecordID: string(id),
		Details:  detailsJSON(details),
	})
	return nil
}

// =============================================================================
// SAFE DELETE / RECOVERY
// =============================================================================

// DeleteEnrollment hard-deletes an enrollment and its payments, but
// only after a full snapshot is durably stored. If the backup write
// fails the delete is aborted; a backup without a completed delete is
// harmless.
func (s *Service) DeleteEnrollment(ctx context.Context, id EnrollmentID, actor, reason string) (BackupHandle, error) {
	e, err := s.store.GetEnrollment(ctx, id)
	if err != nil {
		return 0, err
	}
	if e == nil {
		return 0, fmt.Errorf("persona_cooperación %s: %w", id, ErrNotFound)
	}
	payments, err := s.store.ListPayments(ctx, id)
	if err != nil {
		return 0, err
	}

	backup := DeletionBackup{
		Folio:      e.ID,
		CampaignID: e.CampaignID,
		Actor:      actor,
		Reason:     reason,
		At:         time.Now().UTC(),
		Snapshot:   EnrollmentSnapshot{Enrollment: *e, Payments: payments},
	}
	handle, err := s.store.InsertBackup(ctx, backup)
	if err != nil {
		return 0, fmt.Errorf("respaldo no escrito, eliminación abortada: %w", err)
	}

	if err := s.store.DeleteEnrollment(ctx, id); err != nil {
		s.trail.Record(ctx, AuditEntry{
			Actor:    actor,
			Action:   ActionDelete,
			Table:    TableEnrollments,
			RecordID: string(id),
			Details:  detailsJSON(map[string]string{"respaldo": fmt.Sprint(handle), "error": err.Error()}),
			Outcome:  OutcomeFailure,
		})
		return handle, err
	}

	s.trail.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   ActionDelete,
		Table:    TableEnrollments,
		RecordID: string(id),
		Details: detailsJSON(map[string]string{
			"respaldo": fmt.Sprint(handle),
			"motivo":   reason,
			"pagos":    fmt.Sprint(len(payments)),
		}),
	})
	return handle, nil
}

// Restore reinserts an enrollment and its payments from the most
// recent backup matching the folio. Fails with ErrAlreadyExists when a
// live enrollment with that identity is present.
func (s *Service) Restore(ctx context.Context, folio EnrollmentID, actor string) (Enrollment, error) {
	b, err := s.store.LatestBackup(ctx, folio)
	if err != nil {
		return Enrollment{}, err
	}
	if b == nil {
		return Enrollment{}, fmt.Errorf("respaldo para %s: %w", folio, ErrNotFound)
	}

	existing, err := s.store.GetEnrollment(ctx, folio)
	if err != nil {
		return Enrollment{}, err
	}
	if existing != nil {
		return Enrollment{}, fmt.Errorf("persona_cooperación %s: %w", folio, ErrAlreadyExists)
	}

	e := b.Snapshot.Enrollment
	err = s.store.InsertEnrollmentWithPayments(ctx, e, b.Snapshot.Payments)
	if errors.Is(err, ErrFolioTaken) || errors.Is(err, ErrDuplicateEnrollment) {
		// Lost a race with a sibling process between the check and the insert.
		return Enrollment{}, fmt.Errorf("persona_cooperación %s: %w", folio, ErrAlreadyExists)
	}
	if err != nil {
		return Enrollment{}, err
	}

	s.trail.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   ActionRestore,
		Table:    TableEnrollments,
		RecordID: string(folio),
		Details: detailsJSON(map[string]string{
			"respaldo": fmt.Sprint(b.ID),
			"pagos":    fmt.Sprint(len(b.Snapshot.Payments)),
		}),
	})

	e.Paid = sumNonVoided(b.Snapshot.Payments)
	e.Status = Classify(e.Paid, e.Expected)
	return e, nil
}

// ListBackups exposes the deletion backups for operator tooling.
func (s *Service) ListBackups(ctx context.Context) ([]DeletionBackup, error) {
	return s.store.ListBackups(ctx)
}

// =============================================================================
// AUDIT
// =============================================================================

// QueryAudit returns audit entries, newest first.
func (s *Service) QueryAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	return s.trail.Query(ctx, f)
}

// =============================================================================
// INTERNAL
// =============================================================================

// insertWithFolio derives the next folio and runs the insert,
// re-deriving on a folio collision with a sibling process. The
// read-then-insert window is not atomic across processes, so losing
// the race is expected and bounded, never an overwrite.
func (s *Service) insertWithFolio(ctx context.Context, scope FolioScope, insert func(folio string) error) (string, error) {
	attempts := s.limits.FolioRetries
	for attempt := 0; attempt < attempts; attempt++ {
		max, err := s.store.MaxFolioSuffix(ctx, scope)
		if err != nil {
			return "", err
		}
		folio := FormatFolio(scope, max+1)
		err = insert(folio)
		if errors.Is(err, ErrFolioTaken) {
			continue
		}
		if err != nil {
			return "", err
		}
		return folio, nil
	}
	return "", &FolioConflictError{Scope: scope, Attempts: attempts}
}

func (s *Service) fillStatus(ctx context.Context, e *Enrollment) error {
	payments, err := s.store.ListPayments(ctx, e.ID)
	if err != nil {
		return err
	}
	e.Paid = sumNonVoided(payments)
	e.Status = Classify(e.Paid, e.Expected)
	return nil
}

func sumNonVoided(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if !p.Voided {
			total = total.Add(p.Amount)
		}
	}
	return total
}

func detailsJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
