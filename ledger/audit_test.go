package ledger_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/census"
	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/ledger"
	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/store/sqlite"
)

// failingAuditStore rejects every append, simulating an exhausted lock
// budget or a full disk on the auditoria table only.
type failingAuditStore struct{}

func (failingAuditStore) AppendAudit(ctx context.Context, e ledger.AuditEntry) error {
	return errors.New("disk full")
}

func (failingAuditStore) QueryAudit(ctx context.Context, f ledger.AuditFilter) ([]ledger.AuditEntry, error) {
	return nil, nil
}

// capturingAuditStore records what Record actually hands to storage.
type capturingAuditStore struct {
	entries []ledger.AuditEntry
}

func (s *capturingAuditStore) AppendAudit(ctx context.Context, e ledger.AuditEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *capturingAuditStore) QueryAudit(ctx context.Context, f ledger.AuditFilter) ([]ledger.AuditEntry, error) {
	return s.entries, nil
}

func TestAuditTrail_AppendFailure_PrimaryOperationSurvives(t *testing.T) {
	// GIVEN: A ledger whose audit store always fails
	// WHEN: Registering a payment
	// THEN: The payment is stored and the loss is logged, nothing more

	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var buf bytes.Buffer
	trail := ledger.NewAuditTrail(failingAuditStore{}, log.New(&buf, "", 0))
	svc := ledger.NewService(store, census.NewMemoryDirectory(testPeople()...),
		trail, okVerifier{}, ledger.Limits{})
	ctx := context.Background()

	c := mustCampaign(t, svc, "Pavimentación", "500.00")
	e := mustEnroll(t, svc, c.ID, "hab-1")

	r, err := svc.RegisterPayment(ctx, e.ID, dec("100"), "", "tester")
	require.NoError(t, err, "audit failure must not fail the payment")

	got, err := store.GetPayment(ctx, r.Payment.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "payment row must exist despite the lost audit entry")

	assert.Contains(t, buf.String(), "audit entry lost")
}

func TestAuditTrail_Record_FillsDefaults(t *testing.T) {
	store := &capturingAuditStore{}
	trail := ledger.NewAuditTrail(store, nil)

	trail.Record(context.Background(), ledger.AuditEntry{
		Actor:    "tester",
		Action:   ledger.ActionCreate,
		Table:    ledger.TableCampaigns,
		RecordID: "COOP-0001",
	})

	require.Len(t, store.entries, 1)
	got := store.entries[0]
	assert.Equal(t, ledger.OutcomeSuccess, got.Outcome)
	assert.False(t, got.At.IsZero())
}

func TestAuditTrail_Record_KeepsExplicitOutcome(t *testing.T) {
	store := &capturingAuditStore{}
	trail := ledger.NewAuditTrail(store, nil)

	trail.Record(context.Background(), ledger.AuditEntry{
		Actor:   "tester",
		Action:  ledger.ActionDelete,
		Table:   ledger.TableEnrollments,
		Outcome: ledger.OutcomeFailure,
	})

	require.Len(t, store.entries, 1)
	assert.Equal(t, ledger.OutcomeFailure, store.entries[0].Outcome)
}
