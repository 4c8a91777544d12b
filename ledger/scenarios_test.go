package ledger_test

// End-to-end walkthroughs of the cashier flows, as the desk operator
// would drive them. Narrower behaviors live in service_test.go.

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/ledger"
)

func TestScenario_InstallmentsToCompletion(t *testing.T) {
	// A 300-peso cooperación paid in three installments of 100.

	svc, _ := newTestService(t)
	ctx := context.Background()
	c := mustCampaign(t, svc, "Electrificación", "300.00")
	e := mustEnroll(t, svc, c.ID, "hab-1")

	steps := []struct {
		amount string
		total  string
		status ledger.PaymentStatus
	}{
		{"100", "100", ledger.StatusPartial},
		{"100", "200", ledger.StatusPartial},
		{"100", "300", ledger.StatusCompleted},
	}
	for i, step := range steps {
		r, err := svc.RegisterPayment(ctx, e.ID, dec(step.amount), "", "cajera")
		require.NoError(t, err, "installment %d", i+1)
		assert.True(t, r.NewTotal.Equal(dec(step.total)), "installment %d total", i+1)
		assert.Equal(t, step.status, r.NewStatus, "installment %d status", i+1)
	}
}

func TestScenario_VoidRevertsToPending(t *testing.T) {
	// A single payment settles the debt, then turns out to be a
	// duplicate entry. Voiding it reverts the state and leaves the
	// full paper trail behind.

	svc, _ := newTestService(t)
	ctx := context.Background()
	c := mustCampaign(t, svc, "Electrificación", "300.00")
	e := mustEnroll(t, svc, c.ID, "hab-1")

	r, err := svc.RegisterPayment(ctx, e.ID, dec("300"), "", "cajera")
	require.NoError(t, err)
	require.Equal(t, ledger.StatusCompleted, r.NewStatus)

	require.NoError(t, svc.VoidPayment(ctx, r.Payment.ID, "duplicate entry", "cajera", "secret"))

	got, err := svc.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid.IsZero())
	assert.Equal(t, ledger.StatusPending, got.Status)

	payments, err := svc.Payments(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1, "the voided row persists")
	assert.True(t, payments[0].Voided)
	assert.Equal(t, "duplicate entry", payments[0].VoidReason)

	entries, err := svc.QueryAudit(ctx, ledger.AuditFilter{Table: ledger.TablePayments})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first: the VOID follows the PAY.
	assert.Equal(t, ledger.ActionVoid, entries[0].Action)
	assert.Equal(t, ledger.ActionPay, entries[1].Action)
	assert.Equal(t, string(r.Payment.ID), entries[0].RecordID)
}
