/*
validator.go - Read-only coherence auditor

PURPOSE:
  Scans every campaign for structural violations: missing required
  fields, duplicate ids, case-insensitively duplicate names, invalid
  amounts, enrollments without folio or name, malformed payments. It
  reports and never mutates; remediation is an operator decision.

  Run periodically or on demand (cmd/coherencia). Running it twice on
  an unchanged store yields identical reports.
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CampaignSummary is the per-campaign section of a coherence report.
type CampaignSummary struct {
	CampaignID  CampaignID
	Name        string
	Enrollments int
	Problems    []string
}

// Report is the outcome of a full coherence scan.
type Report struct {
	ValidCount   int
	InvalidCount int
	Errors       []string
	Campaigns    []CampaignSummary
}

// Validator performs read-only coherence scans over a store.
type Validator struct {
	store Store
}

func NewValidator(store Store) *Validator {
	return &Validator{store: store}
}

// AuditAll scans all campaigns and their enrollments and payments.
// It holds no state between runs and writes nothing.
func (v *Validator) AuditAll(ctx context.Context) (Report, error) {
	campaigns, err := v.store.ListCampaigns(ctx)
	if err != nil {
		return Report{}, err
	}

	var report Report
	seenIDs := map[CampaignID]bool{}
	seenNames := map[string]CampaignID{}

	for _, c := range campaigns {
		summary := CampaignSummary{CampaignID: c.ID, Name: c.Name}

		if strings.TrimSpace(string(c.ID)) == "" {
			summary.Problems = append(summary.Problems, "id vacío")
		} else if seenIDs[c.ID] {
			summary.Problems = append(summary.Problems, fmt.Sprintf("id duplicado: %s", c.ID))
		}
		seenIDs[c.ID] = true

		if strings.TrimSpace(c.Name) == "" {
			summary.Problems = append(summary.Problems, "nombre vacío")
		} else {
			key := strings.ToLower(strings.TrimSpace(c.Name))
			if prev, dup := seenNames[key]; dup {
				summary.Problems = append(summary.Problems,
					fmt.Sprintf("nombre duplicado (coincide con %s): %q", prev, c.Name))
			} else {
				seenNames[key] = c.ID
			}
		}

		if !c.DefaultAmount.IsPositive() {
			summary.Problems = append(summary.Problems,
				fmt.Sprintf("monto_cooperacion no positivo: %s", c.DefaultAmount))
		}

		enrollments, err := v.store.ListEnrollments(ctx, c.ID)
		if err != nil {
			return Report{}, err
		}
		summary.Enrollments = len(enrollments)

		for _, e := range enrollments {
			summary.Problems = append(summary.Problems, v.checkEnrollment(ctx, e)...)
		}

		if len(summary.Problems) == 0 {
			report.ValidCount++
		} else {
			report.InvalidCount++
			for _, p := range summary.Problems {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", c.ID, p))
			}
		}
		report.Campaigns = append(report.Campaigns, summary)
	}

	return report, nil
}

func (v *Validator) checkEnrollment(ctx context.Context, e Enrollment) []string {
	var problems []string

	if strings.TrimSpace(string(e.ID)) == "" {
		problems = append(problems, "inscripción sin folio")
	}
	if strings.TrimSpace(e.Name) == "" {
		problems = append(problems, fmt.Sprintf("inscripción %s sin nombre", e.ID))
	}
	if !e.Expected.IsPositive() {
		problems = append(problems,
			fmt.Sprintf("inscripción %s: monto_esperado no positivo (%s)", e.ID, e.Expected))
	}

	payments, err := v.store.ListPayments(ctx, e.ID)
	if err != nil {
		problems = append(problems, fmt.Sprintf("inscripción %s: pagos ilegibles: %v", e.ID, err))
		return problems
	}
	for _, p := range payments {
		problems = append(problems, checkPayment(p)...)
	}
	return problems
}

func checkPayment(p Payment) []string {
	var problems []string

	if !p.Amount.IsPositive() {
		problems = append(problems, fmt.Sprintf("pago %s: monto no positivo (%s)", p.ID, p.Amount))
	}
	if !p.Amount.Equal(p.Amount.Round(2)) {
		problems = append(problems, fmt.Sprintf("pago %s: monto con más de dos decimales (%s)", p.ID, p.Amount))
	}
	if _, err := time.Parse("2006-01-02", p.PaidDate); err != nil {
		problems = append(problems, fmt.Sprintf("pago %s: fecha_pago inválida (%q)", p.ID, p.PaidDate))
	}
	if p.Voided && strings.TrimSpace(p.VoidReason) == "" {
		problems = append(problems, fmt.Sprintf("pago %s: anulado sin motivo", p.ID))
	}
	return problems
}
