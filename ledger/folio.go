/*
folio.go - Sequential human-readable identifiers

PURPOSE:
  Folios (COOP-0001, PC-0007, PAG-000042) are derived by scanning the
  max numeric suffix already stored and adding one. Because sibling OS
  processes do the same scan with no shared lock, the read-then-insert
  window is a genuine race: two processes can derive the same folio.
  The store's UNIQUE constraint catches the loser, which re-derives and
  retries a bounded number of times (see service.go insertWithFolio).
*/
package ledger

import "fmt"

// FolioScope names an independent folio series.
type FolioScope string

const (
	ScopeCampaign   FolioScope = "campaign"
	ScopeEnrollment FolioScope = "enrollment"
	ScopePayment    FolioScope = "payment"
)

// Prefix returns the series prefix, without the dash.
func (s FolioScope) Prefix() string {
	switch s {
	case ScopeCampaign:
		return "COOP"
	case ScopeEnrollment:
		return "PC"
	case ScopePayment:
		return "PAG"
	}
	return ""
}

// Width returns the zero-padding width of the numeric suffix.
func (s FolioScope) Width() int {
	if s == ScopePayment {
		return 6
	}
	return 4
}

// FormatFolio renders the n-th folio of a series, e.g. ("PC", 7) → PC-0007.
// Suffixes past the padding width keep growing rather than wrapping.
func FormatFolio(scope FolioScope, n int) string {
	return fmt.Sprintf("%s-%0*d", scope.Prefix(), scope.Width(), n)
}
