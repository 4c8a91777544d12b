/*
main.go - Read-only coherence validator

PURPOSE:
  Walks every campaign, enrollment and payment in the shared database
  and reports structural problems: missing folios, duplicate ids or
  names, non-positive or mis-scaled amounts, unparseable dates, voided
  payments without a reason. It never writes; running it twice in a row
  yields the same report.

COMMAND-LINE FLAGS:
  -db         SQLite database path (default: from COMUNIDAD_DB_PATH or
              comunidad.db)
  -auditoria  also dump the most recent N audit entries (0 = skip)

EXIT CODES:
  0  every record valid
  1  at least one invalid record
  2  the database could not be opened or read

EXAMPLES:
  # Validate the default database
  ./coherencia

  # Validate a specific file and show the last 20 audit entries
  ./coherencia -db=./data/comunidad.db -auditoria=20

SEE ALSO:
  - ledger/validator.go: the checks themselves
  - store/sqlite/sqlite.go: connection and retry policy
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/config"
	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/ledger"
	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/store/sqlite"
)

func main() {
	cfg := config.Load()

	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	auditLimit := flag.Int("auditoria", 0, "dump the most recent N audit entries (0 = skip)")
	flag.Parse()

	st, err := sqlite.Open(*dbPath,
		sqlite.WithRetryAttempts(cfg.RetryAttempts),
		sqlite.WithBusyTimeout(cfg.BusyTimeout),
	)
	if err != nil {
		log.Printf("no se pudo abrir la base de datos: %v", err)
		os.Exit(2)
	}
	defer st.Close()

	ctx := context.Background()

	report, err := ledger.NewValidator(st).AuditAll(ctx)
	if err != nil {
		log.Printf("validación interrumpida: %v", err)
		os.Exit(2)
	}

	printReport(report)

	if *auditLimit > 0 {
		entries, err := st.QueryAudit(ctx, ledger.AuditFilter{Limit: *auditLimit})
		if err != nil {
			log.Printf("no se pudo leer la auditoría: %v", err)
			os.Exit(2)
		}
		printAudit(entries)
	}

	if report.InvalidCount > 0 {
		os.Exit(1)
	}
}

func printReport(r ledger.Report) {
	fmt.Printf("Registros válidos:   %d\n", r.ValidCount)
	fmt.Printf("Registros inválidos: %d\n", r.InvalidCount)

	for _, c := range r.Campaigns {
		fmt.Printf("\nCooperación %s (%s): %d persona(s)\n", c.CampaignID, c.Name, c.Enrollments)
		for _, p := range c.Problems {
			fmt.Printf("  - %s\n", p)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Println("\nProblemas generales:")
		for _, e := range r.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}

func printAudit(entries []ledger.AuditEntry) {
	fmt.Printf("\nAuditoría (%d entradas más recientes):\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %s  %-8s %-22s %-10s %s %s\n",
			e.At.Format("2006-01-02 15:04:05"),
			e.Action, e.Table, e.RecordID, e.Actor, e.Outcome)
	}
}
