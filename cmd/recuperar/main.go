/*
main.go - Deletion backup recovery tool

PURPOSE:
  Operator tool for the safe-delete contract: lists the deletion
  backups in the shared database and restores a deleted enrollment
  (with its full payment history) from its most recent backup.

COMMAND-LINE FLAGS:
  -db      SQLite database path (default: from COMUNIDAD_DB_PATH or
           comunidad.db)
  -list    list all deletion backups and exit
  -folio   enrollment folio to restore (e.g. PC-0007)
  -actor   operator name recorded in the audit trail (required with -folio)

EXAMPLES:
  # See what can be recovered
  ./recuperar -list

  # Bring back a deleted enrollment
  ./recuperar -folio=PC-0007 -actor="maria"

SEE ALSO:
  - ledger/service.go: DeleteEnrollment and Restore
  - ledger/types.go: DeletionBackup
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/auth"
	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/census"
	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/config"
	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/ledger"
	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/store/sqlite"
)

func main() {
	cfg := config.Load()

	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	list := flag.Bool("list", false, "list all deletion backups and exit")
	folio := flag.String("folio", "", "enrollment folio to restore")
	actor := flag.String("actor", "", "operator name recorded in the audit trail")
	flag.Parse()

	st, err := sqlite.Open(*dbPath,
		sqlite.WithRetryAttempts(cfg.RetryAttempts),
		sqlite.WithBusyTimeout(cfg.BusyTimeout),
	)
	if err != nil {
		log.Fatalf("no se pudo abrir la base de datos: %v", err)
	}
	defer st.Close()

	svc := ledger.NewService(
		st,
		census.NewMemoryDirectory(),
		ledger.NewAuditTrail(st, nil),
		auth.NewSingleOperatorVerifier(cfg.OperatorHash),
		ledger.Limits{
			MinAmount:    cfg.MinAmount,
			MaxAmount:    cfg.MaxAmount,
			FolioRetries: cfg.FolioRetries,
		},
	)

	ctx := context.Background()

	switch {
	case *list:
		if err := printBackups(ctx, svc); err != nil {
			log.Fatalf("no se pudieron listar los respaldos: %v", err)
		}
	case *folio != "":
		if *actor == "" {
			log.Fatal("se requiere -actor para restaurar")
		}
		e, err := svc.Restore(ctx, ledger.EnrollmentID(*folio), *actor)
		if errors.Is(err, ledger.ErrNotFound) {
			log.Fatalf("no existe respaldo para el folio %s", *folio)
		}
		if errors.Is(err, ledger.ErrAlreadyExists) {
			log.Fatalf("el folio %s ya existe, nada que restaurar", *folio)
		}
		if err != nil {
			log.Fatalf("restauración fallida: %v", err)
		}
		fmt.Printf("Restaurado %s (%s): esperado %s, pagado %s, estado %s\n",
			e.ID, e.Name, e.Expected, e.Paid, e.Status)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func printBackups(ctx context.Context, svc *ledger.Service) error {
	backups, err := svc.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		fmt.Println("Sin respaldos de eliminación")
		return nil
	}
	for _, b := range backups {
		fmt.Printf("%6d  %s  %-10s  %-22s  %s  pagos=%d  %s\n",
			b.ID, b.At.Format("2006-01-02 15:04:05"), b.Folio,
			b.Snapshot.Enrollment.Name, b.Actor,
			len(b.Snapshot.Payments), b.Reason)
	}
	return nil
}
