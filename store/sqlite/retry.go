/*
retry.go - Cross-process contention policy

PURPOSE:
  Sibling OS processes write the same file, so "database is locked" is
  an expected, transient condition, not a bug. Every store operation
  runs inside withRetry: capped exponential backoff, a hard attempt
  cap, and a typed error on exhaustion so callers never hang.

  Only SQLITE_BUSY / SQLITE_LOCKED are retried. Constraint violations,
  corruption, and permission errors are returned on the first attempt -
  retrying those can only repeat the failure.
*/
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/ledger"
)

// withRetry runs fn up to attempts times, backing off between tries,
// as long as the failure is lock contention. Exhaustion surfaces
// ledger.ErrStorageUnavailable wrapping the last driver error.
func (s *Store) withRetry(ctx context.Context, attempts int, fn func() error) error {
	delay := s.baseDelay
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > s.maxDelay {
				delay = s.maxDelay
			}
		}
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ledger.ErrStorageUnavailable, attempts, err)
}

func (s *Store) withWriteRetry(ctx context.Context, fn func() error) error {
	return s.withRetry(ctx, s.writeAttempts, fn)
}

// Readers under WAL are largely non-blocking, so they get a shorter
// budget than writers.
func (s *Store) withReadRetry(ctx context.Context, fn func() error) error {
	return s.withRetry(ctx, s.readAttempts, fn)
}

// isBusy reports whether err is transient lock contention.
func isBusy(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	// Wrapped or mock driver errors only carry the message.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// constraintErr translates uniqueness violations into the ledger's
// sentinels so the service can tell a folio race from a business
// duplicate. Classification is by violated column, the only signal
// SQLite gives.
func constraintErr(err error) error {
	if err == nil {
		return nil
	}
	var serr sqlite3.Error
	if !errors.As(err, &serr) || serr.Code != sqlite3.ErrConstraint {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "cooperaciones.nombre"):
		return fmt.Errorf("%v: %w", err, ledger.ErrAlreadyExists)
	case strings.Contains(msg, "personas_cooperacion.cooperacion_id"):
		return fmt.Errorf("%v: %w", err, ledger.ErrDuplicateEnrollment)
	case strings.Contains(msg, ".id"):
		return fmt.Errorf("%v: %w", err, ledger.ErrFolioTaken)
	}
	return err
}
