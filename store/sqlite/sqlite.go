/*
Package sqlite persists the cooperation ledger in a single SQLite file.

PURPOSE:
  This file is shared by several independently launched desktop
  processes (census, payments, work-hours) with no lock manager between
  them. The connection manager therefore opens with WAL journaling and
  a busy-timeout long enough to outlast typical sibling contention, and
  every operation runs under a capped-backoff retry policy (retry.go).

KEY TABLES:
  cooperaciones:          campaigns
  personas_cooperacion:   enrollments; UNIQUE(cooperacion_id, habitante_id)
  pagos_coop:             append-only payments; voiding is a flag, never a delete
  auditoria:              immutable audit trail
  respaldos_eliminacion:  full snapshots written before hard deletes

MIGRATION:
  Schema is created idempotently on Open. Money columns are TEXT
  holding decimal strings; REAL would silently lose cents.

SEE ALSO:
  - retry.go: contention classification and backoff
  - store.go: the ledger.Store implementation
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store implements ledger.Store over one SQLite file.
type Store struct {
	db *sql.DB

	writeAttempts int
	readAttempts  int
	baseDelay     time.Duration
	maxDelay      time.Duration
	busyTimeout   time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithRetryAttempts sets the write retry budget (default 5).
func WithRetryAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.writeAttempts = n
		}
	}
}

// WithBusyTimeout sets SQLite's busy handler timeout (default 30s).
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithBaseDelay sets the first backoff sleep (default 50ms). Tests use
// this to keep retry paths fast.
func WithBaseDelay(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.baseDelay = d
		}
	}
}

func defaults() *Store {
	return &Store{
		writeAttempts: 5,
		readAttempts:  2,
		baseDelay:     50 * time.Millisecond,
		maxDelay:      time.Second,
		busyTimeout:   30 * time.Second,
	}
}

// Open opens (creating if needed) the shared database file. Use
// ":memory:" for tests. Any open or migration error is fatal and not
// retried; only lock contention on later operations is transient.
func Open(path string, opts ...Option) (*Store, error) {
	s := defaults()
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on",
		path, s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.Contains(path, ":memory:") {
		// The pool would otherwise hand out separate empty databases.
		db.SetMaxOpenConns(1)
	}
	s.db = db

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// NewFromDB wraps an existing *sql.DB without migrating. Used by tests
// that inject a mock driver.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	s := defaults()
	for _, opt := range opts {
		opt(s)
	}
	s.db = db
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the ledger schema. Idempotent: safe to run from
// every process on every start.
func (s *Store) migrate() error {
	schema := `
	-- Campaigns
	CREATE TABLE IF NOT EXISTS cooperaciones (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL UNIQUE,
		proyecto TEXT,
		monto_cooperacion TEXT NOT NULL,
		activa INTEGER NOT NULL DEFAULT 0,
		fecha_creacion TEXT NOT NULL
	);

	-- Enrollments: one person joins one campaign at most once
	CREATE TABLE IF NOT EXISTS personas_cooperacion (
		id TEXT PRIMARY KEY,
		cooperacion_id TEXT NOT NULL REFERENCES cooperaciones(id),
		habitante_id TEXT NOT NULL,
		nombre TEXT NOT NULL,
		monto_esperado TEXT NOT NULL,
		notas TEXT,
		fecha_agregado TEXT NOT NULL,
		UNIQUE(cooperacion_id, habitante_id)
	);

	CREATE INDEX IF NOT EXISTS idx_personas_coop_cooperacion
		ON personas_cooperacion(cooperacion_id);
	CREATE INDEX IF NOT EXISTS idx_personas_coop_nombre
		ON personas_cooperacion(cooperacion_id, nombre);

	-- Payments (append-only; anulado flags, never deletes)
	CREATE TABLE IF NOT EXISTS pagos_coop (
		id TEXT PRIMARY KEY,
		persona_coop_id TEXT NOT NULL REFERENCES personas_cooperacion(id),
		monto TEXT NOT NULL,
		fecha_pago TEXT NOT NULL,
		hora_pago TEXT NOT NULL,
		concepto TEXT,
		registrado_por TEXT NOT NULL,
		anulado INTEGER NOT NULL DEFAULT 0,
		motivo_anulacion TEXT,
		fecha_registro TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pagos_persona
		ON pagos_coop(persona_coop_id);

	-- Audit trail (append-only)
	CREATE TABLE IF NOT EXISTS auditoria (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		usuario TEXT NOT NULL,
		accion TEXT NOT NULL,
		tabla TEXT NOT NULL,
		registro_id TEXT NOT NULL,
		fecha_operacion TEXT NOT NULL,
		detalles TEXT,
		resultado TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_auditoria_fecha
		ON auditoria(fecha_operacion DESC);
	CREATE INDEX IF NOT EXISTS idx_auditoria_tabla
		ON auditoria(tabla, registro_id);

	-- Deletion backups (written before any hard delete, never expired)
	CREATE TABLE IF NOT EXISTS respaldos_eliminacion (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		folio TEXT NOT NULL,
		cooperacion_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		motivo TEXT,
		fecha_respaldo TEXT NOT NULL,
		datos_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_respaldos_folio
		ON respaldos_eliminacion(folio);
	`

	_, err := s.db.Exec(schema)
	return err
}
