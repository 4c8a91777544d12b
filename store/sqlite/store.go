/*
store.go - ledger.Store implementation

Every method wraps its statement(s) in the retry policy from retry.go.
Get* methods return (nil, nil) for missing rows. Money round-trips as
decimal strings; timestamps as RFC3339.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RodrigoEnd/sistema-digital-comunidad-sub000/ledger"
)

var _ ledger.Store = (*Store)(nil)

// folioTable maps a folio scope to the table that stores its series.
func folioTable(scope ledger.FolioScope) (string, error) {
	switch scope {
	case ledger.ScopeCampaign:
		return "cooperaciones", nil
	case ledger.ScopeEnrollment:
		return "personas_cooperacion", nil
	case ledger.ScopePayment:
		return "pagos_coop", nil
	}
	return "", fmt.Errorf("unknown folio scope %q", scope)
}

// MaxFolioSuffix scans the highest numeric suffix in the scope's id
// series. The scan and the subsequent insert are not atomic across
// processes; the caller owns the conflict-retry loop.
func (s *Store) MaxFolioSuffix(ctx context.Context, scope ledger.FolioScope) (int, error) {
	table, err := folioTable(scope)
	if err != nil {
		return 0, err
	}
	// substr is 1-based: skip "<prefix>-".
	query := fmt.Sprintf(
		"SELECT COALESCE(MAX(CAST(substr(id, %d) AS INTEGER)), 0) FROM %s",
		len(scope.Prefix())+2, table)

	var max int
	err = s.withReadRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, query).Scan(&max)
	})
	return max, err
}

// =============================================================================
// CAMPAIGNS
// =============================================================================

func (s *Store) InsertCampaign(ctx context.Context, c ledger.Campaign) error {
	query := `
		INSERT INTO cooperaciones (id, nombre, proyecto, monto_cooperacion, activa, fecha_creacion)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	return s.withWriteRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query,
			string(c.ID), c.Name, nullString(c.Project),
			c.DefaultAmount.String(), boolInt(c.Active),
			c.CreatedAt.Format(time.RFC3339),
		)
		return constraintErr(err)
	})
}

func (s *Store) GetCampaign(ctx context.Context, id ledger.CampaignID) (*ledger.Campaign, error) {
	query := `
		SELECT id, nombre, proyecto, monto_cooperacion, activa, fecha_creacion
		FROM cooperaciones WHERE id = ?
	`
	var c *ledger.Campaign
	err := s.withReadRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query, string(id))
		got, err := scanCampaign(row.Scan)
		if err == sql.ErrNoRows {
			c = nil
			return nil
		}
		c = got
		return err
	})
	return c, err
}

func (s *Store) ListCampaigns(ctx context.Context) ([]ledger.Campaign, error) {
	query := `
		SELECT id, nombre, proyecto, monto_cooperacion, activa, fecha_creacion
		FROM cooperaciones ORDER BY id
	`
	var campaigns []ledger.Campaign
	err := s.withReadRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		campaigns = nil
		for rows.Next() {
			c, err := scanCampaign(rows.Scan)
			if err != nil {
				return err
			}
			campaigns = append(campaigns, *c)
		}
		return rows.Err()
	})
	return campaigns, err
}

// SetActiveCampaign clears the active flag everywhere and sets it on
// one campaign, in a single transaction so siblings never observe two
// active campaigns.
func (s *Store) SetActiveCampaign(ctx context.Context, id ledger.CampaignID) error {
	return s.withWriteRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, "UPDATE cooperaciones SET activa = 0 WHERE activa = 1"); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "UPDATE cooperaciones SET activa = 1 WHERE id = ?", string(id))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("cooperación %s: %w", id, ledger.ErrNotFound)
		}
		return tx.Commit()
	})
}

func scanCampaign(scan func(...any) error) (*ledger.Campaign, error) {
	var (
		c         ledger.Campaign
		id        string
		project   sql.NullString
		amount    string
		active    int
		createdAt string
	)
	if err := scan(&id, &c.Name, &project, &amount, &active, &createdAt); err != nil {
		return nil, err
	}
	c.ID = ledger.CampaignID(id)
	c.Project = project.String
	c.DefaultAmount = parseDecimal(amount)
	c.Active = active != 0
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

func (s *Store) InsertEnrollment(ctx context.Context, e ledger.Enrollment) error {
	query := `
		INSERT INTO personas_cooperacion
		(id, cooperacion_id, habitante_id, nombre, monto_esperado, notas, fecha_agregado)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	return s.withWriteRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query,
			string(e.ID), string(e.CampaignID), e.PersonID, e.Name,
			e.Expected.String(), nullString(e.Notes),
			e.AddedAt.Format(time.RFC3339),
		)
		return constraintErr(err)
	})
}

func (s *Store) GetEnrollment(ctx context.Context, id ledger.EnrollmentID) (*ledger.Enrollment, error) {
	query := enrollmentColumns + " WHERE id = ?"
	var e *ledger.Enrollment
	err := s.withReadRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query, string(id))
		got, err := scanEnrollment(row.Scan)
		if err == sql.ErrNoRows {
			e = nil
			return nil
		}
		e = got
		return err
	})
	return e, err
}

func (s *Store) ListEnrollments(ctx context.Context, campaignID ledger.CampaignID) ([]ledger.Enrollment, error) {
	query := enrollmentColumns + " WHERE cooperacion_id = ? ORDER BY id"
	var enrollments []ledger.Enrollment
	err := s.withReadRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, string(campaignID))
		if err != nil {
			return err
		}
		defer rows.Close()

		enrollments = nil
		for rows.Next() {
			e, err := scanEnrollment(rows.Scan)
			if err != nil {
				return err
			}
			enrollments = append(enrollments, *e)
		}
		return rows.Err()
	})
	return enrollments, err
}

func (s *Store) FindEnrollmentByName(ctx context.Context, campaignID ledger.CampaignID, name string) (*ledger.Enrollment, error) {
	query := enrollmentColumns + " WHERE cooperacion_id = ? AND LOWER(nombre) = LOWER(?) LIMIT 1"
	var e *ledger.Enrollment
	err := s.withReadRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query, string(campaignID), name)
		got, err := scanEnrollment(row.Scan)
		if err == sql.ErrNoRows {
			e = nil
			return nil
		}
		e = got
		return err
	})
	return e, err
}

func (s *Store) UpdateEnrollment(ctx context.Context, e ledger.Enrollment) error {
	query := `
		UPDATE personas_cooperacion
		SET nombre = ?, monto_esperado = ?, notas = ?
		WHERE id = ?
	`
	return s.withWriteRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query,
			e.Name, e.Expected.String(), nullString(e.Notes), string(e.ID))
		if err != nil {
			return constraintErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("persona_cooperación %s: %w", e.ID, ledger.ErrNotFound)
		}
		return nil
	})
}

// DeleteEnrollment hard-deletes an enrollment and its payments in one
// transaction. Callers must have stored a backup first (spec of the
// safe-delete contract lives in the ledger package).
func (s *Store) DeleteEnrollment(ctx context.Context, id ledger.EnrollmentID) error {
	return s.withWriteRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM pagos_coop WHERE persona_coop_id = ?", string(id)); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"DELETE FROM personas_cooperacion WHERE id = ?", string(id))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("persona_cooperación %s: %w", id, ledger.ErrNotFound)
		}
		return tx.Commit()
	})
}

// InsertEnrollmentWithPayments reinserts a backed-up enrollment and
// its payment history atomically. Either everything comes back or
// nothing does.
func (s *Store) InsertEnrollmentWithPayments(ctx context.Context, e ledger.Enrollment, payments []ledger.Payment) error {
	return s.withWriteRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO personas_cooperacion
			(id, cooperacion_id, habitante_id, nombre, monto_esperado, notas, fecha_agregado)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(e.ID), string(e.CampaignID), e.PersonID, e.Name,
			e.Expected.String(), nullString(e.Notes),
			e.AddedAt.Format(time.RFC3339),
		); err != nil {
			return constraintErr(err)
		}

		for _, p := range payments {
			if _, err := tx.ExecContext(ctx, insertPaymentQuery,
				string(p.ID), string(p.EnrollmentID), p.Amount.String(),
				p.PaidDate, p.PaidTime, nullString(p.Concept), p.RecordedBy,
				boolInt(p.Voided), nullString(p.VoidReason),
				p.RecordedAt.Format(time.RFC3339),
			); err != nil {
				return constraintErr(err)
			}
		}
		return tx.Commit()
	})
}

const enrollmentColumns = `
	SELECT id, cooperacion_id, habitante_id, nombre, monto_esperado, notas, fecha_agregado
	FROM personas_cooperacion
`

func scanEnrollment(scan func(...any) error) (*ledger.Enrollment, error) {
	var (
		e        ledger.Enrollment
		id       string
		campaign string
		expected string
		notes    sql.NullString
		addedAt  string
	)
	if err := scan(&id, &campaign, &e.PersonID, &e.Name, &expected, &notes, &addedAt); err != nil {
		return nil, err
	}
	e.ID = ledger.EnrollmentID(id)
	e.CampaignID = ledger.CampaignID(campaign)
	e.Expected = parseDecimal(expected)
	e.Notes = notes.String
	e.AddedAt, _ = time.Parse(time.RFC3339, addedAt)
	return &e, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

const insertPaymentQuery = `
	INSERT INTO pagos_coop
	(id, persona_coop_id, monto, fecha_pago, hora_pago, concepto, registrado_por,
	 anulado, motivo_anulacion, fecha_registro)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (s *Store) InsertPayment(ctx context.Context, p ledger.Payment) error {
	return s.withWriteRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, insertPaymentQuery,
			string(p.ID), string(p.EnrollmentID), p.Amount.String(),
			p.PaidDate, p.PaidTime, nullString(p.Concept), p.RecordedBy,
			boolInt(p.Voided), nullString(p.VoidReason),
			p.RecordedAt.Format(time.RFC3339),
		)
		return constraintErr(err)
	})
}

func (s *Store) GetPayment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	query := paymentColumns + " WHERE id = ?"
	var p *ledger.Payment
	err := s.withReadRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query, string(id))
		got, err := scanPayment(row.Scan)
		if err == sql.ErrNoRows {
			p = nil
			return nil
		}
		p = got
		return err
	})
	return p, err
}

func (s *Store) ListPayments(ctx context.Context, enrollmentID ledger.EnrollmentID) ([]ledger.Payment, error) {
	query := paymentColumns + " WHERE persona_coop_id = ? ORDER BY fecha_registro, id"
	var payments []ledger.Payment
	err := s.withReadRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, string(enrollmentID))
		if err != nil {
			return err
		}
		defer rows.Close()

		payments = nil
		for rows.Next() {
			p, err := scanPayment(rows.Scan)
			if err != nil {
				return err
			}
			payments = append(payments, *p)
		}
		return rows.Err()
	})
	return payments, err
}

// MarkPaymentVoided flags a payment. The WHERE anulado = 0 guard makes
// a void/void race between sibling processes resolve to exactly one
// winner; the loser gets ErrAlreadyVoided.
func (s *Store) MarkPaymentVoided(ctx context.Context, id ledger.PaymentID, reason string) error {
	return s.withWriteRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			"UPDATE pagos_coop SET anulado = 1, motivo_anulacion = ? WHERE id = ? AND anulado = 0",
			reason, string(id))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 1 {
			return nil
		}

		var voided int
		err = s.db.QueryRowContext(ctx,
			"SELECT anulado FROM pagos_coop WHERE id = ?", string(id)).Scan(&voided)
		if err == sql.ErrNoRows {
			return fmt.Errorf("pago %s: %w", id, ledger.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("pago %s: %w", id, ledger.ErrAlreadyVoided)
	})
}

const paymentColumns = `
	SELECT id, persona_coop_id, monto, fecha_pago, hora_pago, concepto, registrado_por,
	       anulado, motivo_anulacion, fecha_registro
	FROM pagos_coop
`

func scanPayment(scan func(...any) error) (*ledger.Payment, error) {
	var (
		p          ledger.Payment
		id         string
		enrollment string
		amount     string
		concept    sql.NullString
		voided     int
		voidReason sql.NullString
		recordedAt string
	)
	if err := scan(&id, &enrollment, &amount, &p.PaidDate, &p.PaidTime,
		&concept, &p.RecordedBy, &voided, &voidReason, &recordedAt); err != nil {
		return nil, err
	}
	p.ID = ledger.PaymentID(id)
	p.EnrollmentID = ledger.EnrollmentID(enrollment)
	p.Amount = parseDecimal(amount)
	p.Concept = concept.String
	p.Voided = voided != 0
	p.VoidReason = voidReason.String
	p.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt)
	return &p, nil
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e ledger.AuditEntry) error {
	query := `
		INSERT INTO auditoria (usuario, accion, tabla, registro_id, fecha_operacion, detalles, resultado)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	return s.withWriteRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query,
			e.Actor, string(e.Action), e.Table, e.RecordID,
			e.At.Format(time.RFC3339), nullString(e.Details), e.Outcome,
		)
		return err
	})
}

func (s *Store) QueryAudit(ctx context.Context, f ledger.AuditFilter) ([]ledger.AuditEntry, error) {
	query := `
		SELECT id, usuario, accion, tabla, registro_id, fecha_operacion, detalles, resultado
		FROM auditoria
		WHERE 1 = 1
	`
	var args []any
	if f.Actor != "" {
		query += " AND usuario = ?"
		args = append(args, f.Actor)
	}
	if f.Action != "" {
		query += " AND accion = ?"
		args = append(args, string(f.Action))
	}
	if f.Table != "" {
		query += " AND tabla = ?"
		args = append(args, f.Table)
	}
	query += " ORDER BY fecha_operacion DESC, id DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var entries []ledger.AuditEntry
	err := s.withReadRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		entries = nil
		for rows.Next() {
			var (
				e       ledger.AuditEntry
				action  string
				at      string
				details sql.NullString
			)
			if err := rows.Scan(&e.ID, &e.Actor, &action, &e.Table,
				&e.RecordID, &at, &details, &e.Outcome); err != nil {
				return err
			}
			e.Action = ledger.AuditAction(action)
			e.At, _ = time.Parse(time.RFC3339, at)
			e.Details = details.String
			entries = append(entries, e)
		}
		return rows.Err()
	})
	return entries, err
}

// =============================================================================
// DELETION BACKUPS
// =============================================================================

func (s *Store) InsertBackup(ctx context.Context, b ledger.DeletionBackup) (ledger.BackupHandle, error) {
	data, err := json.Marshal(b.Snapshot)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize backup: %w", err)
	}

	query := `
		INSERT INTO respaldos_eliminacion (folio, cooperacion_id, actor, motivo, fecha_respaldo, datos_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	var handle ledger.BackupHandle
	err = s.withWriteRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query,
			string(b.Folio), string(b.CampaignID), b.Actor, nullString(b.Reason),
			b.At.Format(time.RFC3339), string(data),
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		handle = ledger.BackupHandle(id)
		return nil
	})
	return handle, err
}

func (s *Store) LatestBackup(ctx context.Context, folio ledger.EnrollmentID) (*ledger.DeletionBackup, error) {
	query := backupColumns + " WHERE folio = ? ORDER BY id DESC LIMIT 1"
	var b *ledger.DeletionBackup
	err := s.withReadRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query, string(folio))
		got, err := scanBackup(row.Scan)
		if err == sql.ErrNoRows {
			b = nil
			return nil
		}
		b = got
		return err
	})
	return b, err
}

func (s *Store) ListBackups(ctx context.Context) ([]ledger.DeletionBackup, error) {
	query := backupColumns + " ORDER BY id DESC"
	var backups []ledger.DeletionBackup
	err := s.withReadRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		backups = nil
		for rows.Next() {
			b, err := scanBackup(rows.Scan)
			if err != nil {
				return err
			}
			backups = append(backups, *b)
		}
		return rows.Err()
	})
	return backups, err
}

const backupColumns = `
	SELECT id, folio, cooperacion_id, actor, motivo, fecha_respaldo, datos_json
	FROM respaldos_eliminacion
`

func scanBackup(scan func(...any) error) (*ledger.DeletionBackup, error) {
	var (
		b        ledger.DeletionBackup
		folio    string
		campaign string
		reason   sql.NullString
		at       string
		data     string
	)
	if err := scan(&b.ID, &folio, &campaign, &b.Actor, &reason, &at, &data); err != nil {
		return nil, err
	}
	b.Folio = ledger.EnrollmentID(folio)
	b.CampaignID = ledger.CampaignID(campaign)
	b.Reason = reason.String
	b.At, _ = time.Parse(time.RFC3339, at)
	if err := json.Unmarshal([]byte(data), &b.Snapshot); err != nil {
		return nil, fmt.Errorf("respaldo %d corrupto: %w", b.ID, err)
	}
	return &b, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
