package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/xavierca1/leadsync/internal/entity"
)

const leadColumns = `id, name, email, phone, message, product_name, source, status,
	external_id, error_message, retry_count, created_at, updated_at, processed_at`

type LeadRepository struct {
	DB      *sql.DB
	dialect dialect
	now     func() time.Time
}

// NewLeadRepository builds a repository for the given driver ("postgres" or "sqlite").
func NewLeadRepository(db *sql.DB, driver string) *LeadRepository {
	return &LeadRepository{
		DB:      db,
		dialect: newDialect(driver),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *LeadRepository) Create(ctx context.Context, lead *entity.Lead) error {
	now := r.now()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = lead.CreatedAt

	_, err := r.DB.ExecContext(ctx, r.dialect.rebind(`
		INSERT INTO leads (id, name, email, phone, message, product_name, source, status,
			retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		lead.ID, lead.Name, lead.Email, lead.Phone, lead.Message, lead.ProductName,
		string(lead.Source), string(lead.Status), lead.RetryCount, lead.CreatedAt, lead.UpdatedAt,
	)
	return eris.Wrapf(err, "leads: insert %s", lead.ID)
}

func (r *LeadRepository) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	row := r.DB.QueryRowContext(ctx, r.dialect.rebind(`SELECT `+leadColumns+` FROM leads WHERE id = ?`), id)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrLeadNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "leads: find %s", id)
	}
	return lead, nil
}

func (r *LeadRepository) List(ctx context.Context, filter entity.LeadFilter) ([]entity.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	var args []any
	if len(filter.Statuses) > 0 {
		clause, statusArgs := r.dialect.statusIn(filter.Statuses)
		query += ` WHERE ` + clause
		args = append(args, statusArgs...)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}
	return r.query(ctx, query, args...)
}

func (r *LeadRepository) FindPending(ctx context.Context, limit int) ([]entity.Lead, error) {
	return r.query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE status = ? ORDER BY `+r.dialect.orderBy+` LIMIT ?`,
		string(entity.LeadStatusPending), limit,
	)
}

func (r *LeadRepository) ClaimForProcessing(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, r.dialect.rebind(
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ? AND status = ?`),
		string(entity.LeadStatusProcessing), r.now(), id, string(entity.LeadStatusPending),
	)
	if err != nil {
		return false, eris.Wrapf(err, "leads: claim %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "leads: rows affected")
	}
	return n == 1, nil
}

func (r *LeadRepository) MarkSent(ctx context.Context, id, externalID string) error {
	now := r.now()
	res, err := r.DB.ExecContext(ctx, r.dialect.rebind(`
		UPDATE leads
		SET status = ?, external_id = ?, error_message = NULL, processed_at = ?, updated_at = ?
		WHERE id = ?`),
		string(entity.LeadStatusSent), externalID, now, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "leads: mark sent %s", id)
	}
	return checkRowsAffected(res, id)
}

func (r *LeadRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	now := r.now()
	res, err := r.DB.ExecContext(ctx, r.dialect.rebind(`
		UPDATE leads
		SET status = ?, error_message = ?, retry_count = retry_count + 1, processed_at = ?, updated_at = ?
		WHERE id = ?`),
		string(entity.LeadStatusFailed), errorMessage, now, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "leads: mark failed %s", id)
	}
	return checkRowsAffected(res, id)
}

func (r *LeadRepository) ReleaseClaim(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.dialect.rebind(
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ? AND status = ?`),
		string(entity.LeadStatusPending), r.now(), id, string(entity.LeadStatusProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "leads: release claim %s", id)
	}
	return checkRowsAffected(res, id)
}

func (r *LeadRepository) RequeueFailed(ctx context.Context, maxRetryCount int) (int64, error) {
	res, err := r.DB.ExecContext(ctx, r.dialect.rebind(
		`UPDATE leads SET status = ?, updated_at = ? WHERE status = ? AND retry_count < ?`),
		string(entity.LeadStatusPending), r.now(), string(entity.LeadStatusFailed), maxRetryCount,
	)
	if err != nil {
		return 0, eris.Wrap(err, "leads: requeue failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "leads: rows affected")
	}
	return n, nil
}

func (r *LeadRepository) query(ctx context.Context, query string, args ...any) ([]entity.Lead, error) {
	rows, err := r.DB.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, eris.Wrap(err, "leads: query")
	}
	defer rows.Close()

	var leads []entity.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "leads: scan")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "leads: iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*entity.Lead, error) {
	var (
		l           entity.Lead
		source      string
		status      string
		externalID  sql.NullString
		errorMsg    sql.NullString
		processedAt sql.NullTime
	)
	err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Phone, &l.Message, &l.ProductName, &source, &status,
		&externalID, &errorMsg, &l.RetryCount, &l.CreatedAt, &l.UpdatedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	l.Source = entity.LeadSource(source)
	l.Status = entity.LeadStatus(status)
	if externalID.Valid {
		l.ExternalID = &externalID.String
	}
	if errorMsg.Valid {
		l.ErrorMessage = &errorMsg.String
	}
	if processedAt.Valid {
		t := processedAt.Time
		l.ProcessedAt = &t
	}
	return &l, nil
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "leads: rows affected")
	}
	if n == 0 {
		return eris.Wrap(entity.ErrLeadNotFound, id)
	}
	return nil
}
