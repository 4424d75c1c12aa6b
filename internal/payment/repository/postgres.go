package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ZewK3/Home-sub002/internal/payment/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a payment repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByExtractedID(ctx context.Context, extractedID string) (*domain.Payment, error) {
	var (
		p  domain.Payment
		dt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
SELECT extracted_id, amount, account_number, transaction_ref, description, date_time, created_at
FROM payments WHERE extracted_id = $1`, extractedID).Scan(
		&p.ExtractedID, &p.Amount, &p.AccountNumber, &p.TransactionRef, &p.Description, &dt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if dt.Valid {
		p.DateTime = &dt.Time
	}
	return &p, nil
}

// InsertBatch inserts all payments in one transaction. Re-delivered notifications are ignored.
func (r *PostgresRepository) InsertBatch(ctx context.Context, payments []*domain.Payment) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO payments (extracted_id, amount, account_number, transaction_ref, description, date_time, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (extracted_id) DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range payments {
		var dt sql.NullTime
		if p.DateTime != nil {
			dt = sql.NullTime{Time: *p.DateTime, Valid: true}
		}
		res, err := stmt.ExecContext(ctx, p.ExtractedID, p.Amount, p.AccountNumber, p.TransactionRef, p.Description, dt, p.CreatedAt)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}
