package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ZewK3/Home-sub002/internal/order/domain"
	userdomain "github.com/ZewK3/Home-sub002/internal/user/domain"
	userrepo "github.com/ZewK3/Home-sub002/internal/user/repository"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an order repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const orderColumns = `order_id, principal_id, client_ref, cart, status, total, transaction_id, delivery, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var (
		o        domain.Order
		cart     []byte
		delivery []byte
		status   string
	)
	if err := row.Scan(&o.OrderID, &o.PrincipalID, &o.ClientRef, &cart, &status, &o.Total,
		&o.TransactionID, &delivery, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.Status(status)
	if err := json.Unmarshal(cart, &o.Cart); err != nil {
		return nil, fmt.Errorf("decode cart of %s: %w", o.OrderID, err)
	}
	if len(delivery) > 0 && string(delivery) != "null" {
		o.Delivery = &domain.Delivery{}
		if err := json.Unmarshal(delivery, o.Delivery); err != nil {
			return nil, fmt.Errorf("decode delivery of %s: %w", o.OrderID, err)
		}
	}
	return &o, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (r *PostgresRepository) Create(ctx context.Context, o *domain.Order) error {
	cart, err := json.Marshal(o.Cart)
	if err != nil {
		return err
	}
	var delivery []byte
	if o.Delivery != nil {
		if delivery, err = json.Marshal(o.Delivery); err != nil {
			return err
		}
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.OrderID, o.PrincipalID, o.ClientRef, cart, string(o.Status), o.Total, o.TransactionID, delivery, o.CreatedAt, o.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateClientRef
	}
	return err
}

func (r *PostgresRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID)
}

func (r *PostgresRepository) GetByClientRef(ctx context.Context, principalID, clientRef string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE principal_id = $1 AND client_ref = $2`, principalID, clientRef)
}

func (r *PostgresRepository) ListByPrincipal(ctx context.Context, principalID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE principal_id = $1 ORDER BY created_at DESC`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SetStatus(ctx context.Context, orderID string, status domain.Status) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET status = $2, updated_at = $3
WHERE order_id = $1 AND status IN ('pending', 'awaiting_payment')`, orderID, string(status), time.Now().UTC())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *PostgresRepository) CompleteWithExp(ctx context.Context, orderID, principalID string, expDelta int64) (int64, userdomain.Rank, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
UPDATE orders SET status = 'success', updated_at = $2
WHERE order_id = $1 AND status IN ('pending', 'awaiting_payment')`, orderID, time.Now().UTC())
	if err != nil {
		return 0, "", err
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, "", err
	} else if n == 0 {
		return 0, "", ErrStatusConflict
	}
	exp, rank, err := userrepo.ApplyExpTx(ctx, tx, principalID, expDelta)
	if err != nil {
		return 0, "", fmt.Errorf("credit exp: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, "", err
	}
	return exp, rank, nil
}
