package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ZewK3/Home-sub002/internal/employee/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an employee repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the employee (pending or active) for employeeID, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, employeeID string) (*domain.Employee, error) {
	var (
		e        domain.Employee
		status   string
		joinDate sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
SELECT employee_id, full_name, store_name, position, phone, email, join_date, password_hash, salt, status, created_at
FROM employees WHERE employee_id = $1`, employeeID).Scan(
		&e.EmployeeID, &e.FullName, &e.StoreName, &e.Position, &e.Phone, &e.Email, &joinDate,
		&e.PasswordHash, &e.Salt, &status, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.Status = domain.Status(status)
	if joinDate.Valid {
		e.JoinDate = &joinDate.Time
	}
	return &e, nil
}

// ExistsByPhone reports whether any employee uses phone.
func (r *PostgresRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM employees WHERE phone = $1)`, phone)
}

// ExistsByEmail reports whether any employee uses email.
func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM employees WHERE email = $1)`, email)
}

func (r *PostgresRepository) exists(ctx context.Context, query, arg string) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Create persists the employee with its current status.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Employee) error {
	var joinDate sql.NullTime
	if e.JoinDate != nil {
		joinDate = sql.NullTime{Time: *e.JoinDate, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO employees (employee_id, full_name, store_name, position, phone, email, join_date, password_hash, salt, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.EmployeeID, e.FullName, e.StoreName, e.Position, e.Phone, e.Email, joinDate,
		e.PasswordHash, e.Salt, string(e.Status), e.CreatedAt,
	)
	return err
}
