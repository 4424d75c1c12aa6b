package domain

import (
	"errors"
	"time"
)

// Status is the approval state of an employee account.
type Status string

const (
	// StatusPending accounts are queued for HR approval and cannot log in.
	StatusPending Status = "pending"
	StatusActive  Status = "active"
)

// Positions recognised by the storefront. Admin positions may adjust customer exp.
const (
	PositionAdmin   = "AD"
	PositionManager = "QL"
	PositionStaff   = "NV"
)

// Employee is a staff principal. Credentials are PBKDF2-SHA256 (hash and salt hex-encoded).
type Employee struct {
	EmployeeID   string
	FullName     string
	StoreName    string
	Position     string
	Phone        string
	Email        string
	JoinDate     *time.Time
	PasswordHash string
	Salt         string
	Status       Status
	CreatedAt    time.Time
}

// Validate checks the fields required to register an employee.
func (e *Employee) Validate() error {
	switch {
	case e.EmployeeID == "":
		return errors.New("employeeId is required")
	case e.FullName == "":
		return errors.New("fullName is required")
	case e.Phone == "":
		return errors.New("phone is required")
	case e.Email == "":
		return errors.New("email is required")
	}
	if e.Position == "" {
		e.Position = PositionStaff
	}
	if e.Status == "" {
		e.Status = StatusPending
	}
	return nil
}
