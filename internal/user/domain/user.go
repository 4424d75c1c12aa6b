package domain

import (
	"errors"
	"time"
)

// User is a storefront customer. Exp accrues from successful orders and determines Rank.
type User struct {
	ID           string
	Name         string
	Email        string // e-mail address or phone number used as the login identifier
	PasswordHash string // bcrypt, or legacy unsalted SHA-256 hex until the next login
	Exp          int64
	Rank         Rank
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Name == "" {
		return errors.New("name is required")
	}
	if u.Exp < 0 {
		return errors.New("exp must not be negative")
	}
	if u.Rank == "" {
		u.Rank = RankFor(u.Exp)
	}
	return nil
}
