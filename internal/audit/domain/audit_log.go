package domain

import "time"

// AuditLog represents an audit event. PrincipalID is empty for anonymous calls (e.g. failed logins).
type AuditLog struct {
	ID          string
	PrincipalID string
	Action      string
	Resource    string
	IP          string
	Metadata    string
	CreatedAt   time.Time
}
