package security

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewSessionToken(t *testing.T) {
	a, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}
	b, _ := NewSessionToken()
	if a == b {
		t.Error("two session tokens should differ")
	}
	id, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("token %q is not a UUID: %v", a, err)
	}
	if id.Version() != 4 {
		t.Errorf("version = %d, want 4", id.Version())
	}
}

func TestIngestTokens_IssueValidate(t *testing.T) {
	tok := NewIngestTokens("shh", "bank-mail-bot")
	s, err := tok.Issue("mailbot", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	sub, err := tok.Validate(s)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if sub != "mailbot" {
		t.Errorf("subject = %q, want mailbot", sub)
	}
}

func TestIngestTokens_Rejects(t *testing.T) {
	tok := NewIngestTokens("shh", "bank-mail-bot")
	good, _ := tok.Issue("mailbot", time.Minute)

	other := NewIngestTokens("different", "bank-mail-bot")
	forged, _ := other.Issue("mailbot", time.Minute)

	wrongIssuer := NewIngestTokens("shh", "someone-else")
	foreign, _ := wrongIssuer.Issue("mailbot", time.Minute)

	expiredIssuer := NewIngestTokens("shh", "bank-mail-bot")
	expiredIssuer.nowF = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _ := expiredIssuer.Issue("mailbot", time.Minute)

	cases := map[string]string{
		"forged":       forged,
		"wrong issuer": foreign,
		"expired":      expired,
		"tampered":     good[:len(good)-2] + "xx",
		"garbage":      "not.a.jwt",
		"empty":        "",
	}
	for name, s := range cases {
		if _, err := tok.Validate(s); err != ErrInvalidToken {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestIngestTokens_Disabled(t *testing.T) {
	tok := NewIngestTokens("", "x")
	if _, err := tok.Issue("a", time.Minute); err != ErrIngestDisabled {
		t.Errorf("Issue err = %v, want ErrIngestDisabled", err)
	}
	if _, err := tok.Validate("a.b.c"); err != ErrIngestDisabled {
		t.Errorf("Validate err = %v, want ErrIngestDisabled", err)
	}
	if !strings.Contains(ErrIngestDisabled.Error(), "ingest") {
		t.Error("ErrIngestDisabled message should mention ingest")
	}
}
