package engine

import (
	"context"
	"testing"

	sessiondomain "github.com/ZewK3/Home-sub002/internal/session/domain"
)

func TestOPAAuthorizer_HealthCheck(t *testing.T) {
	ctx := context.Background()
	a, err := NewOPAAuthorizer(ctx, "")
	if err != nil {
		t.Fatalf("NewOPAAuthorizer: %v", err)
	}
	if err := a.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAAuthorizer_DefaultPolicy(t *testing.T) {
	ctx := context.Background()
	a, err := NewOPAAuthorizer(ctx, "")
	if err != nil {
		t.Fatalf("NewOPAAuthorizer: %v", err)
	}
	customer := sessiondomain.Principal{ID: "u1", Kind: sessiondomain.PrincipalCustomer}
	admin := sessiondomain.Principal{ID: "AD01", Kind: sessiondomain.PrincipalEmployee, Role: "AD"}
	manager := sessiondomain.Principal{ID: "QL01", Kind: sessiondomain.PrincipalEmployee, Role: "QL"}
	staff := sessiondomain.Principal{ID: "NV01", Kind: sessiondomain.PrincipalEmployee, Role: "NV"}

	tests := []struct {
		name      string
		action    string
		principal sessiondomain.Principal
		want      bool
	}{
		{"customer saves order", "saveOrder", customer, true},
		{"customer reserves order", "reserveOrder", customer, true},
		{"customer flips status", "updateOrderStatus", customer, true},
		{"customer lists orders", "getOrders", customer, true},
		{"customer reads order", "getOrderById", customer, true},
		{"customer cancels order", "cancelOrder", customer, true},
		{"customer reads profile", "getUser", customer, true},
		{"customer cannot adjust exp", "adjustUserExp", customer, false},
		{"admin adjusts exp", "adjustUserExp", admin, true},
		{"manager adjusts exp", "adjustUserExp", manager, true},
		{"staff cannot adjust exp", "adjustUserExp", staff, false},
		{"employee cannot save order", "saveOrder", admin, false},
		{"anyone reads me", "me", staff, true},
		{"unknown action", "dropTables", customer, false},
		{"anonymous me", "me", sessiondomain.Principal{}, false},
		{"anyone logs out", "logout", staff, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Allow(ctx, Input{Action: tt.action, Principal: tt.principal})
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
			if got != tt.want {
				t.Errorf("Allow(%s, %+v) = %v, want %v", tt.action, tt.principal, got, tt.want)
			}
		})
	}
}

func TestOPAAuthorizer_CustomPolicy(t *testing.T) {
	ctx := context.Background()
	policy := `package storefront.authz

default allow := false

allow if input.principal.kind == "employee"
`
	a, err := NewOPAAuthorizer(ctx, policy)
	if err != nil {
		t.Fatalf("NewOPAAuthorizer: %v", err)
	}
	ok, err := a.Allow(ctx, Input{Action: "saveOrder", Principal: sessiondomain.Principal{ID: "u1", Kind: sessiondomain.PrincipalCustomer}})
	if err != nil || ok {
		t.Errorf("customer Allow = %v, %v; want false, nil", ok, err)
	}
	ok, err = a.Allow(ctx, Input{Action: "anything", Principal: sessiondomain.Principal{ID: "e1", Kind: sessiondomain.PrincipalEmployee}})
	if err != nil || !ok {
		t.Errorf("employee Allow = %v, %v; want true, nil", ok, err)
	}
}

func TestNewOPAAuthorizer_InvalidPolicy(t *testing.T) {
	if _, err := NewOPAAuthorizer(context.Background(), "package broken\nallow if {"); err == nil {
		t.Fatal("NewOPAAuthorizer should fail on a policy that does not parse")
	}
}
