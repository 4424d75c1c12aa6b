package domain

import "testing"

func TestCartTotal(t *testing.T) {
	cart := Cart{
		{Name: "Tra sua", Price: 30000, Quantity: 2, Options: []Option{{Name: "Tran chau", Price: 5000}}},
		{Name: "Banh mi", Price: 15000, Quantity: 1},
	}
	if got, want := cart.Total(), int64(85000); got != want {
		t.Errorf("Total = %d, want %d", got, want)
	}
	if got := (Cart{}).Total(); got != 0 {
		t.Errorf("empty Total = %d, want 0", got)
	}
}

func TestCartValidate(t *testing.T) {
	tests := []struct {
		name    string
		cart    Cart
		wantErr bool
	}{
		{"ok", Cart{{Name: "A", Price: 1, Quantity: 1}}, false},
		{"empty", Cart{}, true},
		{"no name", Cart{{Price: 1, Quantity: 1}}, true},
		{"negative price", Cart{{Name: "A", Price: -1, Quantity: 1}}, true},
		{"zero quantity", Cart{{Name: "A", Price: 1, Quantity: 0}}, true},
		{"negative option", Cart{{Name: "A", Price: 1, Quantity: 1, Options: []Option{{Name: "x", Price: -2}}}}, true},
		{"at max", Cart{{Name: "A", Price: MaxAmount, Quantity: 1}}, false},
		{"free item, many", Cart{{Name: "A", Price: 0, Quantity: 1 << 62}}, false},
		{"price over max", Cart{{Name: "A", Price: MaxAmount + 1, Quantity: 1}}, true},
		{"line overflows int64", Cart{{Name: "A", Price: 1 << 62, Quantity: 3}}, true},
		{"line over max", Cart{{Name: "A", Price: 1000, Quantity: MaxAmount/1000 + 1}}, true},
		{"options push unit over max", Cart{{Name: "A", Price: MaxAmount, Quantity: 1, Options: []Option{{Name: "x", Price: 1}}}}, true},
		{"huge option", Cart{{Name: "A", Price: 1, Quantity: 1, Options: []Option{{Name: "x", Price: 1 << 62}, {Name: "y", Price: 1 << 62}}}}, true},
		{"sum over max", Cart{{Name: "A", Price: MaxAmount, Quantity: 1}, {Name: "B", Price: 1, Quantity: 1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cart.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusSuccess, true},
		{StatusPending, StatusCanceled, true},
		{StatusAwaitingPayment, StatusSuccess, true},
		{StatusAwaitingPayment, StatusCanceled, true},
		{StatusPending, StatusPending, false},
		{StatusPending, StatusAwaitingPayment, false},
		{StatusSuccess, StatusCanceled, false},
		{StatusSuccess, StatusPending, false},
		{StatusCanceled, StatusSuccess, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if !StatusSuccess.Terminal() || !StatusCanceled.Terminal() || StatusPending.Terminal() {
		t.Error("Terminal() mismatch")
	}
	if Status("shipped").Valid() {
		t.Error("unknown status should be invalid")
	}
}
