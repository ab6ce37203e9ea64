package broker

import (
	"testing"
)

func TestDeriveLimitPrice(t *testing.T) {
	tests := []struct {
		name    string
		quote   Quote
		side    Side
		want    float64
		wantErr bool
	}{
		{"buy uses max plus one cent", Quote{Bid: 10.00, Ask: 10.05}, Buy, 10.06, false},
		{"sell uses min minus one cent", Quote{Bid: 10.00, Ask: 10.05}, Sell, 9.99, false},
		{"buy when bid above ask", Quote{Bid: 10.10, Ask: 10.05}, Buy, 10.11, false},
		{"sell when ask below bid", Quote{Bid: 10.10, Ask: 10.05}, Sell, 10.04, false},
		{"rounds to two decimals", Quote{Bid: 10.001, Ask: 10.002}, Buy, 10.01, false},
		{"missing bid", Quote{Bid: 0, Ask: 10.05}, Buy, 0, true},
		{"missing ask", Quote{Bid: 10.00, Ask: 0}, Sell, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveLimitPrice(tt.quote, tt.side)
			if tt.wantErr {
				if err == nil {
					t.Fatal("DeriveLimitPrice() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DeriveLimitPrice() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DeriveLimitPrice() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequiredFunds(t *testing.T) {
	if got := RequiredFunds(10.06, 5); got != 50.30 {
		t.Errorf("RequiredFunds() = %v, want 50.30", got)
	}
	// Fractional quantities must not accumulate float error.
	if got := RequiredFunds(33.33, 0.3); got != 10.00 {
		t.Errorf("RequiredFunds() = %v, want 10.00", got)
	}
}

func TestRoundPrice(t *testing.T) {
	if got := RoundPrice(10.055); got != 10.06 {
		t.Errorf("RoundPrice() = %v, want 10.06", got)
	}
}
