package broker

import "github.com/shopspring/decimal"

var oneCent = decimal.NewFromInt(1).Shift(-2)

// DeriveLimitPrice computes the limit price used when a market order is
// retried as a limit order: one cent above the higher of bid/ask for buys,
// one cent below the lower of bid/ask for sells, rounded to two decimals.
// Returns ErrQuoteUnavailable when the quote lacks a usable bid or ask.
func DeriveLimitPrice(q Quote, side Side) (float64, error) {
	if q.Bid <= 0 || q.Ask <= 0 {
		return 0, ErrQuoteUnavailable
	}

	bid := decimal.NewFromFloat(q.Bid)
	ask := decimal.NewFromFloat(q.Ask)

	var price decimal.Decimal
	if side == Buy {
		price = decimal.Max(bid, ask).Add(oneCent)
	} else {
		price = decimal.Min(bid, ask).Sub(oneCent)
	}

	f, _ := price.Round(2).Float64()
	return f, nil
}

// RoundPrice rounds a price to two decimals.
func RoundPrice(p float64) float64 {
	f, _ := decimal.NewFromFloat(p).Round(2).Float64()
	return f
}

// RequiredFunds computes limitPrice × quantity rounded to two decimals, the
// amount an order needs against available buying power.
func RequiredFunds(limitPrice, quantity float64) float64 {
	f, _ := decimal.NewFromFloat(limitPrice).
		Mul(decimal.NewFromFloat(quantity)).
		Round(2).
		Float64()
	return f
}
