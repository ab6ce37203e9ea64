// Package broker defines the interface brokerage backends implement, the
// wire-level order and quote records exchanged with them, and the shared
// session plumbing (persistence, encryption, pricing).
package broker

import (
	"context"
	"net/http"
	"time"

	"autotrader/internal/credentials"
)

// Session is an opaque handle to an authenticated backend context. It is
// owned exclusively by the registry entry that created it and released via
// Logout on every exit path.
type Session struct {
	Token     string
	Cookies   []*http.Cookie
	CSRFToken string
	ExpiresAt time.Time
	Data      map[string]string
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Value returns a session data field, or "" when unset.
func (s *Session) Value(key string) string {
	if s.Data == nil {
		return ""
	}
	return s.Data[key]
}

// SetValue stores a session data field.
func (s *Session) SetValue(key, value string) {
	if s.Data == nil {
		s.Data = make(map[string]string)
	}
	s.Data[key] = value
}

// Account is one brokerage account discovered at login.
type Account struct {
	Number string
	Type   string
	Value  float64
}

// Position is a raw position record as a backend reports it. Symbol may be
// empty when the backend only exposes an instrument identifier.
type Position struct {
	Symbol       string
	InstrumentID string
	Quantity     float64
	Price        float64
}

// Quote is a price snapshot for one symbol. Fields a backend cannot supply
// are zero.
type Quote struct {
	Bid  float64
	Ask  float64
	Last float64
}

// Side is the order direction.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderType distinguishes market and limit submissions where the backend
// does.
type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

// Order is one order submission to a backend.
type Order struct {
	Symbol        string
	Quantity      float64
	Side          Side
	AccountNumber string
	// AccountID is the backend-internal account identifier where it
	// differs from the account number.
	AccountID  string
	Type       OrderType
	LimitPrice float64
}

// Response is the structured result of an order submission that reached the
// backend. Transport and validation failures are returned as errors
// instead.
type Response struct {
	Succeeded bool
	Messages  []string
	// Rejection carries the user-facing explanation when the backend
	// refused the order for policy reasons. A rejected order is never
	// retried.
	Rejection string
}

// Capability flags what a backend supports beyond the baseline contract.
type Capability uint

const (
	// CapLimitFallback: a failed market order is retried as a limit
	// order at a price derived from the current bid/ask.
	CapLimitFallback Capability = 1 << iota
	// CapLegacyFallback: a failed submission is retried through the
	// backend's previous API generation.
	CapLegacyFallback
	// CapBuyingPower: per-account buying power is available before
	// submission and gates buys.
	CapBuyingPower
	// CapSalableCheck: per-account salable quantity is available and
	// gates sells.
	CapSalableCheck
	// CapFractional: quantities below one share route through a
	// dedicated fractional submission shape.
	CapFractional
)

// Broker is the contract every brokerage backend implements. All blocking
// calls take a context.
type Broker interface {
	// Name returns the brokerage identifier, e.g. "SoFi".
	Name() string

	// Capabilities reports the fallback and gating behaviour the
	// execution engine should apply for this backend.
	Capabilities() Capability

	// Login performs a full credential login, resolving any two-factor
	// challenge, and returns a live session.
	Login(ctx context.Context, cred credentials.Credential) (*Session, error)

	// Restore rebuilds a session from a stored artifact. The result is
	// not guaranteed live; callers validate it.
	Restore(ctx context.Context, artifact []byte) (*Session, error)

	// Artifact serializes the session for persistence.
	Artifact(s *Session) ([]byte, error)

	// Validate checks that a session is still live with a lightweight
	// backend call.
	Validate(ctx context.Context, s *Session) bool

	// Logout releases the session.
	Logout(ctx context.Context, s *Session) error

	// Accounts lists the accounts visible to the session.
	Accounts(ctx context.Context, s *Session) ([]Account, error)

	// Positions lists raw positions for one account.
	Positions(ctx context.Context, s *Session, accountNumber string) ([]Position, error)

	// ResolveSymbol resolves an instrument identifier to a ticker
	// symbol for positions that lack one.
	ResolveSymbol(ctx context.Context, s *Session, instrumentID string) (string, error)

	// Quote returns a price snapshot for a symbol.
	Quote(ctx context.Context, s *Session, symbol string) (Quote, error)

	// SubmitOrder submits an order through the backend's current path.
	SubmitOrder(ctx context.Context, s *Session, o Order) (Response, error)
}

// LoginNoticer is implemented by backends whose credential login pushes a
// prompt the operator must act on. The notice is shown before Login.
type LoginNoticer interface {
	LoginNotice() string
}

// LegacySubmitter is implemented by backends with CapLegacyFallback.
type LegacySubmitter interface {
	SubmitOrderLegacy(ctx context.Context, s *Session, o Order) (Response, error)
}

// FundedAccount is an account eligible to buy, with its buying power.
type FundedAccount struct {
	AccountID     string
	AccountNumber string
	Type          string
	BuyingPower   float64
}

// BuyingPowerLister is implemented by backends with CapBuyingPower.
type BuyingPowerLister interface {
	FundedAccounts(ctx context.Context, s *Session) ([]FundedAccount, error)
}

// SalableHolding is one account's immediately salable quantity of a symbol.
type SalableHolding struct {
	AccountID     string
	AccountNumber string
	Type          string
	Quantity      float64
}

// SalableLister is implemented by backends with CapSalableCheck.
type SalableLister interface {
	SalableHoldings(ctx context.Context, s *Session, symbol string) ([]SalableHolding, error)
}

// FractionalSubmitter is implemented by backends with CapFractional.
type FractionalSubmitter interface {
	SubmitFractional(ctx context.Context, s *Session, o Order) (Response, error)
}
