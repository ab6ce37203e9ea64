// Package registry aggregates accounts, holdings and the authenticated
// session for every brokerage identity in a run.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"autotrader/internal/broker"
)

var (
	ErrUnknownIdentity = errors.New("unknown identity")
	ErrInvalidHolding  = errors.New("invalid holding")
)

// Holding is one recorded position, keyed by (account, symbol). A price of
// 0.00 means the price was unavailable.
type Holding struct {
	Symbol   string
	Quantity float64
	Price    float64
}

// Registry is the process-wide aggregate of brokerage identities. It is
// safe for concurrent use; identities are collected in parallel.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

type entry struct {
	brokerage    string
	session      *broker.Session
	accountOrder []string
	accounts     map[string]broker.Account
	holdings     map[string]map[string]Holding
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds an identity under the given brokerage. Registering the same
// label twice is a no-op.
func (r *Registry) Register(label, brokerage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[label]; ok {
		return
	}
	r.entries[label] = &entry{
		brokerage: brokerage,
		accounts:  make(map[string]broker.Account),
		holdings:  make(map[string]map[string]Holding),
	}
	r.order = append(r.order, label)
}

// Labels returns all registered identity labels in registration order.
func (r *Registry) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SetSession records the authenticated session for an identity. The
// registry entry is the session's sole owner.
func (r *Registry) SetSession(label string, s *broker.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[label]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, label)
	}
	e.session = s
	return nil
}

// Session returns the session for an identity, or nil if none is set.
func (r *Registry) Session(label string) *broker.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[label]; ok {
		return e.session
	}
	return nil
}

// RegisterAccount records a discovered account. Registering an account
// number already present for the identity is a no-op; returns true when the
// account was newly added.
func (r *Registry) RegisterAccount(label string, acct broker.Account) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[label]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownIdentity, label)
	}
	if _, exists := e.accounts[acct.Number]; exists {
		return false, nil
	}
	e.accounts[acct.Number] = acct
	e.accountOrder = append(e.accountOrder, acct.Number)
	return true, nil
}

// Accounts returns the identity's accounts in discovery order.
func (r *Registry) Accounts(label string) []broker.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[label]
	if !ok {
		return nil
	}
	out := make([]broker.Account, 0, len(e.accountOrder))
	for _, n := range e.accountOrder {
		out = append(out, e.accounts[n])
	}
	return out
}

// RecordHolding stores a holding for (identity, account, symbol),
// overwriting any previous record for the pair. Holdings with a negative
// quantity or no symbol are rejected.
func (r *Registry) RecordHolding(label, accountNumber string, h Holding) error {
	if h.Symbol == "" || h.Quantity < 0 {
		return fmt.Errorf("%w: symbol=%q quantity=%v", ErrInvalidHolding, h.Symbol, h.Quantity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[label]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, label)
	}
	if e.holdings[accountNumber] == nil {
		e.holdings[accountNumber] = make(map[string]Holding)
	}
	e.holdings[accountNumber][h.Symbol] = h
	return nil
}

// Holdings returns the recorded holdings for an account, sorted by symbol.
func (r *Registry) Holdings(label, accountNumber string) []Holding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[label]
	if !ok {
		return nil
	}
	byName := e.holdings[accountNumber]
	out := make([]Holding, 0, len(byName))
	for _, h := range byName {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ClearHoldings drops all recorded holdings for an identity. Holdings are
// rebuilt from scratch on every collection pass.
func (r *Registry) ClearHoldings(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[label]; ok {
		e.holdings = make(map[string]map[string]Holding)
	}
}
