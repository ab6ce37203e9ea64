// Package engine drives the per-identity pipelines: acquire a session,
// discover accounts, then collect holdings or execute orders. Identities
// run concurrently; work within one identity is strictly sequential.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"autotrader/internal/broker"
	"autotrader/internal/credentials"
	"autotrader/internal/notify"
	"autotrader/internal/registry"

	"github.com/rs/zerolog"
)

// Identity is one login at one brokerage.
type Identity struct {
	// Label identifies the identity in logs, notifications and the
	// session store, e.g. "Schwab 2".
	Label  string
	Broker broker.Broker
	Cred   credentials.Credential
}

// SelectionPolicy narrows discovered accounts to the ones orders target.
type SelectionPolicy struct {
	// AllowList restricts execution to the listed account numbers.
	AllowList []string
	// Suffix is a best-effort hint matched against the tail of account
	// numbers when no allow list is set.
	Suffix string
}

// Select applies the policy to accounts in discovery order. The returned
// note is non-empty when the policy matched nothing and the first
// discovered account was used instead.
func (p SelectionPolicy) Select(accounts []broker.Account) ([]broker.Account, string) {
	if len(accounts) == 0 {
		return nil, ""
	}

	if len(p.AllowList) > 0 {
		allowed := make(map[string]bool, len(p.AllowList))
		for _, n := range p.AllowList {
			allowed[n] = true
		}
		var selected []broker.Account
		for _, a := range accounts {
			if allowed[a.Number] {
				selected = append(selected, a)
			}
		}
		if len(selected) > 0 {
			return selected, ""
		}
		return accounts[:1], "no account matched the configured allow list, using the first discovered account"
	}

	if p.Suffix != "" {
		var selected []broker.Account
		for _, a := range accounts {
			if hasSuffix(a.Number, p.Suffix) {
				selected = append(selected, a)
			}
		}
		if len(selected) > 0 {
			return selected, ""
		}
		return accounts[:1], fmt.Sprintf("no account number ends in %s, using the first discovered account", p.Suffix)
	}

	return accounts[:1], ""
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

// Config wires an Engine.
type Config struct {
	Store    *broker.SessionStore
	Registry *registry.Registry
	Notifier notify.Notifier
	// Selection returns the account-selection policy for a brokerage.
	Selection func(brokerage string) SelectionPolicy
	// Pace is the wait between consecutive order submissions within one
	// identity. Zero disables engine-level pacing.
	Pace time.Duration
	Log  zerolog.Logger
}

// Engine runs pipelines over a fixed set of identities.
type Engine struct {
	identities []Identity
	store      *broker.SessionStore
	reg        *registry.Registry
	notifier   notify.Notifier
	selection  func(brokerage string) SelectionPolicy
	pace       time.Duration
	log        zerolog.Logger
}

// New creates an Engine over the given identities.
func New(cfg Config, identities ...Identity) *Engine {
	selection := cfg.Selection
	if selection == nil {
		selection = func(string) SelectionPolicy { return SelectionPolicy{} }
	}
	return &Engine{
		identities: identities,
		store:      cfg.Store,
		reg:        cfg.Registry,
		notifier:   cfg.Notifier,
		selection:  selection,
		pace:       cfg.Pace,
		log:        cfg.Log.With().Str("component", "engine").Logger(),
	}
}

// eachIdentity runs fn once per identity, each in its own goroutine with
// its own authenticated session. A failed login aborts only that identity.
func (e *Engine) eachIdentity(ctx context.Context, fn func(ctx context.Context, id Identity, s *broker.Session)) {
	var wg sync.WaitGroup
	for _, id := range e.identities {
		wg.Add(1)
		go func(id Identity) {
			defer wg.Done()

			log := e.log.With().Str("label", id.Label).Logger()

			session, err := e.acquire(ctx, id)
			if err != nil {
				log.Error().Err(err).Msg("login failed")
				e.notifier.Notify(fmt.Sprintf("%s: login failed: %v", id.Label, err))
				return
			}
			defer func() {
				if err := id.Broker.Logout(context.WithoutCancel(ctx), session); err != nil {
					log.Warn().Err(err).Msg("logout failed")
				}
			}()

			e.reg.Register(id.Label, id.Broker.Name())
			if err := e.reg.SetSession(id.Label, session); err != nil {
				log.Error().Err(err).Msg("recording session")
				return
			}

			fn(ctx, id, session)
		}(id)
	}
	wg.Wait()
}

// acquire produces a live session for the identity, preferring the cached
// artifact over a fresh credential login.
func (e *Engine) acquire(ctx context.Context, id Identity) (*broker.Session, error) {
	log := e.log.With().Str("label", id.Label).Logger()

	artifact, err := e.store.Load(id.Label)
	if err == nil {
		session, err := id.Broker.Restore(ctx, artifact)
		if err == nil && id.Broker.Validate(ctx, session) {
			log.Info().Msg("restored cached session")
			return session, nil
		}
		log.Info().Msg("cached session is stale, logging in")
		if err := e.store.Delete(id.Label); err != nil {
			log.Warn().Err(err).Msg("removing stale session")
		}
	} else if !errors.Is(err, broker.ErrNoSession) {
		log.Warn().Err(err).Msg("reading cached session")
	}

	if n, ok := id.Broker.(broker.LoginNoticer); ok {
		e.notifier.Notify(fmt.Sprintf("%s: %s", id.Label, n.LoginNotice()))
	}

	session, err := id.Broker.Login(ctx, id.Cred)
	if err != nil {
		return nil, err
	}

	if artifact, err := id.Broker.Artifact(session); err != nil {
		log.Warn().Err(err).Msg("serializing session")
	} else if err := e.store.Save(id.Label, artifact); err != nil {
		log.Warn().Err(err).Msg("caching session")
	}
	return session, nil
}

// discoverAccounts lists the identity's accounts and registers them in
// discovery order.
func (e *Engine) discoverAccounts(ctx context.Context, id Identity, s *broker.Session) ([]broker.Account, error) {
	accounts, err := id.Broker.Accounts(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("discovering accounts: %w", err)
	}
	for _, a := range accounts {
		if _, err := e.reg.RegisterAccount(id.Label, a); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}
