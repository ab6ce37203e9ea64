// Package twofactor resolves two-factor challenges raised during login,
// either by deriving a TOTP code locally or by relaying the request to the
// operator notification channel.
package twofactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autotrader/internal/notify"

	"github.com/rs/zerolog"
)

var ErrCodeTimeout = errors.New("one-time code not received in time")

// DefaultRelayTimeout bounds the wait for an operator-relayed code.
const DefaultRelayTimeout = 300 * time.Second

// Challenge describes a pending two-factor challenge for one login.
type Challenge struct {
	// Label identifies the login in operator-facing messages,
	// e.g. "SoFi 2".
	Label string

	// TOTPSeed is the configured authenticator seed, empty when none.
	TOTPSeed string
}

// Resolver produces codes for two-factor challenges. A configured TOTP seed
// always wins over the external relay.
type Resolver struct {
	notifier notify.Notifier
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewResolver creates a Resolver. A zero timeout falls back to
// DefaultRelayTimeout.
func NewResolver(notifier notify.Notifier, timeout time.Duration, log zerolog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultRelayTimeout
	}
	return &Resolver{
		notifier: notifier,
		timeout:  timeout,
		now:      time.Now,
		log:      log.With().Str("component", "twofactor").Logger(),
	}
}

// Resolve produces a code for the challenge. With a TOTP seed the code is
// derived locally without waiting; otherwise the operator channel is asked
// for a code with a bounded wait.
func (r *Resolver) Resolve(ctx context.Context, ch Challenge) (string, error) {
	if ch.TOTPSeed != "" {
		code, err := TOTPCode(ch.TOTPSeed, r.now())
		if err != nil {
			return "", fmt.Errorf("deriving TOTP code for %s: %w", ch.Label, err)
		}
		r.log.Debug().Str("label", ch.Label).Msg("derived TOTP code locally")
		return code, nil
	}

	relayCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	code, err := r.notifier.RequestCode(relayCtx, ch.Label)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%s: %w", ch.Label, ErrCodeTimeout)
		}
		return "", fmt.Errorf("requesting code for %s: %w", ch.Label, err)
	}
	return code, nil
}
