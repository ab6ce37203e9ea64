package engine

import (
	"context"
	"fmt"
	"strings"

	"autotrader/internal/broker"
	"autotrader/internal/credentials"
	"autotrader/internal/registry"
)

// CollectHoldings gathers every identity's positions into the registry and
// sends a per-account summary to the notification channel. Positions whose
// symbol cannot be resolved are skipped; positions without a price report
// 0.00.
func (e *Engine) CollectHoldings(ctx context.Context) {
	e.eachIdentity(ctx, func(ctx context.Context, id Identity, s *broker.Session) {
		log := e.log.With().Str("label", id.Label).Logger()

		accounts, err := e.discoverAccounts(ctx, id, s)
		if err != nil {
			log.Error().Err(err).Msg("account discovery failed")
			e.notifier.Notify(fmt.Sprintf("%s: account discovery failed: %v", id.Label, err))
			return
		}

		e.reg.ClearHoldings(id.Label)

		for _, account := range accounts {
			positions, err := id.Broker.Positions(ctx, s, account.Number)
			if err != nil {
				log.Error().Err(err).Str("account", account.Number).Msg("fetching positions")
				e.notifier.Notify(fmt.Sprintf("%s: could not read positions for %s: %v",
					id.Label, credentials.Mask(account.Number), err))
				continue
			}

			for _, p := range positions {
				symbol := p.Symbol
				if symbol == "" {
					symbol, err = id.Broker.ResolveSymbol(ctx, s, p.InstrumentID)
					if err != nil {
						log.Warn().Err(err).Str("instrument", p.InstrumentID).Msg("skipping unnamed position")
						continue
					}
				}

				price := p.Price
				if price == 0 {
					if q, err := id.Broker.Quote(ctx, s, symbol); err == nil {
						price = q.Last
					} else {
						log.Debug().Str("symbol", symbol).Msg("no price available, reporting 0.00")
					}
				}

				err = e.reg.RecordHolding(id.Label, account.Number, registry.Holding{
					Symbol:   symbol,
					Quantity: p.Quantity,
					Price:    broker.RoundPrice(price),
				})
				if err != nil {
					log.Warn().Err(err).Str("symbol", symbol).Msg("skipping holding")
				}
			}
		}

		e.notifier.Notify(e.holdingsSummary(id.Label, accounts))
	})
}

// holdingsSummary renders one identity's holdings grouped by account, with
// account numbers masked.
func (e *Engine) holdingsSummary(label string, accounts []broker.Account) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s holdings:\n", label)

	for _, account := range accounts {
		fmt.Fprintf(&b, "%s (%s):\n", credentials.Mask(account.Number), account.Type)

		holdings := e.reg.Holdings(label, account.Number)
		if len(holdings) == 0 {
			b.WriteString("  no holdings\n")
		}

		var total float64
		for _, h := range holdings {
			value := h.Quantity * h.Price
			total += value
			fmt.Fprintf(&b, "  %s: %g @ $%.2f = $%.2f\n", h.Symbol, h.Quantity, h.Price, value)
		}
		fmt.Fprintf(&b, "  total: $%.2f\n", total)
	}
	return strings.TrimRight(b.String(), "\n")
}
