package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"autotrader/internal/broker"
	"autotrader/internal/credentials"
)

// OrderRequest is one batch of orders: the same side and quantity applied
// to each symbol on every selected account of every identity.
type OrderRequest struct {
	Symbols []string
	Side    broker.Side
	Amount  float64
	DryRun  bool
}

// OrderResult is the outcome for one (symbol, account) pair. Exactly one
// result is produced per pair the engine considered; symbol-level refusals
// (no salable shares anywhere, no quote) produce a single result with an
// empty account number.
type OrderResult struct {
	Identity      string
	Brokerage     string
	AccountNumber string
	Symbol        string
	Succeeded     bool
	DryRun        bool
	// Price is the limit price used, 0 for plain market submissions.
	Price   float64
	Message string
}

func (r OrderResult) String() string {
	account := "-"
	if r.AccountNumber != "" {
		account = credentials.Mask(r.AccountNumber)
	}
	status := "FAILED"
	switch {
	case r.DryRun:
		status = "dry run"
	case r.Succeeded:
		status = "ok"
	}
	return fmt.Sprintf("%s (%s) %s: %s: %s", r.Identity, account, r.Symbol, status, r.Message)
}

// ExecuteOrders runs the order batch across all identities and returns one
// result per considered (symbol, account) pair. Each result is also sent
// to the notification channel as it is produced.
func (e *Engine) ExecuteOrders(ctx context.Context, req OrderRequest) []OrderResult {
	var mu sync.Mutex
	var results []OrderResult

	e.eachIdentity(ctx, func(ctx context.Context, id Identity, s *broker.Session) {
		for _, r := range e.executeIdentity(ctx, id, s, req) {
			e.notifier.Notify(r.String())
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}
	})
	return results
}

func (e *Engine) executeIdentity(ctx context.Context, id Identity, s *broker.Session, req OrderRequest) []OrderResult {
	log := e.log.With().Str("label", id.Label).Logger()

	accounts, err := e.discoverAccounts(ctx, id, s)
	if err != nil {
		log.Error().Err(err).Msg("account discovery failed")
		e.notifier.Notify(fmt.Sprintf("%s: account discovery failed: %v", id.Label, err))
		return nil
	}

	policy := e.selection(id.Broker.Name())
	if id.Cred.AccountHint != "" {
		// A hint on the credential itself beats the brokerage-wide one.
		policy.Suffix = id.Cred.AccountHint
	}
	selected, note := policy.Select(accounts)
	if note != "" {
		e.notifier.Notify(fmt.Sprintf("%s: %s", id.Label, note))
	}
	if len(selected) == 0 {
		results := make([]OrderResult, 0, len(req.Symbols))
		for _, symbol := range req.Symbols {
			results = append(results, e.symbolFailure(id, symbol, "no accounts to trade on"))
		}
		return results
	}

	var results []OrderResult
	for _, symbol := range req.Symbols {
		results = append(results, e.executeSymbol(ctx, id, s, selected, req, symbol)...)
	}
	return results
}

func (e *Engine) executeSymbol(ctx context.Context, id Identity, s *broker.Session, selected []broker.Account, req OrderRequest, symbol string) []OrderResult {
	caps := id.Broker.Capabilities()

	if caps&broker.CapBuyingPower != 0 && req.Side == broker.Buy {
		return e.executeGatedBuy(ctx, id, s, selected, req, symbol)
	}
	if caps&broker.CapSalableCheck != 0 && req.Side == broker.Sell {
		return e.executeGatedSell(ctx, id, s, selected, req, symbol)
	}

	var results []OrderResult
	for _, account := range selected {
		results = append(results, e.submitWithFallback(ctx, id, s, req, broker.Order{
			Symbol:        symbol,
			Quantity:      req.Amount,
			Side:          req.Side,
			AccountNumber: account.Number,
			Type:          broker.Market,
		}))
	}
	return results
}

// executeGatedBuy buys on each funded account with enough buying power for
// the order. Underfunded accounts are reported and skipped.
func (e *Engine) executeGatedBuy(ctx context.Context, id Identity, s *broker.Session, selected []broker.Account, req OrderRequest, symbol string) []OrderResult {
	lister := id.Broker.(broker.BuyingPowerLister)

	funded, err := lister.FundedAccounts(ctx, s)
	if err != nil {
		return []OrderResult{e.symbolFailure(id, symbol, fmt.Sprintf("listing funded accounts: %v", err))}
	}
	candidates := filterFunded(funded, selected)
	if len(candidates) == 0 {
		return []OrderResult{e.symbolFailure(id, symbol, "no funded account to buy on")}
	}

	quote, err := id.Broker.Quote(ctx, s, symbol)
	if err != nil {
		return []OrderResult{e.symbolFailure(id, symbol, fmt.Sprintf("no quote: %v", err))}
	}
	limitPrice := limitFromLast(quote.Last, broker.Buy)
	required := broker.RequiredFunds(limitPrice, req.Amount)

	var results []OrderResult
	for _, account := range candidates {
		if required > account.BuyingPower {
			results = append(results, OrderResult{
				Identity:      id.Label,
				Brokerage:     id.Broker.Name(),
				AccountNumber: account.AccountNumber,
				Symbol:        symbol,
				Message: fmt.Sprintf("insufficient funds: needs $%.2f, has $%.2f",
					required, account.BuyingPower),
			})
			continue
		}

		results = append(results, e.submitGated(ctx, id, s, req, broker.Order{
			Symbol:        symbol,
			Quantity:      req.Amount,
			Side:          broker.Buy,
			AccountNumber: account.AccountNumber,
			AccountID:     account.AccountID,
			Type:          broker.Limit,
			LimitPrice:    limitPrice,
		}))
	}
	return results
}

// executeGatedSell sells from the first account holding enough salable
// shares. Accounts that hold some but not enough are reported and skipped;
// when no account holds the symbol at all, or the total held is short, a
// single refusal is reported for the symbol.
func (e *Engine) executeGatedSell(ctx context.Context, id Identity, s *broker.Session, selected []broker.Account, req OrderRequest, symbol string) []OrderResult {
	lister := id.Broker.(broker.SalableLister)

	salable, err := lister.SalableHoldings(ctx, s, symbol)
	if err != nil {
		return []OrderResult{e.symbolFailure(id, symbol, fmt.Sprintf("listing salable holdings: %v", err))}
	}
	candidates := filterSalable(salable, selected)

	var total float64
	for _, h := range candidates {
		total += h.Quantity
	}
	if total < req.Amount {
		return []OrderResult{e.symbolFailure(id, symbol,
			fmt.Sprintf("not enough shares of %s to sell %s", symbol, formatQuantity(req.Amount)))}
	}

	quote, err := id.Broker.Quote(ctx, s, symbol)
	if err != nil {
		return []OrderResult{e.symbolFailure(id, symbol, fmt.Sprintf("no quote: %v", err))}
	}
	limitPrice := limitFromLast(quote.Last, broker.Sell)

	var results []OrderResult
	for _, holding := range candidates {
		if holding.Quantity < req.Amount {
			results = append(results, OrderResult{
				Identity:      id.Label,
				Brokerage:     id.Broker.Name(),
				AccountNumber: holding.AccountNumber,
				Symbol:        symbol,
				Message: fmt.Sprintf("only %s salable, skipping",
					formatQuantity(holding.Quantity)),
			})
			continue
		}

		r := e.submitGated(ctx, id, s, req, broker.Order{
			Symbol:        symbol,
			Quantity:      req.Amount,
			Side:          broker.Sell,
			AccountNumber: holding.AccountNumber,
			AccountID:     holding.AccountID,
			Type:          broker.Limit,
			LimitPrice:    limitPrice,
		})
		results = append(results, r)
		if r.Succeeded {
			break
		}
	}
	return results
}

// submitGated submits one pre-priced order, routing sub-share quantities
// through the fractional path when the backend has one.
func (e *Engine) submitGated(ctx context.Context, id Identity, s *broker.Session, req OrderRequest, o broker.Order) OrderResult {
	if req.DryRun {
		return e.dryRunResult(id, req, o)
	}

	submit := id.Broker.SubmitOrder
	if o.Quantity < 1 && id.Broker.Capabilities()&broker.CapFractional != 0 {
		submit = id.Broker.(broker.FractionalSubmitter).SubmitFractional
	}

	resp, err := submit(ctx, s, o)
	e.sleep(ctx)
	if err != nil {
		return e.failureResult(id, o, fmt.Sprintf("order failed: %v", err))
	}
	return e.responseResult(id, o, resp)
}

// submitWithFallback submits a market order and, on a transport failure,
// retries once along the backend's fallback axis: a derived limit price or
// the legacy API. A business rejection is terminal.
func (e *Engine) submitWithFallback(ctx context.Context, id Identity, s *broker.Session, req OrderRequest, o broker.Order) OrderResult {
	log := e.log.With().Str("label", id.Label).Str("symbol", o.Symbol).Logger()

	if req.DryRun {
		return e.dryRunResult(id, req, o)
	}

	resp, err := id.Broker.SubmitOrder(ctx, s, o)
	e.sleep(ctx)
	if err == nil {
		return e.responseResult(id, o, resp)
	}

	caps := id.Broker.Capabilities()
	switch {
	case caps&broker.CapLimitFallback != 0:
		log.Warn().Err(err).Msg("market order failed, retrying as limit")

		quote, qerr := id.Broker.Quote(ctx, s, o.Symbol)
		if qerr != nil {
			return e.failureResult(id, o, fmt.Sprintf("order failed: %v (no quote for limit retry: %v)", err, qerr))
		}
		price, perr := broker.DeriveLimitPrice(quote, o.Side)
		if perr != nil {
			return e.failureResult(id, o, fmt.Sprintf("order failed: %v (no usable quote for limit retry)", err))
		}

		retry := o
		retry.Type = broker.Limit
		retry.LimitPrice = price
		resp, rerr := id.Broker.SubmitOrder(ctx, s, retry)
		e.sleep(ctx)
		if rerr != nil {
			return e.failureResult(id, retry, fmt.Sprintf("limit retry failed: %v", rerr))
		}
		return e.responseResult(id, retry, resp)

	case caps&broker.CapLegacyFallback != 0:
		log.Warn().Err(err).Msg("order failed, retrying through legacy API")

		resp, rerr := id.Broker.(broker.LegacySubmitter).SubmitOrderLegacy(ctx, s, o)
		e.sleep(ctx)
		if rerr != nil {
			return e.failureResult(id, o, fmt.Sprintf("legacy retry failed: %v", rerr))
		}
		return e.responseResult(id, o, resp)
	}

	return e.failureResult(id, o, fmt.Sprintf("order failed: %v", err))
}

func (e *Engine) dryRunResult(id Identity, req OrderRequest, o broker.Order) OrderResult {
	return OrderResult{
		Identity:      id.Label,
		Brokerage:     id.Broker.Name(),
		AccountNumber: o.AccountNumber,
		Symbol:        o.Symbol,
		Succeeded:     true,
		DryRun:        true,
		Price:         o.LimitPrice,
		Message: fmt.Sprintf("would %s %s %s", req.Side,
			formatQuantity(req.Amount), o.Symbol),
	}
}

func (e *Engine) responseResult(id Identity, o broker.Order, resp broker.Response) OrderResult {
	r := OrderResult{
		Identity:      id.Label,
		Brokerage:     id.Broker.Name(),
		AccountNumber: o.AccountNumber,
		Symbol:        o.Symbol,
		Succeeded:     resp.Succeeded,
		Price:         o.LimitPrice,
	}
	switch {
	case resp.Rejection != "":
		r.Message = resp.Rejection
	case len(resp.Messages) > 0:
		r.Message = strings.Join(resp.Messages, "; ")
	case resp.Succeeded:
		r.Message = "order placed"
	default:
		r.Message = "order not placed"
	}
	return r
}

func (e *Engine) failureResult(id Identity, o broker.Order, message string) OrderResult {
	return OrderResult{
		Identity:      id.Label,
		Brokerage:     id.Broker.Name(),
		AccountNumber: o.AccountNumber,
		Symbol:        o.Symbol,
		Price:         o.LimitPrice,
		Message:       message,
	}
}

func (e *Engine) symbolFailure(id Identity, symbol, message string) OrderResult {
	return OrderResult{
		Identity:  id.Label,
		Brokerage: id.Broker.Name(),
		Symbol:    symbol,
		Message:   message,
	}
}

// sleep paces consecutive submissions within one identity.
func (e *Engine) sleep(ctx context.Context) {
	if e.pace <= 0 {
		return
	}
	select {
	case <-time.After(e.pace):
	case <-ctx.Done():
	}
}

// limitFromLast derives a limit price from a last-trade price for backends
// that expose no bid/ask: one cent above for buys, one cent below for
// sells.
func limitFromLast(last float64, side broker.Side) float64 {
	if side == broker.Buy {
		return broker.RoundPrice(last + 0.01)
	}
	return broker.RoundPrice(last - 0.01)
}

// filterFunded keeps funded accounts in the selected set, falling back to
// the full funded list when the selection excludes them all.
func filterFunded(funded []broker.FundedAccount, selected []broker.Account) []broker.FundedAccount {
	numbers := make(map[string]bool, len(selected))
	for _, a := range selected {
		numbers[a.Number] = true
	}
	var kept []broker.FundedAccount
	for _, f := range funded {
		if numbers[f.AccountNumber] {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return funded
	}
	return kept
}

func filterSalable(salable []broker.SalableHolding, selected []broker.Account) []broker.SalableHolding {
	numbers := make(map[string]bool, len(selected))
	for _, a := range selected {
		numbers[a.Number] = true
	}
	var kept []broker.SalableHolding
	for _, h := range salable {
		if numbers[h.AccountNumber] {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		return salable
	}
	return kept
}

// formatQuantity renders a share quantity without trailing zeros.
func formatQuantity(q float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", q), "0"), ".")
}
