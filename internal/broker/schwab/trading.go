package schwab

import (
	"context"
	"fmt"
	"strings"

	"autotrader/internal/broker"
)

// knownRejections maps backend refusal messages to the short form reported
// to the operator. A matched message is a business rejection and is never
// retried.
var knownRejections = map[string]string{
	"One share buy orders for this security must be phoned into a representative.": "Order failed: One share buy orders must be phoned in.",
	"This order may result in an oversold/overbought position in your account.":    "Order failed: This may result in an oversold/overbought position.",
}

// classifyRejection scans backend messages for a known refusal. The
// backend wraps these sentences in longer messages, so this matches by
// substring, not equality.
func classifyRejection(messages []string) (string, bool) {
	for _, m := range messages {
		for needle, short := range knownRejections {
			if strings.Contains(m, needle) {
				return short, true
			}
		}
	}
	return "", false
}

func (c *Client) summary(ctx context.Context, s *broker.Session) (*summaryResponse, error) {
	if s == nil || s.IsExpired() {
		return nil, broker.ErrSessionExpired
	}

	var result summaryResponse
	resp, err := c.authorized(s).
		SetContext(ctx).
		SetResult(&result).
		Get("/accounts/summary")
	if err != nil {
		return nil, fmt.Errorf("fetching account summary: %w", err)
	}
	if resp.StatusCode() == 401 {
		return nil, broker.ErrSessionExpired
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetching account summary: status %d", resp.StatusCode())
	}
	return &result, nil
}

// Accounts lists all brokerage accounts for the login.
func (c *Client) Accounts(ctx context.Context, s *broker.Session) ([]broker.Account, error) {
	summary, err := c.summary(ctx, s)
	if err != nil {
		return nil, err
	}

	accounts := make([]broker.Account, 0, len(summary.Accounts))
	for _, a := range summary.Accounts {
		accounts = append(accounts, broker.Account{
			Number: a.AccountNumber,
			Type:   a.AccountType,
			Value:  a.LiquidationValue,
		})
	}
	return accounts, nil
}

// Positions lists the open positions for one account. The summary embeds
// positions, so this filters the account out of the same call. Per-share
// price is derived from market value; a position with no reported symbol is
// labelled "Unknown".
func (c *Client) Positions(ctx context.Context, s *broker.Session, accountNumber string) ([]broker.Position, error) {
	summary, err := c.summary(ctx, s)
	if err != nil {
		return nil, err
	}

	for _, a := range summary.Accounts {
		if a.AccountNumber != accountNumber {
			continue
		}
		positions := make([]broker.Position, 0, len(a.Positions))
		for _, p := range a.Positions {
			symbol := p.Symbol
			if symbol == "" {
				symbol = "Unknown"
			}
			price := 0.0
			if p.Quantity != 0 {
				price = broker.RoundPrice(p.MarketValue / p.Quantity)
			}
			positions = append(positions, broker.Position{
				Symbol:   symbol,
				Quantity: p.Quantity,
				Price:    price,
			})
		}
		return positions, nil
	}
	return nil, fmt.Errorf("account %s not in summary", accountNumber)
}

// ResolveSymbol is unsupported; unnamed positions are already labelled in
// Positions.
func (c *Client) ResolveSymbol(_ context.Context, _ *broker.Session, id string) (string, error) {
	return "", fmt.Errorf("no instrument lookup for %q", id)
}

// Quote returns the bid/ask/last snapshot for a symbol.
func (c *Client) Quote(ctx context.Context, s *broker.Session, symbol string) (broker.Quote, error) {
	var result quoteRecord
	resp, err := c.authorized(s).
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/marketdata/quotes/%s", symbol))
	if err != nil {
		return broker.Quote{}, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}
	if resp.StatusCode() != 200 {
		return broker.Quote{}, fmt.Errorf("%w: %s (status %d)", broker.ErrQuoteUnavailable, symbol, resp.StatusCode())
	}
	return broker.Quote{Bid: result.Bid, Ask: result.Ask, Last: result.Last}, nil
}

// SubmitOrder places a day order through the current trade API. A known
// refusal message becomes a terminal rejection; any other failure is an
// error so the engine can retry against the legacy API.
func (c *Client) SubmitOrder(ctx context.Context, s *broker.Session, o broker.Order) (broker.Response, error) {
	return c.submit(ctx, s, o, "/trade/v2/orders")
}

// SubmitOrderLegacy places the same order through the previous-generation
// API. Some orders the current API refuses still go through here.
func (c *Client) SubmitOrderLegacy(ctx context.Context, s *broker.Session, o broker.Order) (broker.Response, error) {
	return c.submit(ctx, s, o, "/trade/v1/orders")
}

func (c *Client) submit(ctx context.Context, s *broker.Session, o broker.Order, path string) (broker.Response, error) {
	if s == nil || s.IsExpired() {
		return broker.Response{}, broker.ErrSessionExpired
	}
	if err := c.pace.Wait(ctx); err != nil {
		return broker.Response{}, err
	}

	var result orderReply
	resp, err := c.authorized(s).
		SetContext(ctx).
		SetBody(map[string]any{
			"account_number": o.AccountNumber,
			"symbol":         o.Symbol,
			"quantity":       o.Quantity,
			"side":           string(o.Side),
			"order_type":     string(o.Type),
			"duration":       "day",
		}).
		SetResult(&result).
		SetError(&result).
		Post(path)
	if err != nil {
		return broker.Response{}, fmt.Errorf("submitting order: %w", err)
	}
	if resp.StatusCode() == 401 {
		return broker.Response{}, broker.ErrSessionExpired
	}

	if short, ok := classifyRejection(result.Messages); ok {
		return broker.Response{Messages: result.Messages, Rejection: short}, nil
	}
	if resp.StatusCode() >= 400 {
		return broker.Response{}, fmt.Errorf("order failed with status %d: %v",
			resp.StatusCode(), result.Messages)
	}

	r := broker.Response{Succeeded: result.OrderID != "", Messages: []string{"Success"}}
	if len(result.Messages) > 0 {
		r.Messages = result.Messages
	}
	return r, nil
}
