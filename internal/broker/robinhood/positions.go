package robinhood

import (
	"context"
	"fmt"
	"strings"

	"autotrader/internal/broker"
)

// Accounts lists all brokerage accounts for the login.
func (c *Client) Accounts(ctx context.Context, s *broker.Session) ([]broker.Account, error) {
	if s == nil || s.IsExpired() {
		return nil, broker.ErrSessionExpired
	}

	var result accountList
	resp, err := c.authorized(s).
		SetContext(ctx).
		SetResult(&result).
		Get("/accounts/")
	if err != nil {
		return nil, fmt.Errorf("fetching accounts: %w", err)
	}
	if resp.StatusCode() == 401 {
		return nil, broker.ErrSessionExpired
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetching accounts: status %d", resp.StatusCode())
	}

	accounts := make([]broker.Account, 0, len(result.Results))
	for _, a := range result.Results {
		if a.Deactivated {
			continue
		}
		accounts = append(accounts, broker.Account{
			Number: a.AccountNumber,
			Type:   a.BrokerageAccountType,
			Value:  atof(a.PortfolioCash),
		})
	}
	return accounts, nil
}

// Positions lists the open stock positions for one account. Symbols are
// frequently absent from the position record; the instrument identifier is
// carried for fallback resolution.
func (c *Client) Positions(ctx context.Context, s *broker.Session, accountNumber string) ([]broker.Position, error) {
	if s == nil || s.IsExpired() {
		return nil, broker.ErrSessionExpired
	}

	var result positionList
	resp, err := c.authorized(s).
		SetContext(ctx).
		SetQueryParam("nonzero", "true").
		SetQueryParam("account_number", accountNumber).
		SetResult(&result).
		Get("/positions/")
	if err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}
	if resp.StatusCode() == 401 {
		return nil, broker.ErrSessionExpired
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetching positions: status %d", resp.StatusCode())
	}

	positions := make([]broker.Position, 0, len(result.Results))
	for _, p := range result.Results {
		positions = append(positions, broker.Position{
			Symbol:       p.Symbol,
			InstrumentID: instrumentID(p.Instrument),
			Quantity:     atof(p.Quantity),
		})
	}
	return positions, nil
}

// instrumentID extracts the instrument identifier from its URL, e.g.
// "https://api.robinhood.com/instruments/abc-123/" -> "abc-123".
func instrumentID(instrumentURL string) string {
	parts := strings.Split(strings.TrimSuffix(instrumentURL, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// ResolveSymbol resolves an instrument identifier to its ticker symbol.
func (c *Client) ResolveSymbol(ctx context.Context, s *broker.Session, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("empty instrument id")
	}

	var result instrumentRecord
	resp, err := c.authorized(s).
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/instruments/%s/", id))
	if err != nil {
		return "", fmt.Errorf("fetching instrument %s: %w", id, err)
	}
	if resp.StatusCode() != 200 || result.Symbol == "" {
		return "", fmt.Errorf("instrument %s: no symbol (status %d)", id, resp.StatusCode())
	}
	return result.Symbol, nil
}

// Quote returns the bid/ask/last snapshot for a symbol.
func (c *Client) Quote(ctx context.Context, s *broker.Session, symbol string) (broker.Quote, error) {
	var result quoteRecord
	resp, err := c.authorized(s).
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/quotes/%s/", symbol))
	if err != nil {
		return broker.Quote{}, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}
	if resp.StatusCode() != 200 {
		return broker.Quote{}, fmt.Errorf("%w: %s (status %d)", broker.ErrQuoteUnavailable, symbol, resp.StatusCode())
	}

	return broker.Quote{
		Bid:  atof(result.BidPrice),
		Ask:  atof(result.AskPrice),
		Last: atof(result.LastTradePrice),
	}, nil
}
