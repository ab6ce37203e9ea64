package sofi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"autotrader/internal/broker"
)

// accountIDKey maps an apex account number to SoFi's internal identifier
// inside the session data.
func accountIDKey(accountNumber string) string {
	return "account_id:" + accountNumber
}

// Accounts lists all invest accounts for the login. The v3 list is
// preferred; the v1 shape is kept as a fallback while v3 rolls out. The
// internal identifier behind each account number is recorded on the
// session for the trade endpoints.
func (c *Client) Accounts(ctx context.Context, s *broker.Session) ([]broker.Account, error) {
	if s == nil || len(s.Cookies) == 0 {
		return nil, broker.ErrSessionExpired
	}

	var v3 accountListResponse
	err := c.getJSON(ctx, s, apiPrefix+"/v3/account/list", &v3)
	if err == nil {
		accounts := make([]broker.Account, 0, len(v3.Accounts))
		for _, a := range v3.Accounts {
			s.SetValue(accountIDKey(a.ApexAccountID), strconv.FormatInt(a.ID, 10))
			accounts = append(accounts, broker.Account{
				Number: a.ApexAccountID,
				Type:   a.Type.Description,
				Value:  a.TotalEquityValue,
			})
		}
		return accounts, nil
	}
	c.log.Debug().Err(err).Msg("v3 account list unavailable, trying v1")

	var v1 []legacyAccountRecord
	if err := c.getJSON(ctx, s, apiPrefix+"/v1/json/accounts", &v1); err != nil {
		return nil, fmt.Errorf("fetching accounts: %w", err)
	}

	accounts := make([]broker.Account, 0, len(v1))
	for _, a := range v1 {
		s.SetValue(accountIDKey(a.ApexAccountID), strconv.FormatInt(a.ID, 10))
		accounts = append(accounts, broker.Account{
			Number: a.ApexAccountID,
			Type:   a.Description,
			Value:  a.TotalEquityValue,
		})
	}
	return accounts, nil
}

// Positions lists the stock holdings for one account. The sweep-cash row
// the endpoint mixes in is dropped.
func (c *Client) Positions(ctx context.Context, s *broker.Session, accountNumber string) ([]broker.Position, error) {
	if s == nil || len(s.Cookies) == 0 {
		return nil, broker.ErrSessionExpired
	}

	id := s.Value(accountIDKey(accountNumber))
	if id == "" {
		return nil, fmt.Errorf("no internal id known for account %s", accountNumber)
	}

	var result holdingsResponse
	if err := c.getJSON(ctx, s, apiPrefix+"/v1/accounts/"+id+"/holdings", &result); err != nil {
		return nil, fmt.Errorf("fetching holdings for %s: %w", accountNumber, err)
	}

	positions := make([]broker.Position, 0, len(result.Holdings))
	for _, h := range result.Holdings {
		if h.Symbol == cashRowSymbol {
			continue
		}
		positions = append(positions, broker.Position{
			Symbol:   h.Symbol,
			Quantity: h.Shares,
			Price:    h.Price,
		})
	}
	return positions, nil
}

// ResolveSymbol is unsupported; the holdings endpoint always names its
// rows.
func (c *Client) ResolveSymbol(_ context.Context, _ *broker.Session, id string) (string, error) {
	return "", fmt.Errorf("no instrument lookup for %q", id)
}

// Quote returns the tearsheet price for a symbol. SoFi exposes no bid/ask,
// so only Last is filled.
func (c *Client) Quote(ctx context.Context, s *broker.Session, symbol string) (broker.Quote, error) {
	var result tearsheetResponse
	path := apiPrefix + "/v1/tearsheet/quote?symbol=" + url.QueryEscape(symbol)
	if err := c.getJSON(ctx, s, path, &result); err != nil {
		return broker.Quote{}, fmt.Errorf("%w: %s: %v", broker.ErrQuoteUnavailable, symbol, err)
	}
	if result.Price <= 0 {
		return broker.Quote{}, fmt.Errorf("%w: %s", broker.ErrQuoteUnavailable, symbol)
	}
	return broker.Quote{Last: result.Price}, nil
}

// FundedAccounts lists the accounts eligible to buy with their buying
// power.
func (c *Client) FundedAccounts(ctx context.Context, s *broker.Session) ([]broker.FundedAccount, error) {
	if s == nil || len(s.Cookies) == 0 {
		return nil, broker.ErrSessionExpired
	}

	var records []fundedAccountRecord
	if err := c.getJSON(ctx, s, apiPrefix+"/v1/funded-brokerage-accounts", &records); err != nil {
		return nil, fmt.Errorf("fetching funded accounts: %w", err)
	}

	accounts := make([]broker.FundedAccount, 0, len(records))
	for _, r := range records {
		accounts = append(accounts, broker.FundedAccount{
			AccountID:     strconv.FormatInt(r.ID, 10),
			AccountNumber: r.ApexAccountID,
			Type:          r.Type.Description,
			BuyingPower:   r.BuyingPower,
		})
	}
	return accounts, nil
}

// SalableHoldings lists each account's immediately salable quantity of one
// symbol. When the per-symbol endpoint is unavailable the holdings of every
// known account are scanned instead.
func (c *Client) SalableHoldings(ctx context.Context, s *broker.Session, symbol string) ([]broker.SalableHolding, error) {
	if s == nil || len(s.Cookies) == 0 {
		return nil, broker.ErrSessionExpired
	}

	var result salableResponse
	err := c.getJSON(ctx, s, apiPrefix+"/v1/customer/holdings/symbol/"+url.PathEscape(symbol), &result)
	if err == nil {
		holdings := make([]broker.SalableHolding, 0, len(result.Accounts))
		for _, r := range result.Accounts {
			holdings = append(holdings, broker.SalableHolding{
				AccountID:     strconv.FormatInt(r.AccountID, 10),
				AccountNumber: r.ApexAccountID,
				Type:          r.Type.Description,
				Quantity:      r.SalableShares,
			})
		}
		return holdings, nil
	}
	c.log.Debug().Err(err).Str("symbol", symbol).Msg("per-symbol holdings unavailable, scanning accounts")

	accounts, err := c.Accounts(ctx, s)
	if err != nil {
		return nil, err
	}

	var holdings []broker.SalableHolding
	for _, a := range accounts {
		positions, err := c.Positions(ctx, s, a.Number)
		if err != nil {
			return nil, err
		}
		for _, p := range positions {
			if p.Symbol != symbol {
				continue
			}
			holdings = append(holdings, broker.SalableHolding{
				AccountID:     s.Value(accountIDKey(a.Number)),
				AccountNumber: a.Number,
				Type:          a.Type,
				Quantity:      p.Quantity,
			})
		}
	}
	return holdings, nil
}
