package sofi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"autotrader/internal/broker"

	"github.com/shopspring/decimal"
)

const orderPlacedHeader = "Your order is placed."

// SubmitOrder places a whole-share limit day order during core hours. SoFi
// refuses market orders through this endpoint, so the engine always sends a
// limit price.
func (c *Client) SubmitOrder(ctx context.Context, s *broker.Session, o broker.Order) (broker.Response, error) {
	body := map[string]any{
		"accountId":  o.AccountID,
		"symbol":     o.Symbol,
		"shares":     o.Quantity,
		"direction":  strings.ToUpper(string(o.Side)),
		"orderType":  "LIMIT",
		"limitPrice": o.LimitPrice,
		"time":       "DAY",
		"session":    "CORE_HOURS",
	}
	return c.submit(ctx, s, body, apiPrefix+"/v1/trade/order")
}

// SubmitFractional places a sub-share order as a notional market order. The
// cash amount is the quoted price times the quantity.
func (c *Client) SubmitFractional(ctx context.Context, s *broker.Session, o broker.Order) (broker.Response, error) {
	cash := decimal.NewFromFloat(o.LimitPrice).
		Mul(decimal.NewFromFloat(o.Quantity)).
		Round(2)
	amount, _ := cash.Float64()

	body := map[string]any{
		"accountId":  o.AccountID,
		"symbol":     o.Symbol,
		"cashAmount": amount,
		"direction":  strings.ToUpper(string(o.Side)),
		"orderType":  "MARKET",
		"sellAll":    false,
	}
	return c.submit(ctx, s, body, apiPrefix+"/v1/trade/order-fractional")
}

func (c *Client) submit(ctx context.Context, s *broker.Session, body map[string]any, path string) (broker.Response, error) {
	if s == nil || len(s.Cookies) == 0 {
		return broker.Response{}, broker.ErrSessionExpired
	}

	payload, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return broker.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doRequest(req, s)
	if err != nil {
		return broker.Response{}, fmt.Errorf("submitting order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return broker.Response{}, broker.ErrSessionExpired
	}

	var result orderResult
	_ = json.NewDecoder(resp.Body).Decode(&result)

	if result.Header == orderPlacedHeader {
		return broker.Response{Succeeded: true, Messages: []string{result.Header}}, nil
	}
	// The backend explains untradeable symbols in the message body. That
	// is a business refusal, not a transport failure.
	if strings.Contains(result.Body, "cannot be traded") {
		return broker.Response{Messages: []string{result.Body}, Rejection: result.Body}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return broker.Response{}, fmt.Errorf("order failed with status %d: %s %s",
			resp.StatusCode, result.Header, result.Body)
	}
	return broker.Response{Messages: []string{result.Header, result.Body}}, nil
}
