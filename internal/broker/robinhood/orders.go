package robinhood

import (
	"context"
	"fmt"
	"strconv"

	"autotrader/internal/broker"
)

// SubmitOrder places a day order. Transport and validation failures are
// returned as errors so the engine can retry with a derived limit price; a
// placed order with backend messages is reported as-is.
func (c *Client) SubmitOrder(ctx context.Context, s *broker.Session, o broker.Order) (broker.Response, error) {
	if s == nil || s.IsExpired() {
		return broker.Response{}, broker.ErrSessionExpired
	}
	if err := c.pace.Wait(ctx); err != nil {
		return broker.Response{}, err
	}

	body := map[string]any{
		"symbol":         o.Symbol,
		"quantity":       strconv.FormatFloat(o.Quantity, 'f', -1, 64),
		"side":           string(o.Side),
		"account_number": o.AccountNumber,
		"time_in_force":  "gfd",
		"type":           string(o.Type),
	}
	if o.Type == broker.Limit {
		body["price"] = strconv.FormatFloat(o.LimitPrice, 'f', 2, 64)
	}

	var result orderResponse
	resp, err := c.authorized(s).
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&result).
		Post("/orders/")
	if err != nil {
		return broker.Response{}, fmt.Errorf("submitting order: %w", err)
	}
	if resp.StatusCode() == 401 {
		return broker.Response{}, broker.ErrSessionExpired
	}
	if resp.StatusCode() >= 400 {
		return broker.Response{}, fmt.Errorf("order rejected with status %d: %v",
			resp.StatusCode(), result.NonFieldErrors)
	}

	r := broker.Response{Succeeded: result.ID != "", Messages: []string{"Success"}}
	if len(result.NonFieldErrors) > 0 {
		r.Messages = result.NonFieldErrors
	}
	return r, nil
}
