package robinhood

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"autotrader/internal/broker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeJSON answers a test request with a JSON body. The content type
// matters: without it the client will not decode the body.
func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New("Robinhood 1", nil, zerolog.Nop())
	c.client.SetBaseURL(srv.URL)
	return c
}

func liveSession() *broker.Session {
	return &broker.Session{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
}

func TestInstrumentID(t *testing.T) {
	assert.Equal(t, "abc-123",
		instrumentID("https://api.robinhood.com/instruments/abc-123/"))
	assert.Equal(t, "abc-123",
		instrumentID("https://api.robinhood.com/instruments/abc-123"))
	assert.Equal(t, "", instrumentID(""))
}

func TestAccountsParsesStringNumbers(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"results":[
			{"account_number":"12345678","brokerage_account_type":"cash","portfolio_cash":"1523.75"},
			{"account_number":"87654321","brokerage_account_type":"margin","portfolio_cash":"0.00"},
			{"account_number":"00009999","brokerage_account_type":"cash","portfolio_cash":"0.00","deactivated":true}
		]}`)
	}))

	accounts, err := c.Accounts(context.Background(), liveSession())
	require.NoError(t, err)
	require.Len(t, accounts, 2, "deactivated accounts are dropped")
	assert.Equal(t, "12345678", accounts[0].Number)
	assert.Equal(t, 1523.75, accounts[0].Value)
	assert.Equal(t, "margin", accounts[1].Type)
}

func TestAccountsExpiredSession(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("expired session must not reach the backend")
	}))

	expired := &broker.Session{Token: "tok", ExpiresAt: time.Now().Add(-time.Hour)}
	_, err := c.Accounts(context.Background(), expired)
	assert.ErrorIs(t, err, broker.ErrSessionExpired)
}

func TestQuote(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quotes/AAPL/", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"bid_price":"10.00","ask_price":"10.05","last_trade_price":"10.02"}`)
	}))

	q, err := c.Quote(context.Background(), liveSession(), "AAPL")
	assert.NoError(t, err)
	assert.Equal(t, broker.Quote{Bid: 10.00, Ask: 10.05, Last: 10.02}, q)
}

func TestSubmitOrderValidationFailureIsError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"non_field_errors":["Order quantity has invalid increment."]}`)
	}))

	_, err := c.SubmitOrder(context.Background(), liveSession(), broker.Order{
		Symbol: "AAPL", Quantity: 1, Side: broker.Buy, Type: broker.Market,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid increment")
}

func TestSubmitOrderPlacedWithMessages(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"id":"order-1","state":"confirmed"}`)
	}))

	resp, err := c.SubmitOrder(context.Background(), liveSession(), broker.Order{
		Symbol: "AAPL", Quantity: 1, Side: broker.Buy, Type: broker.Market,
	})
	assert.NoError(t, err)
	assert.True(t, resp.Succeeded)
}

func TestRestoreRoundTrip(t *testing.T) {
	c := New("Robinhood 1", nil, zerolog.Nop())

	s := liveSession()
	s.SetValue("refresh_token", "refresh")
	s.SetValue(dataKeyDeviceToken, "device")

	artifact, err := c.Artifact(s)
	assert.NoError(t, err)

	restored, err := c.Restore(context.Background(), artifact)
	assert.NoError(t, err)
	assert.Equal(t, s.Token, restored.Token)
	assert.Equal(t, "refresh", restored.Value("refresh_token"))
	assert.Equal(t, "device", restored.Value(dataKeyDeviceToken))
	assert.WithinDuration(t, s.ExpiresAt, restored.ExpiresAt, time.Second)
}

func TestRestoreEmptyArtifact(t *testing.T) {
	c := New("Robinhood 1", nil, zerolog.Nop())

	_, err := c.Restore(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, broker.ErrNoSession)
}
