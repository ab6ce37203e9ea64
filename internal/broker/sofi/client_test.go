package sofi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"autotrader/internal/broker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New("SoFi 1", nil, zerolog.Nop())
	require.NoError(t, err)
	c.baseURL = srv.URL
	return c
}

func cookieSession() *broker.Session {
	return &broker.Session{
		Cookies:   []*http.Cookie{{Name: "JSESSIONID", Value: "abc"}},
		CSRFToken: "csrf-token",
	}
}

func TestAccountsV3RecordsInternalIDs(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiPrefix+"/v3/account/list", r.URL.Path)
		assert.Equal(t, "csrf-token", r.Header.Get(csrfHeader))
		w.Write([]byte(`{"accounts":[
			{"id":991,"apexAccountId":"5PY00001","type":{"description":"Active Invest"},"totalEquityValue":250.5}
		]}`))
	}))

	s := cookieSession()
	accounts, err := c.Accounts(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, broker.Account{Number: "5PY00001", Type: "Active Invest", Value: 250.5}, accounts[0])
	assert.Equal(t, "991", s.Value(accountIDKey("5PY00001")))
}

func TestAccountsFallsBackToV1(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == apiPrefix+"/v3/account/list" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, apiPrefix+"/v1/json/accounts", r.URL.Path)
		w.Write([]byte(`[{"id":7,"apexAccountId":"5PY00002","description":"Roth IRA","totalEquityValue":10}]`))
	}))

	accounts, err := c.Accounts(context.Background(), cookieSession())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "5PY00002", accounts[0].Number)
	assert.Equal(t, "Roth IRA", accounts[0].Type)
}

func TestPositionsSkipsCashRow(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiPrefix+"/v1/accounts/991/holdings", r.URL.Path)
		w.Write([]byte(`{"holdings":[
			{"symbol":"AAPL","shares":2,"price":150.10},
			{"symbol":"|CASH|","shares":31.55,"price":1}
		]}`))
	}))

	s := cookieSession()
	s.SetValue(accountIDKey("5PY00001"), "991")

	positions, err := c.Positions(context.Background(), s, "5PY00001")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, broker.Position{Symbol: "AAPL", Quantity: 2, Price: 150.10}, positions[0])
}

func TestQuoteIsLastOnly(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"price":150.25}`))
	}))

	q, err := c.Quote(context.Background(), cookieSession(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, broker.Quote{Last: 150.25}, q)
}

func TestQuoteZeroPriceUnavailable(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":0}`))
	}))

	_, err := c.Quote(context.Background(), cookieSession(), "FAKE")
	assert.ErrorIs(t, err, broker.ErrQuoteUnavailable)
}

func TestSalableHoldingsScanFallback(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case apiPrefix + "/v1/customer/holdings/symbol/AAPL":
			w.WriteHeader(http.StatusNotFound)
		case apiPrefix + "/v3/account/list":
			w.Write([]byte(`{"accounts":[{"id":991,"apexAccountId":"5PY00001","type":{"description":"Active Invest"}}]}`))
		case apiPrefix + "/v1/accounts/991/holdings":
			w.Write([]byte(`{"holdings":[{"symbol":"AAPL","shares":7,"price":150}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	holdings, err := c.SalableHoldings(context.Background(), cookieSession(), "AAPL")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, 7.0, holdings[0].Quantity)
	assert.Equal(t, "5PY00001", holdings[0].AccountNumber)
}

func TestSubmitOrderPlaced(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiPrefix+"/v1/trade/order", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"header":"Your order is placed.","body":""}`))
	}))

	resp, err := c.SubmitOrder(context.Background(), cookieSession(), broker.Order{
		Symbol: "AAPL", Quantity: 2, Side: broker.Buy,
		AccountID: "991", Type: broker.Limit, LimitPrice: 150.26,
	})
	require.NoError(t, err)
	assert.True(t, resp.Succeeded)
	assert.Equal(t, "BUY", body["direction"])
	assert.Equal(t, "LIMIT", body["orderType"])
	assert.Equal(t, "CORE_HOURS", body["session"])
}

func TestSubmitOrderUntradeableIsRejection(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"header":"Something went wrong.","body":"AAPL cannot be traded at SoFi."}`))
	}))

	resp, err := c.SubmitOrder(context.Background(), cookieSession(), broker.Order{
		Symbol: "AAPL", Quantity: 1, Side: broker.Buy, AccountID: "991",
		Type: broker.Limit, LimitPrice: 150.26,
	})
	require.NoError(t, err)
	assert.False(t, resp.Succeeded)
	assert.Contains(t, resp.Rejection, "cannot be traded")
}

func TestSubmitFractionalCashAmount(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiPrefix+"/v1/trade/order-fractional", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"header":"Your order is placed.","body":""}`))
	}))

	resp, err := c.SubmitFractional(context.Background(), cookieSession(), broker.Order{
		Symbol: "AAPL", Quantity: 0.3, Side: broker.Buy,
		AccountID: "991", LimitPrice: 33.33,
	})
	require.NoError(t, err)
	assert.True(t, resp.Succeeded)
	assert.InDelta(t, 10.00, body["cashAmount"], 0.001)
	assert.Equal(t, "MARKET", body["orderType"])
	assert.Equal(t, false, body["sellAll"])
}

func TestArtifactRoundTrip(t *testing.T) {
	c, err := New("SoFi 1", nil, zerolog.Nop())
	require.NoError(t, err)

	s := cookieSession()
	artifact, err := c.Artifact(s)
	require.NoError(t, err)

	restored, err := c.Restore(context.Background(), artifact)
	require.NoError(t, err)
	assert.Equal(t, "csrf-token", restored.CSRFToken)
	require.Len(t, restored.Cookies, 1)
	assert.Equal(t, "JSESSIONID", restored.Cookies[0].Name)
}

func TestRestoreEmptyArtifact(t *testing.T) {
	c, err := New("SoFi 1", nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = c.Restore(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, broker.ErrNoSession)
}
