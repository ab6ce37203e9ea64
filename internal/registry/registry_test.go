package registry

import (
	"testing"

	"autotrader/internal/broker"

	"github.com/stretchr/testify/assert"
)

func TestRegisterAccountIdempotent(t *testing.T) {
	r := New()
	r.Register("Robinhood 1", "Robinhood")

	added, err := r.RegisterAccount("Robinhood 1", broker.Account{Number: "12345678", Type: "cash"})
	assert.NoError(t, err)
	assert.True(t, added)

	// Same account number from a second discovery call must be a no-op,
	// even with different field values.
	added, err = r.RegisterAccount("Robinhood 1", broker.Account{Number: "12345678", Type: "margin"})
	assert.NoError(t, err)
	assert.False(t, added)

	accounts := r.Accounts("Robinhood 1")
	assert.Len(t, accounts, 1)
	assert.Equal(t, "cash", accounts[0].Type)
}

func TestAccountsPreserveDiscoveryOrder(t *testing.T) {
	r := New()
	r.Register("Schwab 1", "Schwab")

	for _, n := range []string{"33330001", "11110002", "22220003"} {
		_, err := r.RegisterAccount("Schwab 1", broker.Account{Number: n})
		assert.NoError(t, err)
	}

	accounts := r.Accounts("Schwab 1")
	assert.Equal(t, "33330001", accounts[0].Number)
	assert.Equal(t, "11110002", accounts[1].Number)
	assert.Equal(t, "22220003", accounts[2].Number)
}

func TestRecordHoldingRejectsInvalid(t *testing.T) {
	r := New()
	r.Register("SoFi 1", "SoFi")

	err := r.RecordHolding("SoFi 1", "acct", Holding{Symbol: "", Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidHolding)

	err = r.RecordHolding("SoFi 1", "acct", Holding{Symbol: "AAPL", Quantity: -2})
	assert.ErrorIs(t, err, ErrInvalidHolding)

	// Price 0.00 is a valid sentinel for "price unavailable".
	err = r.RecordHolding("SoFi 1", "acct", Holding{Symbol: "AAPL", Quantity: 1, Price: 0})
	assert.NoError(t, err)
}

func TestRecordHoldingOverwritesPair(t *testing.T) {
	r := New()
	r.Register("SoFi 1", "SoFi")

	assert.NoError(t, r.RecordHolding("SoFi 1", "acct", Holding{Symbol: "AAPL", Quantity: 1, Price: 100}))
	assert.NoError(t, r.RecordHolding("SoFi 1", "acct", Holding{Symbol: "AAPL", Quantity: 2, Price: 101}))

	holdings := r.Holdings("SoFi 1", "acct")
	assert.Len(t, holdings, 1)
	assert.Equal(t, 2.0, holdings[0].Quantity)
}

func TestUnknownIdentity(t *testing.T) {
	r := New()

	_, err := r.RegisterAccount("nope", broker.Account{Number: "1"})
	assert.ErrorIs(t, err, ErrUnknownIdentity)

	err = r.RecordHolding("nope", "acct", Holding{Symbol: "AAPL", Quantity: 1})
	assert.ErrorIs(t, err, ErrUnknownIdentity)

	assert.Nil(t, r.Session("nope"))
	assert.Nil(t, r.Accounts("nope"))
}

func TestClearHoldings(t *testing.T) {
	r := New()
	r.Register("SoFi 1", "SoFi")
	assert.NoError(t, r.RecordHolding("SoFi 1", "acct", Holding{Symbol: "AAPL", Quantity: 1}))

	r.ClearHoldings("SoFi 1")
	assert.Empty(t, r.Holdings("SoFi 1", "acct"))
}

func TestRegisterTwiceKeepsEntry(t *testing.T) {
	r := New()
	r.Register("SoFi 1", "SoFi")
	_, err := r.RegisterAccount("SoFi 1", broker.Account{Number: "1"})
	assert.NoError(t, err)

	r.Register("SoFi 1", "SoFi")
	assert.Len(t, r.Accounts("SoFi 1"), 1)
	assert.Equal(t, []string{"SoFi 1"}, r.Labels())
}
