package sofi

import "net/http"

const (
	apiPrefix = "/wealth/backend/api"

	// cashRowSymbol marks the sweep-cash row the holdings endpoint mixes
	// in with stock positions.
	cashRowSymbol = "|CASH|"
)

// loginResponse is the session endpoint reply. TwoFactorRequired means the
// login is parked until a code is verified.
type loginResponse struct {
	TwoFactorRequired bool   `json:"twoFactorRequired"`
	Method            string `json:"method"`
	Error             string `json:"error"`
}

// storedCookie is the persisted shape of one session cookie.
type storedCookie struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Domain  string `json:"domain"`
	Path    string `json:"path"`
	Expires int64  `json:"expires,omitempty"`
}

// sessionArtifact is the persisted session state: the cookie set plus the
// CSRF token that must accompany mutating calls.
type sessionArtifact struct {
	Cookies   []storedCookie `json:"cookies"`
	CSRFToken string         `json:"csrf_token"`
}

// accountType nests the human-readable account kind.
type accountType struct {
	Description string `json:"description"`
}

// accountRecord is one entry in the v3 account list. ApexAccountID is the
// clearing-house account number shown to the user; ID is SoFi's internal
// identifier used by the trade endpoints.
type accountRecord struct {
	ID               int64       `json:"id"`
	ApexAccountID    string      `json:"apexAccountId"`
	Type             accountType `json:"type"`
	TotalEquityValue float64     `json:"totalEquityValue"`
}

type accountListResponse struct {
	Accounts []accountRecord `json:"accounts"`
}

// legacyAccountRecord is the v1 shape, kept as a fallback while the v3
// endpoint rolls out.
type legacyAccountRecord struct {
	ID               int64   `json:"id"`
	ApexAccountID    string  `json:"apexAccountId"`
	Description      string  `json:"description"`
	TotalEquityValue float64 `json:"totalEquityValue"`
}

type holdingRecord struct {
	Symbol string  `json:"symbol"`
	Shares float64 `json:"shares"`
	Price  float64 `json:"price"`
}

type holdingsResponse struct {
	Holdings []holdingRecord `json:"holdings"`
}

type tearsheetResponse struct {
	Price float64 `json:"price"`
}

// fundedAccountRecord is one entry from the funded-brokerage-accounts
// endpoint.
type fundedAccountRecord struct {
	ID            int64       `json:"id"`
	ApexAccountID string      `json:"apexAccountId"`
	Type          accountType `json:"type"`
	BuyingPower   float64     `json:"buyingPower"`
}

// salableRecord is one entry from the per-symbol customer holdings
// endpoint.
type salableRecord struct {
	AccountID     int64       `json:"accountId"`
	ApexAccountID string      `json:"apexAccountId"`
	Type          accountType `json:"type"`
	SalableShares float64     `json:"salableShares"`
}

type salableResponse struct {
	Accounts []salableRecord `json:"accounts"`
}

// orderResult is the trade endpoint reply. Header carries the outcome
// headline, Body the detail shown under it.
type orderResult struct {
	Header string `json:"header"`
	Body   string `json:"body"`
}

func toStoredCookies(cookies []*http.Cookie) []storedCookie {
	out := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		sc := storedCookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path}
		if !c.Expires.IsZero() {
			sc.Expires = c.Expires.Unix()
		}
		out = append(out, sc)
	}
	return out
}
