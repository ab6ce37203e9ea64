package schwab

// loginResponse is the session endpoint reply.
type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
	Detail    string `json:"detail"`
}

// sessionArtifact is the persisted session state.
type sessionArtifact struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// accountSummary carries an account with its positions embedded. Schwab
// returns the whole picture in one call.
type accountSummary struct {
	AccountNumber    string           `json:"account_number"`
	AccountType      string           `json:"account_type"`
	LiquidationValue float64          `json:"liquidation_value"`
	AvailableFunds   float64          `json:"available_funds"`
	Positions        []positionRecord `json:"positions"`
}

type summaryResponse struct {
	Accounts []accountSummary `json:"accounts"`
}

type positionRecord struct {
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	MarketValue float64 `json:"market_value"`
}

type quoteRecord struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Last float64 `json:"last"`
}

// orderReply is shared by the v2 and legacy order endpoints.
type orderReply struct {
	OrderID  string   `json:"order_id"`
	Messages []string `json:"messages"`
}
