package robinhood

// tokenResponse is the OAuth token endpoint reply.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	MFARequired  bool   `json:"mfa_required"`
	Detail       string `json:"detail"`

	VerificationWorkflow struct {
		ID string `json:"id"`
	} `json:"verification_workflow"`
}

// sessionArtifact is the persisted session state.
type sessionArtifact struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	DeviceToken  string `json:"device_token"`
	ExpiresAt    string `json:"expires_at"`
}

type accountRecord struct {
	AccountNumber        string `json:"account_number"`
	BrokerageAccountType string `json:"brokerage_account_type"`
	PortfolioCash        string `json:"portfolio_cash"`
	Deactivated          bool   `json:"deactivated"`
}

type accountList struct {
	Results []accountRecord `json:"results"`
}

type positionRecord struct {
	Symbol     string `json:"symbol"`
	Instrument string `json:"instrument"`
	Quantity   string `json:"quantity"`
}

type positionList struct {
	Results []positionRecord `json:"results"`
}

type instrumentRecord struct {
	Symbol string `json:"symbol"`
}

type quoteRecord struct {
	BidPrice       string `json:"bid_price"`
	AskPrice       string `json:"ask_price"`
	LastTradePrice string `json:"last_trade_price"`
}

type orderResponse struct {
	ID             string   `json:"id"`
	State          string   `json:"state"`
	NonFieldErrors []string `json:"non_field_errors"`
}
