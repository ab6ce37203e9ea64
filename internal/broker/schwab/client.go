// Package schwab implements the Schwab brokerage backend.
package schwab

import (
	"time"

	"autotrader/internal/broker"
	"autotrader/internal/twofactor"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	baseURL        = "https://ausgateway.schwab.com/api"
	defaultTimeout = 30 * time.Second
)

var _ broker.Broker = (*Client)(nil)
var _ broker.LegacySubmitter = (*Client)(nil)

// Client is an HTTP client for the Schwab trading API. One Client serves
// one login.
type Client struct {
	client   *resty.Client
	label    string
	resolver *twofactor.Resolver
	pace     *rate.Limiter
	log      zerolog.Logger
}

// New creates a Schwab client for the identity with the given label.
func New(label string, resolver *twofactor.Resolver, log zerolog.Logger) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(defaultTimeout)
	client.SetHeader("Accept", "application/json")

	return &Client{
		client:   client,
		label:    label,
		resolver: resolver,
		pace:     rate.NewLimiter(rate.Every(time.Second), 1),
		log:      log.With().Str("component", "schwab").Str("label", label).Logger(),
	}
}

// Name returns "Schwab".
func (c *Client) Name() string {
	return "Schwab"
}

// Capabilities: failed orders are retried against the legacy order API.
func (c *Client) Capabilities() broker.Capability {
	return broker.CapLegacyFallback
}

func (c *Client) authorized(s *broker.Session) *resty.Request {
	return c.client.R().SetAuthToken(s.Token)
}
