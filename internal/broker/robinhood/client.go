// Package robinhood implements the Robinhood brokerage backend.
package robinhood

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"autotrader/internal/broker"
	"autotrader/internal/twofactor"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	baseURL        = "https://api.robinhood.com"
	clientID       = "c82SH0WZOsabOXGP2sxqcj34FxkvfnWRZBKlBjFS"
	defaultTimeout = 30 * time.Second
	// Sessions are requested for 30 days to reduce login prompts.
	tokenLifetime = 30 * 24 * time.Hour
)

// Compile-time interface check.
var _ broker.Broker = (*Client)(nil)

// Client is an HTTP client for the Robinhood API. One Client serves one
// login; it is not shared across identities.
type Client struct {
	client   *resty.Client
	label    string
	resolver *twofactor.Resolver
	pace     *rate.Limiter
	log      zerolog.Logger
}

// New creates a Robinhood client for the identity with the given label.
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
		log:      log.With().Str("component", "robinhood").Str("label", label).Logger(),
	}
}

// Name returns "Robinhood".
func (c *Client) Name() string {
	return "Robinhood"
}

// Capabilities: failed market orders are retried as limit orders.
func (c *Client) Capabilities() broker.Capability {
	return broker.CapLimitFallback
}

// LoginNotice is shown to the operator before a credential login, since the
// backend may push a device-approval prompt.
func (c *Client) LoginNotice() string {
	return "Check phone app for verification prompt. You have ~60 seconds."
}

func (c *Client) authorized(s *broker.Session) *resty.Request {
	return c.client.R().SetAuthToken(s.Token)
}

// newDeviceToken generates the per-device identifier the token endpoint
// expects.
func newDeviceToken() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "00000000-0000-0000-0000-000000000000"
	}
	h := hex.EncodeToString(b[:])
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]
}

// atof parses the string-encoded decimal numbers the API returns. Empty or
// malformed values parse as 0.
func atof(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
