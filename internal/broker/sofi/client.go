// Package sofi implements the SoFi Invest brokerage backend. SoFi
// authenticates with browser-style cookies and a CSRF token rather than a
// bearer token, so the client carries a cookie jar and replays the stored
// cookies on restore.
package sofi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"autotrader/internal/broker"
	"autotrader/internal/twofactor"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL     = "https://www.sofi.com"
	defaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	defaultTimeout     = 30 * time.Second
	minRequestInterval = 1 * time.Second

	csrfCookie        = "SOFI_CSRF_COOKIE"
	csrfRefreshCookie = "SOFI_R_CSRF_TOKEN"
	csrfHeader        = "X-CSRF-TOKEN"
)

var _ broker.Broker = (*Client)(nil)
var _ broker.BuyingPowerLister = (*Client)(nil)
var _ broker.SalableLister = (*Client)(nil)
var _ broker.FractionalSubmitter = (*Client)(nil)

// Client is an HTTP client for the SoFi Invest API. One Client serves one
// login.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	label      string
	resolver   *twofactor.Resolver
	log        zerolog.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// New creates a SoFi client for the identity with the given label.
func New(label string, resolver *twofactor.Resolver, log zerolog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
		},
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		label:     label,
		resolver:  resolver,
		log:       log.With().Str("component", "sofi").Str("label", label).Logger(),
	}, nil
}

// Name returns "SoFi".
func (c *Client) Name() string {
	return "SoFi"
}

// Capabilities: buys are gated on per-account buying power, sells on
// salable quantity, and sub-share quantities use the fractional path.
func (c *Client) Capabilities() broker.Capability {
	return broker.CapBuyingPower | broker.CapSalableCheck | broker.CapFractional
}

// doRequest executes a request with rate limiting, common headers, and the
// session's cookies and CSRF token applied.
func (c *Client) doRequest(req *http.Request, session *broker.Session) (*http.Response, error) {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < minRequestInterval {
		time.Sleep(minRequestInterval - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if session != nil {
		for _, cookie := range session.Cookies {
			req.AddCookie(cookie)
		}
		if session.CSRFToken != "" {
			req.Header.Set(csrfHeader, session.CSRFToken)
		}
	}

	return c.httpClient.Do(req)
}

// getJSON fetches a path and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, session *broker.Session, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.doRequest(req, session)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return broker.ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: status %d, body: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
