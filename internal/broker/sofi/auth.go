package sofi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"autotrader/internal/broker"
	"autotrader/internal/credentials"
	"autotrader/internal/twofactor"
)

// Login authenticates with username and password and resolves the SMS or
// authenticator challenge SoFi raises on fresh logins. The resulting
// session is the accumulated cookie set plus the CSRF token.
func (c *Client) Login(ctx context.Context, cred credentials.Credential) (*broker.Session, error) {
	first, err := c.postLogin(ctx, map[string]string{
		"username": cred.Username,
		"password": cred.Password,
	}, apiPrefix+"/v1/session")
	if err != nil {
		return nil, err
	}

	if first.TwoFactorRequired {
		code, err := c.resolver.Resolve(ctx, twofactor.Challenge{
			Label:    c.label,
			TOTPSeed: cred.TOTPSeed,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", broker.ErrAuthFailed, err)
		}

		if _, err := c.postLogin(ctx, map[string]string{"code": code}, apiPrefix+"/v1/session/verify"); err != nil {
			return nil, err
		}
	}

	session := c.sessionFromJar()
	if session.CSRFToken == "" {
		return nil, fmt.Errorf("%w: no CSRF cookie after login", broker.ErrAuthFailed)
	}
	return session, nil
}

func (c *Client) postLogin(ctx context.Context, body map[string]string, path string) (*loginResponse, error) {
	payload, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doRequest(req, nil)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	defer resp.Body.Close()

	var result loginResponse
	_ = json.NewDecoder(resp.Body).Decode(&result)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if result.Error != "" {
			return nil, fmt.Errorf("%w: %s", broker.ErrInvalidCredentials, result.Error)
		}
		return nil, broker.ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: login endpoint returned status %d", broker.ErrAuthFailed, resp.StatusCode)
	}
	return &result, nil
}

// sessionFromJar snapshots the cookie jar into a session, pulling the CSRF
// token out of its cookie.
func (c *Client) sessionFromJar() *broker.Session {
	base, _ := url.Parse(c.baseURL)
	cookies := c.httpClient.Jar.Cookies(base)

	session := &broker.Session{Cookies: cookies}
	for _, cookie := range cookies {
		if cookie.Name == csrfCookie || cookie.Name == csrfRefreshCookie {
			session.CSRFToken = cookie.Value
		}
	}
	return session
}

// Restore rebuilds a session from a stored artifact and seeds the cookie
// jar with it.
func (c *Client) Restore(_ context.Context, artifact []byte) (*broker.Session, error) {
	var a sessionArtifact
	if err := json.Unmarshal(artifact, &a); err != nil {
		return nil, fmt.Errorf("decoding session artifact: %w", err)
	}
	if len(a.Cookies) == 0 {
		return nil, broker.ErrNoSession
	}

	cookies := make([]*http.Cookie, 0, len(a.Cookies))
	for _, sc := range a.Cookies {
		cookie := &http.Cookie{Name: sc.Name, Value: sc.Value, Domain: sc.Domain, Path: sc.Path}
		if sc.Expires != 0 {
			cookie.Expires = time.Unix(sc.Expires, 0)
		}
		cookies = append(cookies, cookie)
	}

	base, _ := url.Parse(c.baseURL)
	c.httpClient.Jar.SetCookies(base, cookies)

	return &broker.Session{Cookies: cookies, CSRFToken: a.CSRFToken}, nil
}

// Artifact serializes the session for persistence.
func (c *Client) Artifact(s *broker.Session) ([]byte, error) {
	return json.Marshal(sessionArtifact{
		Cookies:   toStoredCookies(s.Cookies),
		CSRFToken: s.CSRFToken,
	})
}

// Validate checks the session with the user endpoint. Cookie sessions carry
// no expiry, so this is the only liveness signal.
func (c *Client) Validate(ctx context.Context, s *broker.Session) bool {
	if s == nil || len(s.Cookies) == 0 {
		return false
	}
	var out map[string]any
	return c.getJSON(ctx, s, apiPrefix+"/v1/user", &out) == nil
}

// Logout drops the server-side session.
func (c *Client) Logout(ctx context.Context, s *broker.Session) error {
	if s == nil || len(s.Cookies) == 0 {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+apiPrefix+"/v1/session", nil)
	if err != nil {
		return err
	}
	resp, err := c.doRequest(req, s)
	if err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	resp.Body.Close()
	return nil
}
