package schwab

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"autotrader/internal/broker"
	"autotrader/internal/credentials"
	"autotrader/internal/twofactor"
)

// Login opens a session with username, password and a one-time code. The
// code comes from the credential's TOTP seed when present, otherwise the
// resolver prompts the operator.
func (c *Client) Login(ctx context.Context, cred credentials.Credential) (*broker.Session, error) {
	code, err := c.resolver.Resolve(ctx, twofactor.Challenge{
		Label:    c.label,
		TOTPSeed: cred.TOTPSeed,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", broker.ErrAuthFailed, err)
	}

	var result loginResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"username": cred.Username,
			"password": cred.Password,
			"totp":     code,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/auth/session")
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}

	switch {
	case resp.StatusCode() == 400 || resp.StatusCode() == 401:
		if result.Detail != "" {
			return nil, fmt.Errorf("%w: %s", broker.ErrInvalidCredentials, result.Detail)
		}
		return nil, broker.ErrInvalidCredentials
	case resp.StatusCode() != 200:
		return nil, fmt.Errorf("%w: session endpoint returned status %d", broker.ErrAuthFailed, resp.StatusCode())
	case result.Token == "":
		return nil, fmt.Errorf("%w: no token in response", broker.ErrAuthFailed)
	}

	return &broker.Session{
		Token:     result.Token,
		ExpiresAt: time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}, nil
}

// Restore rebuilds a session from a stored artifact.
func (c *Client) Restore(_ context.Context, artifact []byte) (*broker.Session, error) {
	var a sessionArtifact
	if err := json.Unmarshal(artifact, &a); err != nil {
		return nil, fmt.Errorf("decoding session artifact: %w", err)
	}
	if a.Token == "" {
		return nil, broker.ErrNoSession
	}

	expiresAt, err := time.Parse(time.RFC3339, a.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("decoding session expiry: %w", err)
	}

	return &broker.Session{Token: a.Token, ExpiresAt: expiresAt}, nil
}

// Artifact serializes the session for persistence.
func (c *Client) Artifact(s *broker.Session) ([]byte, error) {
	return json.Marshal(sessionArtifact{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt.Format(time.RFC3339),
	})
}

// Validate checks the session with a lightweight summary call.
func (c *Client) Validate(ctx context.Context, s *broker.Session) bool {
	if s == nil || s.IsExpired() {
		return false
	}
	resp, err := c.authorized(s).
		SetContext(ctx).
		Get("/accounts/summary")
	return err == nil && resp.StatusCode() == 200
}

// Logout closes the session.
func (c *Client) Logout(ctx context.Context, s *broker.Session) error {
	if s == nil || s.Token == "" {
		return nil
	}
	_, err := c.authorized(s).
		SetContext(ctx).
		Delete("/auth/session")
	if err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return nil
}
