package robinhood

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"autotrader/internal/broker"
	"autotrader/internal/credentials"
	"autotrader/internal/twofactor"
)

const dataKeyDeviceToken = "device_token"

// Login performs a password-grant token login. A backend-raised MFA
// challenge is resolved through the two-factor resolver and the request is
// retried once with the code.
func (c *Client) Login(ctx context.Context, cred credentials.Credential) (*broker.Session, error) {
	deviceToken := newDeviceToken()

	session, err := c.requestToken(ctx, cred, deviceToken, "")
	if err == nil {
		return session, nil
	}

	if _, ok := err.(*mfaChallengeError); !ok {
		return nil, err
	}

	code, err := c.resolver.Resolve(ctx, twofactor.Challenge{
		Label:    c.label,
		TOTPSeed: cred.TOTPSeed,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", broker.ErrAuthFailed, err)
	}

	return c.requestToken(ctx, cred, deviceToken, code)
}

// mfaChallengeError signals that the token endpoint requires a one-time
// code.
type mfaChallengeError struct{}

func (*mfaChallengeError) Error() string { return "mfa code required" }

func (c *Client) requestToken(ctx context.Context, cred credentials.Credential, deviceToken, mfaCode string) (*broker.Session, error) {
	body := map[string]any{
		"grant_type":   "password",
		"client_id":    clientID,
		"scope":        "internal",
		"username":     cred.Username,
		"password":     cred.Password,
		"device_token": deviceToken,
		"expires_in":   int(tokenLifetime.Seconds()),
	}
	if mfaCode != "" {
		body["mfa_code"] = mfaCode
	}

	var result tokenResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&result).
		Post("/oauth2/token/")
	if err != nil {
		return nil, fmt.Errorf("requesting token: %w", err)
	}

	switch {
	case result.MFARequired && mfaCode == "":
		return nil, &mfaChallengeError{}
	case resp.StatusCode() == 400 || resp.StatusCode() == 401:
		if result.Detail != "" {
			return nil, fmt.Errorf("%w: %s", broker.ErrInvalidCredentials, result.Detail)
		}
		return nil, broker.ErrInvalidCredentials
	case resp.StatusCode() != 200:
		return nil, fmt.Errorf("%w: token endpoint returned status %d", broker.ErrAuthFailed, resp.StatusCode())
	case result.AccessToken == "":
		return nil, fmt.Errorf("%w: no access token in response", broker.ErrAuthFailed)
	}

	session := &broker.Session{
		Token:     result.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}
	session.SetValue("refresh_token", result.RefreshToken)
	session.SetValue(dataKeyDeviceToken, deviceToken)
	return session, nil
}

// Restore rebuilds a session from a stored artifact.
func (c *Client) Restore(_ context.Context, artifact []byte) (*broker.Session, error) {
	var a sessionArtifact
	if err := json.Unmarshal(artifact, &a); err != nil {
		return nil, fmt.Errorf("decoding session artifact: %w", err)
	}
	if a.AccessToken == "" {
		return nil, broker.ErrNoSession
	}

	expiresAt, err := time.Parse(time.RFC3339, a.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("decoding session expiry: %w", err)
	}

	session := &broker.Session{Token: a.AccessToken, ExpiresAt: expiresAt}
	session.SetValue("refresh_token", a.RefreshToken)
	session.SetValue(dataKeyDeviceToken, a.DeviceToken)
	return session, nil
}

// Artifact serializes the session for persistence.
func (c *Client) Artifact(s *broker.Session) ([]byte, error) {
	return json.Marshal(sessionArtifact{
		AccessToken:  s.Token,
		RefreshToken: s.Value("refresh_token"),
		DeviceToken:  s.Value(dataKeyDeviceToken),
		ExpiresAt:    s.ExpiresAt.Format(time.RFC3339),
	})
}

// Validate checks the session with a lightweight accounts call.
func (c *Client) Validate(ctx context.Context, s *broker.Session) bool {
	if s == nil || s.IsExpired() {
		return false
	}
	resp, err := c.authorized(s).
		SetContext(ctx).
		Get("/accounts/")
	return err == nil && resp.StatusCode() == 200
}

// Logout revokes the access token.
func (c *Client) Logout(ctx context.Context, s *broker.Session) error {
	if s == nil || s.Token == "" {
		return nil
	}
	_, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"client_id": clientID,
			"token":     s.Value("refresh_token"),
		}).
		Post("/oauth2/revoke_token/")
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}
