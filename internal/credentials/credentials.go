// Package credentials parses configured brokerage account strings.
package credentials

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMalformed = errors.New("malformed credential string")

// Credential holds one parsed login for a brokerage.
//
// The configured form is colon-delimited:
//
//	username:password[:totp_seed[:account_suffix]]
//
// A TOTP field of "NA", "none" or "false" means no authenticator seed is
// configured and any two-factor challenge must be relayed to the operator.
type Credential struct {
	Username    string
	Password    string
	TOTPSeed    string
	AccountHint string
}

// HasTOTP reports whether an authenticator seed is configured.
func (c Credential) HasTOTP() bool {
	return c.TOTPSeed != ""
}

// Parse parses a single colon-delimited credential string.
func Parse(s string) (Credential, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Credential{}, fmt.Errorf("%w: expected username:password", ErrMalformed)
	}

	cred := Credential{
		Username: parts[0],
		Password: parts[1],
	}
	if len(parts) > 2 {
		cred.TOTPSeed = normalizeSeed(parts[2])
	}
	if len(parts) > 3 {
		cred.AccountHint = strings.TrimSpace(parts[3])
	}
	return cred, nil
}

// ParseList parses a comma-separated list of credential strings, one per
// login. Empty entries are skipped.
func ParseList(s string) ([]Credential, error) {
	var creds []Credential
	for _, entry := range strings.Split(strings.TrimSpace(s), ",") {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		cred, err := Parse(entry)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

// normalizeSeed maps the "no seed" placeholder values to an empty string.
func normalizeSeed(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "none", "false":
		return ""
	}
	return s
}

// Mask redacts an account number or identifier for user-visible output,
// keeping only the last four characters.
func Mask(s string) string {
	if len(s) <= 4 {
		return s
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
