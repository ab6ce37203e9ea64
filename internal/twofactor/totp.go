package twofactor

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const (
	totpStep   = 30 * time.Second
	totpDigits = 6
)

// TOTPCode derives an RFC 6238 time-based one-time code from a base32
// authenticator seed at the given time. The same seed and time always
// produce the same code.
func TOTPCode(seed string, t time.Time) (string, error) {
	key, err := decodeSeed(seed)
	if err != nil {
		return "", fmt.Errorf("decoding TOTP seed: %w", err)
	}

	counter := uint64(t.Unix()) / uint64(totpStep/time.Second)
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation per RFC 4226.
	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", totpDigits, code%1000000), nil
}

// decodeSeed decodes a base32 seed, tolerating lowercase, spaces and
// missing padding as authenticator apps export them.
func decodeSeed(seed string) ([]byte, error) {
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(seed), " ", ""))
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.TrimRight(s, "="))
}
