package twofactor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// fakeNotifier records code requests and serves a canned code.
type fakeNotifier struct {
	requests int
	code     string
	block    bool
}

func (f *fakeNotifier) Notify(string) {}

func (f *fakeNotifier) RequestCode(ctx context.Context, label string) (string, error) {
	f.requests++
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.code, nil
}

func TestResolveWithSeedSkipsRelay(t *testing.T) {
	fn := &fakeNotifier{code: "999999"}
	r := NewResolver(fn, time.Minute, zerolog.Nop())
	r.now = func() time.Time { return time.Unix(59, 0) }

	code, err := r.Resolve(context.Background(), Challenge{Label: "Schwab 1", TOTPSeed: rfcSeed})
	assert.NoError(t, err)
	assert.Equal(t, "287082", code)
	assert.Zero(t, fn.requests, "external relay must not be called when a seed is configured")
}

func TestResolveRelaysWithoutSeed(t *testing.T) {
	fn := &fakeNotifier{code: "123456"}
	r := NewResolver(fn, time.Minute, zerolog.Nop())

	code, err := r.Resolve(context.Background(), Challenge{Label: "SoFi 1"})
	assert.NoError(t, err)
	assert.Equal(t, "123456", code)
	assert.Equal(t, 1, fn.requests)
}

func TestResolveRelayTimeout(t *testing.T) {
	fn := &fakeNotifier{block: true}
	r := NewResolver(fn, 20*time.Millisecond, zerolog.Nop())

	_, err := r.Resolve(context.Background(), Challenge{Label: "SoFi 1"})
	assert.ErrorIs(t, err, ErrCodeTimeout)
}

func TestNewResolverDefaultTimeout(t *testing.T) {
	r := NewResolver(&fakeNotifier{}, 0, zerolog.Nop())
	assert.Equal(t, DefaultRelayTimeout, r.timeout)
}
