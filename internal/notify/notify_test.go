package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	notified []string
	code     string
	requests int
}

func (s *stubNotifier) Notify(text string) { s.notified = append(s.notified, text) }
func (s *stubNotifier) RequestCode(_ context.Context, _ string) (string, error) {
	s.requests++
	return s.code, nil
}

func TestFanoutBroadcastsNotify(t *testing.T) {
	a := &stubNotifier{}
	b := &stubNotifier{}

	f := NewFanout(nil, a, b)
	f.Notify("hello")

	assert.Equal(t, []string{"hello"}, a.notified)
	assert.Equal(t, []string{"hello"}, b.notified)
}

func TestFanoutDelegatesCodesToRelay(t *testing.T) {
	relay := &stubNotifier{code: "123456"}
	other := &stubNotifier{code: "999999"}

	f := NewFanout(relay, other, relay)
	code, err := f.RequestCode(context.Background(), "Schwab 1")
	require.NoError(t, err)
	assert.Equal(t, "123456", code)
	assert.Equal(t, 1, relay.requests)
	assert.Equal(t, 0, other.requests)
}

func TestFanoutDefaultsRelayToFirstTarget(t *testing.T) {
	first := &stubNotifier{code: "654321"}

	f := NewFanout(nil, first)
	code, err := f.RequestCode(context.Background(), "SoFi 1")
	require.NoError(t, err)
	assert.Equal(t, "654321", code)
}

func TestFanoutWithoutRelayFails(t *testing.T) {
	f := NewFanout(nil)
	_, err := f.RequestCode(context.Background(), "SoFi 1")
	assert.Error(t, err)
}

func TestCodePattern(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"123456", true},
		{"2871", true},
		{"12345678", true},
		{"123", false},
		{"123456789", false},
		{"code 123456", false},
		{"abcdef", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, codePattern.MatchString(tt.text), "text %q", tt.text)
	}
}
