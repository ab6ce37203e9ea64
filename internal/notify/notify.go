// Package notify routes user-visible progress and error text to the
// operator, and relays out-of-band one-time codes back in.
package notify

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Notifier is the operator notification channel. Notify is fire-and-forget
// and safe for concurrent use. RequestCode blocks until the operator
// supplies a one-time code or the context is cancelled.
type Notifier interface {
	Notify(text string)
	RequestCode(ctx context.Context, label string) (string, error)
}

// Console writes notifications to stdout and reads codes from stdin.
type Console struct {
	mu sync.Mutex
}

// NewConsole creates a console notifier.
func NewConsole() *Console {
	return &Console{}
}

// Notify prints the text to stdout.
func (c *Console) Notify(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Println(text)
}

// RequestCode prompts on stdout and reads one line from stdin.
func (c *Console) RequestCode(ctx context.Context, label string) (string, error) {
	c.Notify(fmt.Sprintf("%s: enter one-time code: ", label))

	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			errs <- err
			return
		}
		lines <- strings.TrimSpace(line)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errs:
		return "", err
	case code := <-lines:
		return code, nil
	}
}

// Fanout broadcasts notifications to several notifiers and delegates code
// requests to a single relay.
type Fanout struct {
	targets []Notifier
	relay   Notifier
}

// NewFanout creates a fan-out notifier. Code requests go to relay; if relay
// is nil, the first target is used.
func NewFanout(relay Notifier, targets ...Notifier) *Fanout {
	if relay == nil && len(targets) > 0 {
		relay = targets[0]
	}
	return &Fanout{targets: targets, relay: relay}
}

// Notify broadcasts to every target.
func (f *Fanout) Notify(text string) {
	for _, n := range f.targets {
		n.Notify(text)
	}
}

// RequestCode delegates to the configured relay.
func (f *Fanout) RequestCode(ctx context.Context, label string) (string, error) {
	if f.relay == nil {
		return "", fmt.Errorf("no code relay configured")
	}
	return f.relay.RequestCode(ctx, label)
}
