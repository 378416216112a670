package models

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// DummyProvider is a lightweight provider useful for local runs and tests
// without API calls. With no script it echoes the last non-empty line of the
// final turn; with a script it replays the responses in order (the last one
// repeats).
type DummyProvider struct {
	Prefix string

	mu       sync.Mutex
	script   []string
	calls    int
	received [][]ChatMessage
}

func NewDummyProvider(prefix string) *DummyProvider {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy response:"
	}
	return &DummyProvider{Prefix: prefix}
}

// NewScriptedProvider replays canned responses, for deterministic tests.
func NewScriptedProvider(responses ...string) *DummyProvider {
	return &DummyProvider{script: responses}
}

func (d *DummyProvider) Name() string { return "dummy" }

func (d *DummyProvider) Chat(_ context.Context, messages []ChatMessage) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot := make([]ChatMessage, len(messages))
	copy(snapshot, messages)
	d.received = append(d.received, snapshot)

	if len(d.script) > 0 {
		idx := d.calls
		if idx >= len(d.script) {
			idx = len(d.script) - 1
		}
		d.calls++
		return d.script[idx], nil
	}
	d.calls++

	var last string
	for i := len(messages) - 1; i >= 0 && last == ""; i-- {
		for _, line := range strings.Split(messages[i].Content, "\n") {
			if candidate := strings.TrimSpace(line); candidate != "" {
				last = candidate
			}
		}
	}
	if last == "" {
		last = "<empty prompt>"
	}
	return fmt.Sprintf("%s %s", d.Prefix, last), nil
}

// Calls reports how many times Chat ran.
func (d *DummyProvider) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Received returns the message lists seen so far.
func (d *DummyProvider) Received() [][]ChatMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.received
}

var _ Provider = (*DummyProvider)(nil)
