package models

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyProvider struct {
	name  string
	reply string
	err   error

	mu    sync.Mutex
	calls int
}

func (p *flakyProvider) Name() string { return p.name }

func (p *flakyProvider) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func (p *flakyProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestRouterFailsOverInOrder(t *testing.T) {
	a := &flakyProvider{name: "a", err: errors.New("connection refused")}
	b := &flakyProvider{name: "b", reply: "OK"}

	r := NewRouter(RouterOptions{
		DefaultProvider: "a",
		FailoverOrder:   []string{"a", "b"},
	})
	r.Register(a)
	r.Register(b)

	out := r.Chat(context.Background(), []ChatMessage{User("hi")})
	assert.Equal(t, "OK", out)
	assert.Equal(t, 1, a.callCount())
	assert.Equal(t, 1, b.callCount())
}

func TestRouterAllProvidersFail(t *testing.T) {
	a := &flakyProvider{name: "a", err: errors.New("timeout")}
	b := &flakyProvider{name: "b", err: errors.New("quota exceeded")}

	r := NewRouter(RouterOptions{
		DefaultProvider: "a",
		FailoverOrder:   []string{"a", "b"},
	})
	r.Register(a)
	r.Register(b)

	out := r.Chat(context.Background(), []ChatMessage{User("hi")})
	assert.True(t, strings.HasPrefix(out, "Error: All LLM providers failed. Last error: "))
	assert.Contains(t, out, "quota exceeded")
}

func TestRouterDisableFailoverStopsAtPrimary(t *testing.T) {
	a := &flakyProvider{name: "a", err: errors.New("connection refused")}
	b := &flakyProvider{name: "b", reply: "OK"}

	r := NewRouter(RouterOptions{
		DefaultProvider: "a",
		FailoverOrder:   []string{"a", "b"},
		DisableFailover: true,
	})
	r.Register(a)
	r.Register(b)

	out := r.Chat(context.Background(), []ChatMessage{User("hi")})
	assert.True(t, strings.HasPrefix(out, "Error: All LLM providers failed. Last error: "))
	assert.Contains(t, out, "connection refused")
	assert.Equal(t, 0, b.callCount())
}

func TestRouterExplicitProviderSkipsDefault(t *testing.T) {
	a := &flakyProvider{name: "a", reply: "from a"}
	b := &flakyProvider{name: "b", reply: "from b"}

	r := NewRouter(RouterOptions{DefaultProvider: "a"})
	r.Register(a)
	r.Register(b)

	out := r.Chat(context.Background(), []ChatMessage{User("hi")}, WithProvider("b"))
	assert.Equal(t, "from b", out)
	assert.Equal(t, 0, a.callCount())
}

func TestRouterFirstRegisteredBecomesDefault(t *testing.T) {
	a := &flakyProvider{name: "a", reply: "hello"}

	r := NewRouter(RouterOptions{})
	r.Register(a)

	out := r.Chat(context.Background(), []ChatMessage{User("hi")})
	assert.Equal(t, "hello", out)
}

func TestRouterDeduplicatesAttemptOrder(t *testing.T) {
	a := &flakyProvider{name: "a", err: errors.New("down")}

	r := NewRouter(RouterOptions{
		DefaultProvider: "a",
		FailoverOrder:   []string{"a", "a"},
	})
	r.Register(a)

	r.Chat(context.Background(), []ChatMessage{User("hi")})
	assert.Equal(t, 1, a.callCount())
}

func TestTestProvider(t *testing.T) {
	ok := &flakyProvider{name: "ok", reply: "OK"}
	bad := &flakyProvider{name: "bad", err: errors.New("no key")}

	r := NewRouter(RouterOptions{DefaultProvider: "ok"})
	r.Register(ok)
	r.Register(bad)

	res := r.TestProvider(context.Background(), "ok")
	require.True(t, res.Success)
	assert.Equal(t, "OK", res.Response)

	res = r.TestProvider(context.Background(), "bad")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no key")

	res = r.TestProvider(context.Background(), "missing")
	assert.False(t, res.Success)
}
