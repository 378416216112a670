package models

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Router dispatches a chat request to exactly one configured provider,
// masking provider-specific differences. On failure it falls through an
// ordered failover list, at most one attempt per provider per call; there is
// no retry-with-backoff within a provider.
//
// When every provider fails, Chat returns an error string embedding the last
// failure instead of raising: callers treat it as a normal (if unhelpful)
// model reply, keeping the agent loop exception-free on transport failures.
type Router struct {
	mu              sync.RWMutex
	providers       map[string]Provider
	defaultProvider string
	failover        []string
	disableFailover bool
	logger          zerolog.Logger
}

// RouterOptions configure a new Router. Failover is on unless
// DisableFailover is set; then only the resolved primary is attempted.
type RouterOptions struct {
	DefaultProvider string
	FailoverOrder   []string
	DisableFailover bool
	Logger          zerolog.Logger
}

// NewRouter creates an empty router; providers are added with Register.
func NewRouter(opts RouterOptions) *Router {
	return &Router{
		providers:       make(map[string]Provider),
		defaultProvider: opts.DefaultProvider,
		failover:        opts.FailoverOrder,
		disableFailover: opts.DisableFailover,
		logger:          opts.Logger,
	}
}

// Register adds a provider under its own name. Re-registering a name
// replaces the previous provider.
func (r *Router) Register(p Provider) error {
	if p == nil {
		return fmt.Errorf("provider is nil")
	}
	name := strings.TrimSpace(p.Name())
	if name == "" {
		return fmt.Errorf("provider name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
	if r.defaultProvider == "" {
		r.defaultProvider = name
	}
	return nil
}

// ChatOption adjusts a single Chat call.
type ChatOption func(*chatCall)

type chatCall struct {
	provider string
}

// WithProvider overrides the default provider for one call.
func WithProvider(name string) ChatOption {
	return func(c *chatCall) { c.provider = name }
}

// Chat sends the turns to the resolved provider, falling through the
// failover order on any error. The returned string is always a usable reply;
// total failure is reported in-band.
func (r *Router) Chat(ctx context.Context, messages []ChatMessage, opts ...ChatOption) string {
	var call chatCall
	for _, opt := range opts {
		opt(&call)
	}

	r.mu.RLock()
	primary := call.provider
	if primary == "" {
		primary = r.defaultProvider
	}
	order := []string{primary}
	if !r.disableFailover {
		for _, name := range r.failover {
			if name != primary {
				order = append(order, name)
			}
		}
	}
	providers := make([]Provider, 0, len(order))
	names := make([]string, 0, len(order))
	for _, name := range order {
		if p, ok := r.providers[name]; ok {
			providers = append(providers, p)
			names = append(names, name)
		}
	}
	r.mu.RUnlock()

	var lastErr error
	if len(providers) == 0 {
		lastErr = fmt.Errorf("provider %q not configured", primary)
	}

	for i, p := range providers {
		r.logger.Debug().Str("provider", names[i]).Msg("trying provider")
		reply, err := p.Chat(ctx, messages)
		if err != nil {
			lastErr = err
			r.logger.Warn().Str("provider", names[i]).Err(err).Msg("provider failed")
			continue
		}
		if names[i] != primary {
			r.logger.Info().Str("provider", names[i]).Msg("failover succeeded")
		}
		return reply
	}

	msg := fmt.Sprintf("Error: All LLM providers failed. Last error: %v", lastErr)
	r.logger.Error().Msg(msg)
	return msg
}

// TestResult reports a provider connectivity check.
type TestResult struct {
	Success  bool   `json:"success"`
	Provider string `json:"provider"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TestProvider pings one provider with a trivial message.
func (r *Router) TestProvider(ctx context.Context, name string) TestResult {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return TestResult{Provider: name, Error: "provider not configured"}
	}

	reply, err := p.Chat(ctx, []ChatMessage{User("Reply with exactly: OK")})
	if err != nil {
		return TestResult{Provider: name, Error: err.Error()}
	}
	if len(reply) > 100 {
		reply = reply[:100]
	}
	return TestResult{Success: true, Provider: name, Response: reply}
}

// Providers returns the configured provider names.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
