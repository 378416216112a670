package orchestrator

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Kind distinguishes agents that run in-process from remote custom agents.
type Kind string

const (
	KindBuiltin Kind = "builtin"
	KindCustom  Kind = "custom"
)

// Runner is anything the orchestrator can hand a task to.
type Runner interface {
	ID() string
	Name() string
	Kind() Kind
	Run(ctx context.Context, task string) (string, error)
}

// parenIDRe matches an 8-hex id embedded in parentheses, the form planners
// produce when echoing a listed agent like "Weather Bot (a1b2c3d4)".
var parenIDRe = regexp.MustCompile(`\(([a-f0-9]{8})\)`)

// Registry holds the runners available for plan execution. Resolution order
// matters, so registration order is preserved.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	runners map[string]Runner
}

func NewRegistry() *Registry {
	return &Registry{runners: make(map[string]Runner)}
}

// Register adds a runner. Duplicate ids are rejected.
func (r *Registry) Register(runner Runner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := runner.ID()
	if _, exists := r.runners[id]; exists {
		return errors.Errorf("agent %q already registered", id)
	}
	r.runners[id] = runner
	r.order = append(r.order, id)
	return nil
}

// Unregister removes a runner by id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runners[id]; !ok {
		return
	}
	delete(r.runners, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// All returns the registered runners in registration order.
func (r *Registry) All() []Runner {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Runner, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.runners[id])
	}
	return out
}

// Resolve maps a planner-produced reference to a runner. It tries, in order:
// exact id, parenthesised 8-hex id, exact case-insensitive name, then name
// substring either way. Ties go to the earliest-registered runner.
func (r *Registry) Resolve(ref string) (Runner, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if runner, ok := r.runners[ref]; ok {
		return runner, true
	}

	if m := parenIDRe.FindStringSubmatch(ref); m != nil {
		if runner, ok := r.runners[m[1]]; ok {
			return runner, true
		}
	}

	lower := strings.ToLower(ref)
	for _, id := range r.order {
		if strings.ToLower(r.runners[id].Name()) == lower {
			return r.runners[id], true
		}
	}

	for _, id := range r.order {
		name := strings.ToLower(r.runners[id].Name())
		if strings.Contains(name, lower) || strings.Contains(lower, name) {
			return r.runners[id], true
		}
	}
	return nil, false
}
