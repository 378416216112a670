package orchestrator

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/agent-sphere/agent-sphere/src/agent"
)

// BuiltinRunner wraps an in-process agent. Each run gets a fresh session so
// orchestrated tasks never bleed into each other.
type BuiltinRunner struct {
	Agent *agent.Agent
}

func (b *BuiltinRunner) ID() string   { return b.Agent.ID() }
func (b *BuiltinRunner) Name() string { return b.Agent.Name() }
func (b *BuiltinRunner) Kind() Kind   { return KindBuiltin }

func (b *BuiltinRunner) Run(ctx context.Context, task string) (string, error) {
	session := "orch-" + uuid.NewString()
	defer b.Agent.ClearMemory(session)
	return b.Agent.ThinkAndAct(ctx, session, task), nil
}

// CustomRunner proxies to a user-published agent over HTTP.
type CustomRunner struct {
	AgentID   string
	AgentName string
	Role      string
	client    *resty.Client
}

// NewCustomRunner creates a runner that posts chat requests to
// <baseURL>/api/agents/custom/<id>/chat.
func NewCustomRunner(baseURL, id, name, role string) *CustomRunner {
	return &CustomRunner{
		AgentID:   id,
		AgentName: name,
		Role:      role,
		client:    resty.New().SetBaseURL(baseURL),
	}
}

func (c *CustomRunner) ID() string   { return c.AgentID }
func (c *CustomRunner) Name() string { return c.AgentName }
func (c *CustomRunner) Kind() Kind   { return KindCustom }

func (c *CustomRunner) Run(ctx context.Context, task string) (string, error) {
	var out struct {
		Response string `json:"response"`
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"message": task}).
		SetResult(&out).
		Post(fmt.Sprintf("/api/agents/custom/%s/chat", c.AgentID))
	if err != nil {
		return "", errors.Wrapf(err, "failed to execute custom agent %s", c.AgentID)
	}
	if resp.IsError() {
		return "", errors.Errorf("failed to execute custom agent %s: status %d", c.AgentID, resp.StatusCode())
	}
	if out.Response == "" {
		return "No response from agent", nil
	}
	return out.Response, nil
}
