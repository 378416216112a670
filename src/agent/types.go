package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolHandler is the callable behind a tool. It may return an error or panic;
// neither escapes the framework.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// Tool is a named, schema-described callable an agent may invoke. Immutable
// after registration; owned exclusively by the catalog that holds it.
type Tool struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Params      map[string]string `json:"params"`
	Handler     ToolHandler       `json:"-"`
}

// ToolResult is the outcome of one tool invocation. Tool failures are data,
// not control flow: handler errors and panics both land here.
type ToolResult struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Execute runs the handler and converts any failure into a ToolResult.
func (t Tool) Execute(ctx context.Context, args map[string]any) (res ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			res = ToolResult{Success: false, Error: fmt.Sprint(r)}
		}
	}()

	if t.Handler == nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("tool %s has no handler", t.Name)}
	}
	out, err := t.Handler(ctx, args)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}
	}
	return ToolResult{Success: true, Result: out}
}

// Serialize renders the result as the JSON blob appended to the transcript.
func (r ToolResult) Serialize() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}
	return string(data)
}

// ParsedAction is a structured tool invocation extracted from model output.
// Ephemeral: produced once per loop iteration, never persisted.
type ParsedAction struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
}

// ToolCatalog maintains an ordered set of tools and provides lookup by name.
type ToolCatalog interface {
	Register(tool Tool) error
	Lookup(name string) (Tool, bool)
	Names() []string
	Tools() []Tool
}
