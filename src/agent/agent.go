package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agent-sphere/agent-sphere/src/models"
)

// MaxIterationsReached is returned when the loop exhausts its iteration
// budget without the model producing a final answer. Fail soft: callers never
// see an error from a non-deterministic external model.
const MaxIterationsReached = "Max iterations reached"

const defaultMaxIterations = 10

// ChatModel is the slice of the LLM router the loop needs: send turns, get
// text back. Transport failures surface as error-shaped text, never as an
// error value, so the loop stays exception-free.
type ChatModel interface {
	Chat(ctx context.Context, messages []models.ChatMessage) string
}

// MemorySource injects long-term memory into the system prompt. Best effort;
// a nil source means no injection.
type MemorySource interface {
	PromptBlock(agentID string, limit int) string
}

// Agent runs the think-act loop: invoke the model, parse an action, execute
// the tool, append the result, repeat. Transcripts are per session key, so
// concurrent requests with distinct sessions never interleave.
type Agent struct {
	id           string
	name         string
	role         string
	instructions string

	model         ChatModel
	catalog       ToolCatalog
	parser        *ActionParser
	memory        MemorySource
	maxIterations int
	logger        zerolog.Logger

	mu       sync.Mutex
	sessions map[string][]models.ChatMessage
}

// Options configure a new Agent.
type Options struct {
	ID           string
	Name         string
	Role         string
	Instructions string

	Model         ChatModel
	Tools         []Tool
	Catalog       ToolCatalog
	Memory        MemorySource
	MaxIterations int
	Logger        zerolog.Logger
}

// New creates an Agent with the provided options.
func New(opts Options) (*Agent, error) {
	if opts.Model == nil {
		return nil, errors.New("agent requires a chat model")
	}
	if strings.TrimSpace(opts.Name) == "" {
		return nil, errors.New("agent requires a name")
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = NewStaticToolCatalog(nil)
	}
	for _, tool := range opts.Tools {
		if err := catalog.Register(tool); err != nil {
			return nil, err
		}
	}

	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = strings.ToLower(strings.TrimSpace(opts.Name))
	}

	return &Agent{
		id:            id,
		name:          opts.Name,
		role:          opts.Role,
		instructions:  opts.Instructions,
		model:         opts.Model,
		catalog:       catalog,
		parser:        NewActionParser(catalog),
		memory:        opts.Memory,
		maxIterations: maxIterations,
		logger:        opts.Logger,
		sessions:      make(map[string][]models.ChatMessage),
	}, nil
}

// ID returns the agent's stable identifier.
func (a *Agent) ID() string { return a.id }

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Role returns the agent's one-line role description.
func (a *Agent) Role() string { return a.role }

// Catalog exposes the agent's tool catalog.
func (a *Agent) Catalog() ToolCatalog { return a.catalog }

// ThinkAndAct runs the bounded think-act loop for one user request.
//
// States: AWAITING_MODEL -> ACTION_PARSED -> TOOL_EXECUTING -> AWAITING_MODEL,
// or AWAITING_MODEL -> TERMINAL when the parser finds no action (the model's
// text is the final answer), or TERMINAL via the iteration budget. Nothing in
// here raises: unknown tools and handler failures become transcript turns.
func (a *Agent) ThinkAndAct(ctx context.Context, sessionID, userRequest string) string {
	a.appendTurn(sessionID, models.User(userRequest))

	system := a.buildSystemPrompt()

	for iteration := 0; iteration < a.maxIterations; iteration++ {
		messages := append([]models.ChatMessage{models.System(system)}, a.Transcript(sessionID)...)

		response := a.model.Chat(ctx, messages)
		a.appendTurn(sessionID, models.Assistant(response))

		action := a.parser.Parse(response)
		if action == nil {
			// No more actions needed; the response is the final answer.
			return response
		}

		tool, ok := a.catalog.Lookup(action.Action)
		if !ok {
			a.logger.Warn().Str("agent", a.id).Str("tool", action.Action).Msg("unknown tool requested")
			a.appendTurn(sessionID, models.User(fmt.Sprintf("Error: Tool '%s' not found", action.Action)))
			continue
		}

		a.logger.Debug().Str("agent", a.id).Str("tool", tool.Name).Int("iteration", iteration+1).Msg("executing tool")
		result := tool.Execute(ctx, action.Parameters)
		a.appendTurn(sessionID, models.User("Tool result: "+result.Serialize()))
	}

	return MaxIterationsReached
}

// Transcript returns a copy of the session's conversation turns.
func (a *Agent) Transcript(sessionID string) []models.ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()

	turns := a.sessions[sessionID]
	out := make([]models.ChatMessage, len(turns))
	copy(out, turns)
	return out
}

// ClearMemory drops the transcript for one session.
func (a *Agent) ClearMemory(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, sessionID)
}

func (a *Agent) appendTurn(sessionID string, turn models.ChatMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[sessionID] = append(a.sessions[sessionID], turn)
}

func (a *Agent) buildSystemPrompt() string {
	var sb strings.Builder
	sb.Grow(2048)

	fmt.Fprintf(&sb, "You are %s, a %s agent.\n", a.name, a.role)
	sb.WriteString("Your goal is to help the user by using the available tools.\n\n")
	sb.WriteString(a.renderTools())
	sb.WriteString("\nWhen you need to use a tool, respond with a JSON block like this:\n")
	sb.WriteString(`{"action": "tool_name", "parameters": {"param1": "value1", "param2": "value2"}}`)
	sb.WriteString("\n\nThink through the problem step by step. Only output one action at a time.\n")
	sb.WriteString("After using a tool, wait for the result before deciding the next action.")

	if strings.TrimSpace(a.instructions) != "" {
		sb.WriteString("\n\nAdditional Instructions:\n")
		sb.WriteString(a.instructions)
	}
	if a.memory != nil {
		if block := a.memory.PromptBlock(a.id, 15); strings.TrimSpace(block) != "" {
			sb.WriteString("\n\n")
			sb.WriteString(block)
		}
	}
	return sb.String()
}

// renderTools formats the catalog into a prompt-friendly block.
func (a *Agent) renderTools() string {
	tools := a.catalog.Tools()
	if len(tools) == 0 {
		return "No tools are available.\n"
	}

	var sb strings.Builder
	sb.WriteString("Available tools:\n")
	for _, tool := range tools {
		fmt.Fprintf(&sb, "\n- %s: %s\n", tool.Name, tool.Description)
		if len(tool.Params) > 0 {
			if schema, err := json.Marshal(tool.Params); err == nil {
				fmt.Fprintf(&sb, "  Parameters: %s\n", schema)
			}
		}
	}
	return sb.String()
}
