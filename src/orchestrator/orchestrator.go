package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agent-sphere/agent-sphere/src/agent"
	"github.com/agent-sphere/agent-sphere/src/models"
)

const maxSteps = 5

// PlanStep is one step of an execution plan.
type PlanStep struct {
	Step    int    `json:"step"`
	Agent   string `json:"agent"`
	Task    string `json:"task"`
	Context string `json:"context"`
}

// Plan is the planner model's decomposition of a user request.
type Plan struct {
	Reasoning    string     `json:"reasoning"`
	AgentsNeeded []string   `json:"agents_needed"`
	Steps        []PlanStep `json:"execution_steps"`

	UserRequest string `json:"-"`
	RawAnalysis string `json:"-"`
}

// StepResult records one executed step.
type StepResult struct {
	Step      int    `json:"step"`
	Agent     string `json:"agent"`
	AgentKind Kind   `json:"agent_type"`
	Task      string `json:"task"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
	Completed bool   `json:"completed"`
}

// Result is the outcome of running a full plan.
type Result struct {
	Steps         []StepResult `json:"steps_executed"`
	FinalResponse string       `json:"final_response"`
	Success       bool         `json:"success"`
	Errors        []string     `json:"errors"`
}

// ChatFunc asks the routed model for a completion.
type ChatFunc func(ctx context.Context, messages []models.ChatMessage) string

// Orchestrator plans with an LLM and executes agents sequentially.
type Orchestrator struct {
	registry     *Registry
	chat         ChatFunc
	defaultAgent string
	logger       zerolog.Logger
}

// Options configures New.
type Options struct {
	Registry     *Registry
	Chat         ChatFunc
	DefaultAgent string
	Logger       zerolog.Logger
}

func New(opts Options) *Orchestrator {
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	def := opts.DefaultAgent
	if def == "" {
		def = "home"
	}
	return &Orchestrator{
		registry:     reg,
		chat:         opts.Chat,
		defaultAgent: def,
		logger:       opts.Logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Registry exposes the runner registry for registration.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Handle plans and executes a user request end to end.
func (o *Orchestrator) Handle(ctx context.Context, userRequest string) Result {
	plan := o.AnalyzeRequest(ctx, userRequest)
	return o.ExecutePlan(ctx, plan)
}

// AnalyzeRequest asks the planner model to decompose the request. Any
// parse failure falls back to a single step for the default agent carrying
// the request verbatim.
func (o *Orchestrator) AnalyzeRequest(ctx context.Context, userRequest string) Plan {
	prompt := o.buildAnalysisPrompt(userRequest)
	reply := o.chat(ctx, []models.ChatMessage{
		models.System("You are a task orchestration AI. Always respond with valid JSON only. Use exact agent names from the provided list."),
		models.User(prompt),
	})

	plan := Plan{UserRequest: userRequest, RawAnalysis: reply}
	if raw, ok := agent.ExtractJSONObject(reply); ok {
		if err := json.Unmarshal([]byte(raw), &plan); err != nil {
			o.logger.Warn().Err(err).Msg("plan JSON did not parse")
		}
	}
	if len(plan.Steps) == 0 {
		plan.Steps = []PlanStep{{
			Step:    1,
			Agent:   o.defaultAgent,
			Task:    "Handle user request",
			Context: userRequest,
		}}
	}
	return plan
}

func (o *Orchestrator) buildAnalysisPrompt(userRequest string) string {
	var builtin, custom strings.Builder
	for _, r := range o.registry.All() {
		switch r.Kind() {
		case KindBuiltin:
			fmt.Fprintf(&builtin, "- %s\n", r.ID())
		case KindCustom:
			role := ""
			if cr, ok := r.(*CustomRunner); ok {
				role = cr.Role
			}
			fmt.Fprintf(&custom, "- %s (%s): %s\n", r.Name(), r.ID(), role)
		}
	}

	customBlock := ""
	if custom.Len() > 0 {
		customBlock = "\n\nCustom Agents:\n" + custom.String()
	}

	return fmt.Sprintf(`You are an intelligent task orchestrator. Analyze the user request and determine:
1. Which agent(s) should be called and in what order
2. The reasoning for this sequence
3. What each agent should do

Available Built-in AGENTS:
%s%s

User Request: "%s"

IMPORTANT: When responding with agent names, use the EXACT names or IDs from the lists above.

Respond in this exact JSON format (no markdown, just raw JSON):
{
  "reasoning": "Brief explanation of why this approach",
  "agents_needed": ["agent_id_or_name"],
  "execution_steps": [
    {
      "step": 1,
      "agent": "exact_agent_id_or_name",
      "task": "What this agent should do",
      "context": "Any specific context or instructions"
    }
  ]
}`, builtin.String(), customBlock, userRequest)
}

// ExecutePlan runs up to maxSteps steps in order. Built-in agents receive
// accumulated context from earlier steps; custom agents always receive the
// original user request. A failed step is recorded and execution continues.
func (o *Orchestrator) ExecutePlan(ctx context.Context, plan Plan) Result {
	var res Result

	steps := plan.Steps
	if len(steps) > maxSteps {
		steps = steps[:maxSteps]
	}

	accumulated := fmt.Sprintf("User Request: %s\n\n", plan.UserRequest)

	for i, step := range steps {
		runner, ok := o.registry.Resolve(step.Agent)
		if !ok {
			msg := fmt.Sprintf("Error in step %d (%s): agent not found", i+1, step.Agent)
			o.logger.Error().Str("agent", step.Agent).Msg("agent resolution failed")
			res.Errors = append(res.Errors, msg)
			res.Steps = append(res.Steps, StepResult{
				Step: i + 1, Agent: step.Agent, Task: step.Task, Error: msg,
			})
			continue
		}

		var message string
		if runner.Kind() == KindCustom {
			message = plan.UserRequest
		} else if i > 0 {
			message = fmt.Sprintf("%s\n\nTask: %s\nContext: %s", accumulated, step.Task, step.Context)
		} else if step.Context != "" {
			message = step.Context
		} else {
			message = plan.UserRequest
		}

		o.logger.Info().
			Str("agent", runner.ID()).
			Str("kind", string(runner.Kind())).
			Int("step", i+1).
			Msg("executing step")

		reply, err := runner.Run(ctx, message)
		if err != nil {
			msg := fmt.Sprintf("Error in step %d (%s): %v", i+1, step.Agent, err)
			o.logger.Error().Err(err).Int("step", i+1).Msg("step failed")
			res.Errors = append(res.Errors, msg)
			res.Steps = append(res.Steps, StepResult{
				Step: i + 1, Agent: runner.ID(), AgentKind: runner.Kind(),
				Task: step.Task, Error: msg,
			})
			continue
		}

		res.Steps = append(res.Steps, StepResult{
			Step: i + 1, Agent: runner.ID(), AgentKind: runner.Kind(),
			Task: step.Task, Response: reply, Completed: true,
		})
		accumulated += fmt.Sprintf("\nStep %d (%s agent: %s) - %s:\n%s",
			i+1, runner.Kind(), runner.ID(), step.Task, reply)
	}

	res.FinalResponse = synthesize(res.Steps)
	res.Success = len(res.Errors) == 0
	return res
}

// synthesize folds step results into one user-facing answer. A single step
// passes through verbatim.
func synthesize(steps []StepResult) string {
	if len(steps) == 0 {
		return "No steps were executed"
	}

	if len(steps) == 1 {
		s := steps[0]
		if s.Completed {
			if s.Response == "" {
				return "Task completed"
			}
			return s.Response
		}
		if s.Error != "" {
			return s.Error
		}
		return "Task failed"
	}

	var b strings.Builder
	b.WriteString("I've completed your request in multiple steps:\n\n")
	for _, s := range steps {
		if s.Completed {
			fmt.Fprintf(&b, "**Step %d (%s agent: %s):** %s\n", s.Step, s.AgentKind, s.Agent, s.Task)
			fmt.Fprintf(&b, "Result: %s\n\n", s.Response)
		} else {
			fmt.Fprintf(&b, "**Step %d (%s):** %s\n", s.Step, s.Agent, s.Task)
			fmt.Fprintf(&b, "Error: %s\n\n", s.Error)
		}
	}
	return strings.TrimSpace(b.String())
}
