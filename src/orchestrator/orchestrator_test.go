package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-sphere/agent-sphere/src/models"
)

type fakeRunner struct {
	id    string
	name  string
	kind  Kind
	reply string
	err   error

	tasks []string
}

func (f *fakeRunner) ID() string   { return f.id }
func (f *fakeRunner) Name() string { return f.name }
func (f *fakeRunner) Kind() Kind   { return f.kind }

func (f *fakeRunner) Run(ctx context.Context, task string) (string, error) {
	f.tasks = append(f.tasks, task)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func plannerReply(reply string) ChatFunc {
	return func(ctx context.Context, messages []models.ChatMessage) string {
		return reply
	}
}

func newTestOrchestrator(t *testing.T, chat ChatFunc, runners ...*fakeRunner) *Orchestrator {
	t.Helper()
	o := New(Options{Chat: chat, Logger: zerolog.Nop()})
	for _, r := range runners {
		require.NoError(t, o.Registry().Register(r))
	}
	return o
}

func TestResolveExactID(t *testing.T) {
	reg := NewRegistry()
	home := &fakeRunner{id: "home", name: "Home", kind: KindBuiltin}
	require.NoError(t, reg.Register(home))

	got, ok := reg.Resolve("home")
	require.True(t, ok)
	assert.Same(t, home, got.(*fakeRunner))
}

func TestResolveParenthesisedID(t *testing.T) {
	reg := NewRegistry()
	// Registered first and a substring match for the reference; the
	// embedded id must still win over the name match.
	decoy := &fakeRunner{id: "b2116c04", name: "Hello", kind: KindCustom}
	bot := &fakeRunner{id: "a74fba99", name: "Hello World", kind: KindCustom}
	require.NoError(t, reg.Register(decoy))
	require.NoError(t, reg.Register(bot))

	got, ok := reg.Resolve("Hello World (a74fba99)")
	require.True(t, ok)
	assert.Equal(t, "a74fba99", got.ID())
}

func TestResolveByNameAndSubstring(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&fakeRunner{id: "c1", name: "Weather Bot", kind: KindCustom}))

	got, ok := reg.Resolve("weather bot")
	require.True(t, ok)
	assert.Equal(t, "c1", got.ID())

	got, ok = reg.Resolve("Weather")
	require.True(t, ok)
	assert.Equal(t, "c1", got.ID())

	_, ok = reg.Resolve("finance wizard")
	assert.False(t, ok)
}

func TestResolveTieBreaksByRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&fakeRunner{id: "c1", name: "Report Writer", kind: KindCustom}))
	require.NoError(t, reg.Register(&fakeRunner{id: "c2", name: "Report Reader", kind: KindCustom}))

	got, ok := reg.Resolve("report")
	require.True(t, ok)
	assert.Equal(t, "c1", got.ID())
}

func TestAnalyzeRequestParsesPlan(t *testing.T) {
	reply := `Here is the plan:
{"reasoning": "lights first", "agents_needed": ["home"], "execution_steps": [{"step": 1, "agent": "home", "task": "Turn off the lights", "context": "all rooms"}]}`
	o := newTestOrchestrator(t, plannerReply(reply),
		&fakeRunner{id: "home", name: "Home", kind: KindBuiltin, reply: "done"})

	plan := o.AnalyzeRequest(context.Background(), "turn off the lights")
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "home", plan.Steps[0].Agent)
	assert.Equal(t, "lights first", plan.Reasoning)
	assert.Equal(t, "turn off the lights", plan.UserRequest)
}

func TestAnalyzeRequestFallsBackOnGarbage(t *testing.T) {
	o := newTestOrchestrator(t, plannerReply("I cannot produce JSON today"),
		&fakeRunner{id: "home", name: "Home", kind: KindBuiltin, reply: "done"})

	plan := o.AnalyzeRequest(context.Background(), "please dim the hallway")
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "home", plan.Steps[0].Agent)
	assert.Equal(t, "please dim the hallway", plan.Steps[0].Context)
}

func TestExecutePlanTruncatesToFiveSteps(t *testing.T) {
	home := &fakeRunner{id: "home", name: "Home", kind: KindBuiltin, reply: "ok"}
	o := newTestOrchestrator(t, plannerReply(""), home)

	var steps []PlanStep
	for i := 1; i <= 8; i++ {
		steps = append(steps, PlanStep{Step: i, Agent: "home", Task: "t"})
	}
	res := o.ExecutePlan(context.Background(), Plan{UserRequest: "r", Steps: steps})
	assert.Len(t, res.Steps, 5)
	assert.Len(t, home.tasks, 5)
}

func TestExecutePlanCustomAgentGetsOriginalRequest(t *testing.T) {
	home := &fakeRunner{id: "home", name: "Home", kind: KindBuiltin, reply: "lights off"}
	bot := &fakeRunner{id: "a74fba99", name: "Summarizer", kind: KindCustom, reply: "summary"}
	o := newTestOrchestrator(t, plannerReply(""), home, bot)

	res := o.ExecutePlan(context.Background(), Plan{
		UserRequest: "turn off lights and summarize my day",
		Steps: []PlanStep{
			{Step: 1, Agent: "home", Task: "lights", Context: "turn off all lights"},
			{Step: 2, Agent: "Summarizer", Task: "summarize"},
		},
	})

	require.True(t, res.Success)
	assert.Equal(t, []string{"turn off lights and summarize my day"}, bot.tasks)
	require.Len(t, home.tasks, 1)
	assert.Equal(t, "turn off all lights", home.tasks[0])
}

func TestExecutePlanBuiltinGetsAccumulatedContext(t *testing.T) {
	home := &fakeRunner{id: "home", name: "Home", kind: KindBuiltin, reply: "72F inside"}
	cal := &fakeRunner{id: "calendar", name: "Calendar", kind: KindBuiltin, reply: "noted"}
	o := newTestOrchestrator(t, plannerReply(""), home, cal)

	res := o.ExecutePlan(context.Background(), Plan{
		UserRequest: "check the temperature then note it",
		Steps: []PlanStep{
			{Step: 1, Agent: "home", Task: "Read thermostat"},
			{Step: 2, Agent: "calendar", Task: "Record reading", Context: "add a note"},
		},
	})

	require.True(t, res.Success)
	require.Len(t, cal.tasks, 1)
	assert.Contains(t, cal.tasks[0], "User Request: check the temperature then note it")
	assert.Contains(t, cal.tasks[0], "72F inside")
	assert.Contains(t, cal.tasks[0], "Task: Record reading")
}

func TestExecutePlanContinuesPastFailures(t *testing.T) {
	broken := &fakeRunner{id: "home", name: "Home", kind: KindBuiltin, err: errors.New("device offline")}
	cal := &fakeRunner{id: "calendar", name: "Calendar", kind: KindBuiltin, reply: "created"}
	o := newTestOrchestrator(t, plannerReply(""), broken, cal)

	res := o.ExecutePlan(context.Background(), Plan{
		UserRequest: "r",
		Steps: []PlanStep{
			{Step: 1, Agent: "home", Task: "a"},
			{Step: 2, Agent: "calendar", Task: "b"},
		},
	})

	assert.False(t, res.Success)
	require.Len(t, res.Steps, 2)
	assert.False(t, res.Steps[0].Completed)
	assert.True(t, res.Steps[1].Completed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "device offline")
}

func TestExecutePlanUnknownAgentRecordedAndSkipped(t *testing.T) {
	cal := &fakeRunner{id: "calendar", name: "Calendar", kind: KindBuiltin, reply: "ok"}
	o := newTestOrchestrator(t, plannerReply(""), cal)

	res := o.ExecutePlan(context.Background(), Plan{
		UserRequest: "r",
		Steps: []PlanStep{
			{Step: 1, Agent: "mystery", Task: "a"},
			{Step: 2, Agent: "calendar", Task: "b"},
		},
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Errors[0], "agent not found")
	assert.True(t, res.Steps[1].Completed)
}

func TestSynthesizeSingleStepPassesThrough(t *testing.T) {
	out := synthesize([]StepResult{{Step: 1, Agent: "home", Response: "All lights are off.", Completed: true}})
	assert.Equal(t, "All lights are off.", out)
}

func TestSynthesizeMultiStep(t *testing.T) {
	out := synthesize([]StepResult{
		{Step: 1, Agent: "home", AgentKind: KindBuiltin, Task: "lights", Response: "off", Completed: true},
		{Step: 2, Agent: "calendar", Task: "note", Error: "Error in step 2 (calendar): boom"},
	})
	assert.True(t, strings.HasPrefix(out, "I've completed your request in multiple steps:"))
	assert.Contains(t, out, "**Step 1 (builtin agent: home):** lights")
	assert.Contains(t, out, "Result: off")
	assert.Contains(t, out, "Error: Error in step 2 (calendar): boom")
}

func TestHandleEndToEnd(t *testing.T) {
	reply := `{"reasoning": "single agent", "agents_needed": ["home"], "execution_steps": [{"step": 1, "agent": "home", "task": "Turn on fan", "context": "master bedroom"}]}`
	home := &fakeRunner{id: "home", name: "Home", kind: KindBuiltin, reply: "Fan is on."}
	o := newTestOrchestrator(t, plannerReply(reply), home)

	res := o.Handle(context.Background(), "turn on the bedroom fan")
	assert.True(t, res.Success)
	assert.Equal(t, "Fan is on.", res.FinalResponse)
	assert.Equal(t, []string{"master bedroom"}, home.tasks)
}
