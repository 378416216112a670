package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/agent-sphere/agent-sphere/src/models"
)

// scriptedModel replays canned responses in order; the last one repeats.
type scriptedModel struct {
	responses []string
	calls     int
}

func (m *scriptedModel) Chat(_ context.Context, _ []models.ChatMessage) string {
	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	return m.responses[idx]
}

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "echoes its input",
		Params:      map[string]string{"input": "string to echo"},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return args["input"], nil
		},
	}
}

func newTestAgent(t *testing.T, model ChatModel, tools ...Tool) *Agent {
	t.Helper()
	a, err := New(Options{
		Name:  "Homer",
		Role:  "home automation",
		Model: model,
		Tools: tools,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return a
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{Name: "x"}); err == nil {
		t.Fatal("expected error for missing model")
	}
	if _, err := New(Options{Model: &scriptedModel{responses: []string{""}}}); err == nil {
		t.Fatal("expected error for missing name")
	}

	a := newTestAgent(t, &scriptedModel{responses: []string{"hi"}})
	if a.maxIterations != 10 {
		t.Fatalf("default iteration budget = %d, want 10", a.maxIterations)
	}
	if a.id != "homer" {
		t.Fatalf("derived id = %q", a.id)
	}
}

func TestThinkAndActReturnsFinalAnswer(t *testing.T) {
	model := &scriptedModel{responses: []string{"The lights are already off."}}
	a := newTestAgent(t, model, echoTool("echo"))

	out := a.ThinkAndAct(context.Background(), "s1", "are the lights off?")
	if out != "The lights are already off." {
		t.Fatalf("got %q", out)
	}
	if model.calls != 1 {
		t.Fatalf("model called %d times, want 1", model.calls)
	}
}

func TestThinkAndActExecutesToolThenFinishes(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`{"action": "echo", "parameters": {"input": "ping"}}`,
		"Done: ping",
	}}
	a := newTestAgent(t, model, echoTool("echo"))

	out := a.ThinkAndAct(context.Background(), "s1", "echo ping")
	if out != "Done: ping" {
		t.Fatalf("got %q", out)
	}

	transcript := a.Transcript("s1")
	var toolTurn string
	for _, turn := range transcript {
		if strings.HasPrefix(turn.Content, "Tool result: ") {
			toolTurn = turn.Content
		}
	}
	if !strings.Contains(toolTurn, `"success":true`) || !strings.Contains(toolTurn, `"ping"`) {
		t.Fatalf("tool result turn missing or wrong: %q", toolTurn)
	}
}

func TestUnknownToolRecordsErrorAndContinues(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`{"action": "vanish", "parameters": {}}`,
		"Recovered.",
	}}
	a := newTestAgent(t, model, echoTool("echo"))

	out := a.ThinkAndAct(context.Background(), "s1", "do something")
	if out != "Recovered." {
		t.Fatalf("loop should continue after unknown tool, got %q", out)
	}

	found := false
	for _, turn := range a.Transcript("s1") {
		if turn.Content == "Error: Tool 'vanish' not found" {
			found = true
		}
	}
	if !found {
		t.Fatal("transcript missing unknown-tool error turn")
	}
	if model.calls != 2 {
		t.Fatalf("unknown tool must consume exactly one iteration, model calls = %d", model.calls)
	}
}

func TestIterationBudgetReturnsSentinel(t *testing.T) {
	// A model that always emits a valid action never reaches TERMINAL on its
	// own; the loop must stop after exactly 10 iterations.
	model := &scriptedModel{responses: []string{`{"action": "echo", "parameters": {"input": "again"}}`}}
	a := newTestAgent(t, model, echoTool("echo"))

	out := a.ThinkAndAct(context.Background(), "s1", "loop forever")
	if out != MaxIterationsReached {
		t.Fatalf("got %q, want sentinel", out)
	}
	if model.calls != 10 {
		t.Fatalf("model called %d times, want exactly 10", model.calls)
	}
}

func TestToolErrorIsIsolated(t *testing.T) {
	boom := Tool{
		Name:        "boom",
		Description: "always fails",
		Handler: func(_ context.Context, _ map[string]any) (any, error) {
			return nil, errors.New("boom")
		},
	}
	model := &scriptedModel{responses: []string{
		`{"action": "boom", "parameters": {}}`,
		"That did not work.",
	}}
	a := newTestAgent(t, model, boom)

	out := a.ThinkAndAct(context.Background(), "s1", "explode")
	if out != "That did not work." {
		t.Fatalf("loop should continue after tool failure, got %q", out)
	}

	found := false
	for _, turn := range a.Transcript("s1") {
		if strings.Contains(turn.Content, `"success":false`) && strings.Contains(turn.Content, `"error":"boom"`) {
			found = true
		}
	}
	if !found {
		t.Fatal("transcript missing structured tool failure")
	}
}

func TestToolPanicIsIsolated(t *testing.T) {
	angry := Tool{
		Name:        "angry",
		Description: "panics",
		Handler: func(_ context.Context, _ map[string]any) (any, error) {
			panic("kaboom")
		},
	}
	model := &scriptedModel{responses: []string{
		`{"action": "angry", "parameters": {}}`,
		"Survived.",
	}}
	a := newTestAgent(t, model, angry)

	out := a.ThinkAndAct(context.Background(), "s1", "poke it")
	if out != "Survived." {
		t.Fatalf("panic must not escape the loop, got %q", out)
	}

	found := false
	for _, turn := range a.Transcript("s1") {
		if strings.Contains(turn.Content, `"error":"kaboom"`) {
			found = true
		}
	}
	if !found {
		t.Fatal("transcript missing panic-derived failure")
	}
}

func TestRouterFailureStringTerminatesLoop(t *testing.T) {
	// A fully-failed router returns its error text as a normal reply; the
	// parser finds no action in it, so the loop exits TERMINAL with that text
	// instead of crashing.
	failure := "Error: All LLM providers failed. Last error: connection refused"
	model := &scriptedModel{responses: []string{failure}}
	a := newTestAgent(t, model, echoTool("echo"))

	out := a.ThinkAndAct(context.Background(), "s1", "hello?")
	if out != failure {
		t.Fatalf("got %q", out)
	}
}

func TestClearMemoryIsolatesSessions(t *testing.T) {
	model := &scriptedModel{responses: []string{"ok"}}
	a := newTestAgent(t, model)

	a.ThinkAndAct(context.Background(), "s1", "one")
	a.ThinkAndAct(context.Background(), "s2", "two")

	if len(a.Transcript("s1")) == 0 || len(a.Transcript("s2")) == 0 {
		t.Fatal("expected both sessions to have transcripts")
	}
	for _, turn := range a.Transcript("s1") {
		if strings.Contains(turn.Content, "two") {
			t.Fatal("session transcripts interleaved")
		}
	}

	a.ClearMemory("s1")
	if len(a.Transcript("s1")) != 0 {
		t.Fatal("ClearMemory did not drop the session")
	}
	if len(a.Transcript("s2")) == 0 {
		t.Fatal("ClearMemory dropped the wrong session")
	}
}

func TestTranscriptGrowsMonotonically(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`{"action": "echo", "parameters": {"input": "a"}}`,
		`{"action": "echo", "parameters": {"input": "b"}}`,
		"done",
	}}
	a := newTestAgent(t, model, echoTool("echo"))
	a.ThinkAndAct(context.Background(), "s1", "go")

	// user, then two (assistant + tool result) rounds, then the final answer
	if got := len(a.Transcript("s1")); got != 6 {
		t.Fatalf("transcript length = %d, want 6", got)
	}
}

func TestDuplicateToolRegistrationFails(t *testing.T) {
	catalog := NewStaticToolCatalog(nil)
	if err := catalog.Register(echoTool("echo")); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := catalog.Register(echoTool("Echo")); err == nil {
		t.Fatal("expected case-insensitive duplicate to fail")
	}

	names := catalog.Names()
	if len(names) != 1 || names[0] != "echo" {
		t.Fatalf("names = %v", names)
	}
}

func TestCatalogOrderIsRegistrationOrder(t *testing.T) {
	catalog := NewStaticToolCatalog(nil)
	for i := 0; i < 5; i++ {
		_ = catalog.Register(echoTool(fmt.Sprintf("tool_%d", i)))
	}
	for i, name := range catalog.Names() {
		if name != fmt.Sprintf("tool_%d", i) {
			t.Fatalf("order broken at %d: %v", i, catalog.Names())
		}
	}
}
