package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/agent-sphere/agent-sphere/src/agents"
	"github.com/agent-sphere/agent-sphere/src/models"
	"github.com/agent-sphere/agent-sphere/src/orchestrator"
)

// This demo walks the orchestrator through a two-agent plan using scripted
// providers, so it runs without any LLM backend.

type scripted struct{ p *models.DummyProvider }

func (s scripted) Chat(ctx context.Context, messages []models.ChatMessage) string {
	reply, err := s.p.Chat(ctx, messages)
	if err != nil {
		return "Error: " + err.Error()
	}
	return reply
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
	ctx := context.Background()

	homeModel := scripted{models.NewScriptedProvider(
		`{"action": "toggle_light", "parameters": {"room": "bedroom", "state": false}}`,
		"Bedroom light is off.",
	)}
	financeModel := scripted{models.NewScriptedProvider(
		`{"action": "get_all_balances", "parameters": {}}`,
		"Your accounts total $48,500.",
	)}
	planner := scripted{models.NewScriptedProvider(`{
  "reasoning": "Lights first, then the balance check",
  "agents_needed": ["home", "finance"],
  "execution_steps": [
    {"step": 1, "agent": "home", "task": "Turn off the bedroom light", "context": "turn off the bedroom light"},
    {"step": 2, "agent": "finance", "task": "Report account balances", "context": "what are my balances"}
  ]
}`)}

	home, err := agents.NewHomeAgent(homeModel, nil, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	finance, err := agents.NewFinanceAgent(financeModel, nil, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	orch := orchestrator.New(orchestrator.Options{Chat: planner.Chat, Logger: logger})
	for _, a := range []*orchestrator.BuiltinRunner{{Agent: home}, {Agent: finance}} {
		if err := orch.Registry().Register(a); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	request := "Turn off the bedroom light and tell me my account balances"
	fmt.Println("User:", request)

	result := orch.Handle(ctx, request)
	for _, step := range result.Steps {
		fmt.Printf("\nStep %d via %s (%s):\n  %s\n", step.Step, step.Agent, step.AgentKind, step.Response)
	}
	fmt.Println("\nFinal:", result.FinalResponse)
}
