package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agent-sphere/agent-sphere/src/agents"
	"github.com/agent-sphere/agent-sphere/src/models"
)

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted agent walkthrough with no LLM backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo()
		},
	}
}

// runDemo drives the home agent with a scripted model so the think-act
// loop can be watched without any provider configured.
func runDemo() error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

	model := models.NewScriptedProvider(
		`{"action": "get_home_status", "parameters": {}}`,
		`{"action": "toggle_light", "parameters": {"room": "living_room", "state": true, "brightness": 80}}`,
		"The living room light is on at 80% brightness, and everything else is as you left it.",
	)

	home, err := agents.NewHomeAgent(scriptedChat{model}, nil, logger)
	if err != nil {
		return err
	}

	request := "Check the house and turn on the living room lights at 80%"
	fmt.Println("User:", request)
	fmt.Println("Agent:", home.ThinkAndAct(context.Background(), "demo", request))

	fmt.Println("\nTranscript:")
	for _, turn := range home.Transcript("demo") {
		fmt.Printf("  [%s] %s\n", turn.Role, turn.Content)
	}
	return nil
}

// scriptedChat adapts the dummy provider's error-returning Chat to the
// agent model interface.
type scriptedChat struct {
	p *models.DummyProvider
}

func (s scriptedChat) Chat(ctx context.Context, messages []models.ChatMessage) string {
	reply, err := s.p.Chat(ctx, messages)
	if err != nil {
		return "Error: " + err.Error()
	}
	return reply
}
