package agents

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-sphere/agent-sphere/src/models"
)

type scriptedModel struct {
	responses []string
	calls     int
}

func (m *scriptedModel) Chat(ctx context.Context, messages []models.ChatMessage) string {
	i := m.calls
	m.calls++
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i]
}

func TestHomeControllerToggleLight(t *testing.T) {
	c := NewSmartHomeController()

	on := true
	brightness := 80
	msg, err := c.ToggleLight("living_room", &on, &brightness, nil)
	require.NoError(t, err)
	assert.Contains(t, msg, "turned on")
	assert.Contains(t, msg, "80%")

	msg, err = c.ToggleLight("living_room", nil, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, msg, "turned off")

	_, err = c.ToggleLight("attic", nil, nil, nil)
	assert.Error(t, err)
}

func TestHomeControllerThermostatBounds(t *testing.T) {
	c := NewSmartHomeController()

	msg, err := c.SetThermostat(75, "cool")
	require.NoError(t, err)
	assert.Equal(t, "Thermostat set to 75F in cool mode", msg)

	_, err = c.SetThermostat(95, "")
	assert.Error(t, err)

	status := c.ThermostatStatus()
	assert.Equal(t, 75, status["target_temp"])
	assert.Equal(t, "cool", status["mode"])
}

func TestHomeControllerDevicesAndSecurity(t *testing.T) {
	c := NewSmartHomeController()

	on := true
	msg, err := c.ControlDevice("coffee_maker", &on)
	require.NoError(t, err)
	assert.Equal(t, "Coffee maker turned on", msg)

	_, err = c.ControlDevice("toaster", nil)
	assert.Error(t, err)

	assert.Equal(t, "Door is now unlocked", c.LockDoor(false))
	assert.Equal(t, "Garage is now open", c.ControlGarage(true))

	status := c.HomeStatus()
	security := status["security"].(map[string]any)
	assert.Equal(t, false, security["door_locked"])
	assert.Equal(t, true, security["garage_open"])
}

func TestHomeControllerScenesAndLog(t *testing.T) {
	c := NewSmartHomeController()

	c.CreateScene("movie_night", []string{"dim living_room", "tv on"})
	msg, err := c.ActivateScene("movie_night")
	require.NoError(t, err)
	assert.Contains(t, msg, "movie_night")

	_, err = c.ActivateScene("party")
	assert.Error(t, err)

	c.LockDoor(true)
	log := c.DeviceLog(5)
	require.NotEmpty(t, log)
	assert.Equal(t, "security", log[len(log)-1]["action"])
}

func TestHomeAgentEndToEnd(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`{"action": "toggle_light", "parameters": {"room": "kitchen", "state": true, "brightness": 60}}`,
		"The kitchen light is on at 60% brightness.",
	}}
	a, err := NewHomeAgent(model, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "home", a.ID())

	out := a.ThinkAndAct(context.Background(), "s1", "turn on the kitchen light at 60%")
	assert.Equal(t, "The kitchen light is on at 60% brightness.", out)

	transcript := a.Transcript("s1")
	require.Len(t, transcript, 4)
	assert.Contains(t, transcript[2].Content, "Tool result:")
	assert.Contains(t, transcript[2].Content, `"success":true`)
}

func TestCalendarReadAndSendEmail(t *testing.T) {
	m := NewCalendarManager()

	unread := m.ReadEmails(5, true)
	assert.Len(t, unread, 2)

	all := m.ReadEmails(5, false)
	assert.Len(t, all, 3)

	email, err := m.EmailDetails(1)
	require.NoError(t, err)
	assert.Equal(t, "boss@company.com", email.From)
	assert.Len(t, m.ReadEmails(5, true), 1)

	_, err = m.EmailDetails(99)
	assert.Error(t, err)

	msg, err := m.SendEmail("alice@company.com", "Running late", "Be there in 10")
	require.NoError(t, err)
	assert.Contains(t, msg, "alice@company.com")
	assert.Len(t, m.SentEmails(), 1)
}

func TestCalendarReply(t *testing.T) {
	m := NewCalendarManager()

	msg, err := m.ReplyToEmail(2, "Yes, 3 PM works")
	require.NoError(t, err)
	assert.Contains(t, msg, "sarah@friends.com")

	sent := m.SentEmails()
	require.Len(t, sent, 1)
	assert.Equal(t, "Re: Coffee tomorrow?", sent[0].Subject)

	_, err = m.ReplyToEmail(42, "hello")
	assert.Error(t, err)
}

func TestCalendarEvents(t *testing.T) {
	m := NewCalendarManager()

	events := m.UpcomingEvents(7)
	require.Len(t, events, 3)
	assert.Equal(t, "Team Standup", events[0].Title)

	start := time.Now().Add(48 * time.Hour).Format("2006-01-02 15:04")
	msg, err := m.ScheduleEvent("Dentist", start, 45, "Clinic", nil)
	require.NoError(t, err)
	assert.Contains(t, msg, "Dentist")

	_, err = m.ScheduleEvent("Bad", "sometime soon", 30, "", nil)
	assert.Error(t, err)

	msg, err = m.DeleteEvent(2)
	require.NoError(t, err)
	assert.Contains(t, msg, "Lunch with Client")
	assert.Len(t, m.UpcomingEvents(7), 3)
}

func TestCalendarFindFreeSlot(t *testing.T) {
	m := NewCalendarManager()
	out := m.FindFreeSlot(30)
	assert.Contains(t, out, "30-minute slot")
}

func TestFinanceBalancesAndTransactions(t *testing.T) {
	p := NewFinancialPlanner()

	msg, err := p.Balance("checking")
	require.NoError(t, err)
	assert.Equal(t, "checking: $5000.00", msg)

	_, err = p.Balance("offshore")
	assert.Error(t, err)

	msg, err = p.RecordTransaction(-75.50, "groceries", "Market")
	require.NoError(t, err)
	assert.Contains(t, msg, "-75.50")

	balances := p.AllBalances()
	accounts := balances["accounts"].(map[string]float64)
	assert.InDelta(t, 4924.50, accounts["checking"], 0.001)

	_, err = p.RecordTransaction(-10, "gambling", "")
	assert.Error(t, err)
}

func TestFinanceSpendingAnalysis(t *testing.T) {
	p := NewFinancialPlanner()
	_, err := p.RecordTransaction(-600, "groceries", "stock up")
	require.NoError(t, err)

	analysis := p.SpendingAnalysis(30)
	categories := analysis["categories"].([]map[string]any)
	var groceries map[string]any
	for _, c := range categories {
		if c["category"] == "groceries" {
			groceries = c
		}
	}
	require.NotNil(t, groceries)
	assert.Equal(t, "OVER", groceries["status"])
}

func TestFinanceInvestments(t *testing.T) {
	p := NewFinancialPlanner()

	msg, err := p.BuyInvestment("AAPL", 5, 200)
	require.NoError(t, err)
	assert.Contains(t, msg, "5 shares of AAPL")

	_, err = p.BuyInvestment("NVDA", 1000, 900)
	assert.Error(t, err)

	portfolio := p.Portfolio()
	holdings := portfolio["holdings"].([]map[string]any)
	for _, h := range holdings {
		if h["symbol"] == "AAPL" {
			assert.Equal(t, 15, h["shares"])
		}
	}
}

func TestFinanceGoals(t *testing.T) {
	p := NewFinancialPlanner()

	msg, err := p.AddToGoal("Vacation", 500)
	require.NoError(t, err)
	assert.Contains(t, msg, "Vacation")

	_, err = p.AddToGoal("Yacht", 100)
	assert.Error(t, err)

	out := p.ProjectSavings(500, 12)
	assert.Contains(t, out, "$21000.00")
}

func TestFinanceAgentEndToEnd(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`TOOL: get_all_balances`,
		"Your net worth is $48,500.",
	}}
	a, err := NewFinanceAgent(model, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "finance", a.ID())

	out := a.ThinkAndAct(context.Background(), "s1", "what is my net worth")
	assert.Equal(t, "Your net worth is $48,500.", out)
}

func TestArgCoercion(t *testing.T) {
	args := map[string]any{
		"n_json": float64(7), "n_str": "7",
		"f_str": "3.5", "b_str": "true", "b": true,
		"s": "hello",
	}

	n, ok := intArg(args, "n_json")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	n, ok = intArg(args, "n_str")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	f, ok := floatArg(args, "f_str")
	assert.True(t, ok)
	assert.Equal(t, 3.5, f)

	b, ok := boolArg(args, "b_str")
	assert.True(t, ok)
	assert.True(t, b)

	s, ok := stringArg(args, "s")
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	_, ok = intArg(args, "missing")
	assert.False(t, ok)
}

func TestCalendarAgentRegistersAllTools(t *testing.T) {
	a, err := NewCalendarAgent(&scriptedModel{responses: []string{"hi"}}, nil, zerolog.Nop())
	require.NoError(t, err)

	names := a.Catalog().Names()
	assert.Len(t, names, 9)
	assert.True(t, contains(names, "send_email"))
	assert.True(t, contains(names, "find_free_slot"))
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
