package agents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agent-sphere/agent-sphere/src/agent"
)

// Transaction is one ledger entry; negative amounts are spending.
type Transaction struct {
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
}

// Holding is one investment position.
type Holding struct {
	Symbol        string  `json:"symbol"`
	Shares        int     `json:"shares"`
	PurchasePrice float64 `json:"purchase_price"`
	CurrentPrice  float64 `json:"current_price"`
}

// Goal is a savings target.
type Goal struct {
	Name     string  `json:"name"`
	Target   float64 `json:"target"`
	Current  float64 `json:"current"`
	Deadline string  `json:"deadline"`
}

// FinancialPlanner is an in-memory mock of personal finance data.
type FinancialPlanner struct {
	mu           sync.Mutex
	accounts     map[string]float64
	transactions []Transaction
	budget       map[string]float64
	investments  []Holding
	goals        []Goal
}

func NewFinancialPlanner() *FinancialPlanner {
	return &FinancialPlanner{
		accounts: map[string]float64{
			"checking": 5000, "savings": 15000, "investment": 25000, "crypto": 3500,
		},
		transactions: []Transaction{
			{Date: "2026-08-28", Amount: -50, Category: "groceries", Description: "Whole Foods"},
			{Date: "2026-08-28", Amount: -150, Category: "utilities", Description: "Electric bill"},
			{Date: "2026-08-27", Amount: -35, Category: "entertainment", Description: "Movie tickets"},
			{Date: "2026-08-26", Amount: 3500, Category: "income", Description: "Monthly salary"},
			{Date: "2026-08-25", Amount: -200, Category: "dining", Description: "Restaurant"},
			{Date: "2026-08-24", Amount: -100, Category: "transport", Description: "Gas"},
		},
		budget: map[string]float64{
			"groceries": 500, "utilities": 300, "entertainment": 200,
			"dining": 300, "transport": 200, "health": 150,
		},
		investments: []Holding{
			{Symbol: "AAPL", Shares: 10, PurchasePrice: 150, CurrentPrice: 195},
			{Symbol: "GOOGL", Shares: 5, PurchasePrice: 100, CurrentPrice: 140},
			{Symbol: "MSFT", Shares: 8, PurchasePrice: 300, CurrentPrice: 380},
		},
		goals: []Goal{
			{Name: "Emergency Fund", Target: 20000, Current: 15000, Deadline: "2027-06-30"},
			{Name: "Vacation", Target: 5000, Current: 2000, Deadline: "2027-08-31"},
		},
	}
}

// Balance returns one account's balance.
func (p *FinancialPlanner) Balance(account string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bal, ok := p.accounts[account]
	if !ok {
		names := make([]string, 0, len(p.accounts))
		for name := range p.accounts {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", errors.Errorf("account %q not found, available: %v", account, names)
	}
	return fmt.Sprintf("%s: $%.2f", account, bal), nil
}

// AllBalances returns every balance plus net worth.
func (p *FinancialPlanner) AllBalances() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	accounts := make(map[string]float64, len(p.accounts))
	total := 0.0
	for name, bal := range p.accounts {
		accounts[name] = bal
		total += bal
	}
	return map[string]any{"accounts": accounts, "total_net_worth": total}
}

// RecordTransaction appends a ledger entry and adjusts checking.
func (p *FinancialPlanner) RecordTransaction(amount float64, category, description string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.budget[category]; !ok && category != "income" {
		names := make([]string, 0, len(p.budget))
		for name := range p.budget {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", errors.Errorf("category %q not found, available: %v", category, names)
	}

	p.transactions = append(p.transactions, Transaction{
		Date: time.Now().Format("2006-01-02"), Amount: amount,
		Category: category, Description: description,
	})
	p.accounts["checking"] += amount
	return fmt.Sprintf("Transaction recorded: $%+.2f for %s - %s", amount, category, description), nil
}

// SpendingAnalysis sums spending per category against budget over the
// last days days.
func (p *FinancialPlanner) SpendingAnalysis(days int) map[string]any {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days).Format("2006-01-02")

	p.mu.Lock()
	defer p.mu.Unlock()

	byCategory := make(map[string]float64)
	for _, tx := range p.transactions {
		if tx.Date >= cutoff && tx.Amount < 0 {
			byCategory[tx.Category] += -tx.Amount
		}
	}

	categories := make([]map[string]any, 0, len(byCategory))
	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spent := byCategory[name]
		budget := p.budget[name]
		status := "OK"
		if budget > 0 && spent > budget {
			status = "OVER"
		}
		categories = append(categories, map[string]any{
			"category": name,
			"spent":    spent,
			"budget":   budget,
			"status":   status,
		})
	}
	return map[string]any{"last_days": days, "categories": categories}
}

// Portfolio summarizes holdings with gains.
func (p *FinancialPlanner) Portfolio() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	var totalValue, totalCost float64
	holdings := make([]map[string]any, 0, len(p.investments))
	for _, h := range p.investments {
		value := float64(h.Shares) * h.CurrentPrice
		cost := float64(h.Shares) * h.PurchasePrice
		totalValue += value
		totalCost += cost
		holdings = append(holdings, map[string]any{
			"symbol":    h.Symbol,
			"shares":    h.Shares,
			"value":     value,
			"gain_loss": value - cost,
		})
	}
	return map[string]any{
		"holdings":        holdings,
		"portfolio_value": totalValue,
		"total_gain_loss": totalValue - totalCost,
	}
}

// BuyInvestment records a purchase funded from the investment account.
func (p *FinancialPlanner) BuyInvestment(symbol string, shares int, price float64) (string, error) {
	if shares <= 0 || price <= 0 {
		return "", errors.New("shares and price must be positive")
	}
	cost := float64(shares) * price

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accounts["investment"] < cost {
		return "", errors.Errorf("insufficient funds: available $%.2f, required $%.2f",
			p.accounts["investment"], cost)
	}

	found := false
	for i := range p.investments {
		if p.investments[i].Symbol == symbol {
			p.investments[i].Shares += shares
			found = true
			break
		}
	}
	if !found {
		p.investments = append(p.investments, Holding{
			Symbol: symbol, Shares: shares, PurchasePrice: price, CurrentPrice: price,
		})
	}
	p.accounts["investment"] -= cost
	return fmt.Sprintf("Purchased %d shares of %s at $%.2f/share (Total: $%.2f)", shares, symbol, price, cost), nil
}

// Goals returns all savings goals with progress.
func (p *FinancialPlanner) Goals() []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]map[string]any, 0, len(p.goals))
	for _, g := range p.goals {
		pct := 0.0
		if g.Target > 0 {
			pct = g.Current / g.Target * 100
		}
		out = append(out, map[string]any{
			"name": g.Name, "target": g.Target, "current": g.Current,
			"deadline": g.Deadline, "progress_pct": pct,
		})
	}
	return out
}

// AddToGoal moves money from checking into a goal.
func (p *FinancialPlanner) AddToGoal(name string, amount float64) (string, error) {
	if amount <= 0 {
		return "", errors.New("amount must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.goals {
		if p.goals[i].Name == name {
			p.goals[i].Current += amount
			p.accounts["checking"] -= amount
			return fmt.Sprintf("Added $%.2f to %q ($%.2f of $%.2f)",
				amount, name, p.goals[i].Current, p.goals[i].Target), nil
		}
	}
	return "", errors.Errorf("goal %q not found", name)
}

// ProjectSavings estimates balances after saving monthly for months.
func (p *FinancialPlanner) ProjectSavings(monthly float64, months int) string {
	if months <= 0 {
		months = 12
	}

	p.mu.Lock()
	current := p.accounts["savings"]
	p.mu.Unlock()

	projected := current + monthly*float64(months)
	return fmt.Sprintf("Saving $%.2f/month for %d months: $%.2f -> $%.2f",
		monthly, months, current, projected)
}

// FinanceTools exposes the planner as agent tools.
func FinanceTools(p *FinancialPlanner) []agent.Tool {
	return []agent.Tool{
		{
			Name:        "get_account_balance",
			Description: "Get the balance of one account (checking, savings, investment, crypto)",
			Params:      map[string]string{"account": "str"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				account, _ := stringArg(args, "account")
				return p.Balance(account)
			},
		},
		{
			Name:        "get_all_balances",
			Description: "Get all account balances and net worth",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return p.AllBalances(), nil
			},
		},
		{
			Name:        "record_transaction",
			Description: "Record a transaction; negative amount for spending, positive for income",
			Params:      map[string]string{"amount": "float", "category": "str", "description": "str (optional)"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				amount, ok := floatArg(args, "amount")
				if !ok {
					return nil, errors.New("amount is required")
				}
				category, _ := stringArg(args, "category")
				description, _ := stringArg(args, "description")
				return p.RecordTransaction(amount, category, description)
			},
		},
		{
			Name:        "get_spending_analysis",
			Description: "Analyze spending by category against budget",
			Params:      map[string]string{"days": "int (optional)"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				days, _ := intArg(args, "days")
				return p.SpendingAnalysis(days), nil
			},
		},
		{
			Name:        "get_investment_portfolio",
			Description: "Get investment portfolio summary with gains",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return p.Portfolio(), nil
			},
		},
		{
			Name:        "buy_investment",
			Description: "Record an investment purchase",
			Params:      map[string]string{"symbol": "str", "shares": "int", "price": "float"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				symbol, _ := stringArg(args, "symbol")
				shares, _ := intArg(args, "shares")
				price, _ := floatArg(args, "price")
				return p.BuyInvestment(symbol, shares, price)
			},
		},
		{
			Name:        "get_financial_goals",
			Description: "Get savings goals with progress",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return p.Goals(), nil
			},
		},
		{
			Name:        "add_to_goal",
			Description: "Add money to a savings goal",
			Params:      map[string]string{"goal_name": "str", "amount": "float"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				name, _ := stringArg(args, "goal_name")
				amount, ok := floatArg(args, "amount")
				if !ok {
					return nil, errors.New("amount is required")
				}
				return p.AddToGoal(name, amount)
			},
		},
		{
			Name:        "project_savings",
			Description: "Project savings growth at a monthly rate",
			Params:      map[string]string{"monthly_savings": "float", "months": "int (optional)"},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				monthly, ok := floatArg(args, "monthly_savings")
				if !ok {
					return nil, errors.New("monthly_savings is required")
				}
				months, _ := intArg(args, "months")
				return p.ProjectSavings(monthly, months), nil
			},
		},
	}
}

// NewFinanceAgent builds the financial planning agent.
func NewFinanceAgent(model agent.ChatModel, memory agent.MemorySource, logger zerolog.Logger) (*agent.Agent, error) {
	return agent.New(agent.Options{
		ID:           "finance",
		Name:         "FinanceBot",
		Role:         "Personal Financial Planning Assistant",
		Instructions: "You are a financial planning assistant. Help users manage their money, track spending, and achieve financial goals. Always provide clear financial advice and summaries.",
		Model:        model,
		Tools:        FinanceTools(NewFinancialPlanner()),
		Memory:       memory,
		Logger:       logger,
	})
}
