package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Transaction types accepted by the backend
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
	TypeDebt    = "debt"
)

// Debt directions
const (
	DebtLent     = "lent"
	DebtBorrowed = "borrowed"
)

// Timestamps are kept as the backend sends them: ISO-8601 without a zone,
// or a bare date for due and reminder dates.

// User is the profile shown on the home page, with 30 day totals
type User struct {
	UserID           int64                      `json:"user_id"`
	Username         *string                    `json:"username"`
	FirstName        *string                    `json:"first_name"`
	Name             string                     `json:"name"`
	Tariff           string                     `json:"tariff"`
	TariffExpiresAt  *string                    `json:"tariff_expires_at"`
	Balance          decimal.Decimal            `json:"balance"`
	Income           decimal.Decimal            `json:"income"`
	Expense          decimal.Decimal            `json:"expense"`
	CurrencyBalances map[string]decimal.Decimal `json:"currency_balances"`
}

// Transaction is one income, expense or debt movement
type Transaction struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id,omitempty"`
	TransactionType string          `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Category        string          `json:"category"`
	Description     *string         `json:"description"`
	CreatedAt       string          `json:"created_at"`
}

// transactionList accepts both a bare array and {"transactions": [...]}
type transactionList []Transaction

func (l *transactionList) UnmarshalJSON(b []byte) error {
	var arr []Transaction
	if err := json.Unmarshal(b, &arr); err == nil {
		*l = arr
		return nil
	}
	var wrapped struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Transactions
	return nil
}

// TransactionQuery selects a page of transactions
type TransactionQuery struct {
	// Type filters by TypeIncome, TypeExpense or TypeDebt; empty means all
	Type   string
	Limit  int
	Offset int
}

// NewTransaction is the body of AddTransaction
type NewTransaction struct {
	TransactionType string          `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Category        string          `json:"category"`
	Description     *string         `json:"description"`
}

// Balance is the current balance in the base currency
type Balance struct {
	Balance decimal.Decimal `json:"balance"`
}

// Statistics for a period. Older backends fill only Income, Expense, Balance and Days.
type Statistics struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
	Days    int             `json:"days"`

	TotalIncome        decimal.Decimal  `json:"total_income"`
	TotalExpense       decimal.Decimal  `json:"total_expense"`
	TransactionCount   int              `json:"transaction_count"`
	AverageTransaction decimal.Decimal  `json:"average_transaction"`
	BalanceTrend       []TrendPoint     `json:"balance_trend"`
	CategoryBreakdown  []CategoryAmount `json:"category_breakdown"`
	DailySpending      []TrendPoint     `json:"daily_spending"`
}

// Net returns income minus expense, preferring the detailed totals when present
func (s Statistics) Net() decimal.Decimal {
	if !s.TotalIncome.IsZero() || !s.TotalExpense.IsZero() {
		return s.TotalIncome.Sub(s.TotalExpense)
	}
	return s.Income.Sub(s.Expense)
}

// SavingsRate returns the saved share of income in percent, rounded; zero without income
func (s Statistics) SavingsRate() decimal.Decimal {
	income := s.TotalIncome
	if income.IsZero() {
		income = s.Income
	}
	if !income.IsPositive() {
		return decimal.Zero
	}
	return s.Net().Div(income).Mul(decimal.NewFromInt(100)).Round(0)
}

// TrendPoint is one day of a chart series
type TrendPoint struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// CategoryAmount is the total spent in one category
type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// Debt is money lent to or borrowed from a person
type Debt struct {
	ID          int64           `json:"id"`
	DebtType    string          `json:"debt_type"`
	PersonName  string          `json:"person_name"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Currency    string          `json:"currency"`
	DueDate     *string         `json:"due_date"`
	Description *string         `json:"description"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
}

// Remaining returns the unpaid part of the debt
func (d Debt) Remaining() decimal.Decimal {
	return d.Amount.Sub(d.PaidAmount)
}

// NewDebt is the body of AddDebt
type NewDebt struct {
	DebtType    string          `json:"debt_type"`
	PersonName  string          `json:"person_name"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	DueDate     *string         `json:"due_date"`
	Description *string         `json:"description"`
}

// Reminder is a scheduled payment reminder
type Reminder struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	ReminderDate   string          `json:"reminder_date"`
	RepeatInterval string          `json:"repeat_interval"`
	IsCompleted    bool            `json:"is_completed"`
}

// NewReminder is the body of AddReminder
type NewReminder struct {
	Title          string          `json:"title"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	ReminderDate   string          `json:"reminder_date"`
	RepeatInterval string          `json:"repeat_interval"`
}
