package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// User returns the current user with balance and 30 day totals
func (c *Client) User(ctx context.Context) (*User, error) {
	var u User
	if err := c.doJSON(ctx, http.MethodGet, "/api/user", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Transactions returns a page of transactions, newest first
func (c *Client) Transactions(ctx context.Context, q TransactionQuery) ([]Transaction, error) {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", itoa(q.Offset))
	}
	if q.Type != "" {
		v.Set("type", q.Type)
	}

	var list transactionList
	if err := c.doJSON(ctx, http.MethodGet, "/api/transactions", v, nil, &list); err != nil {
		return nil, err
	}
	return []Transaction(list), nil
}

// Balance returns the current balance
func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	var b Balance
	if err := c.doJSON(ctx, http.MethodGet, "/api/balance", nil, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// PeriodDays maps the statistics periods the app offers to a day window
var PeriodDays = map[string]int{
	"week":  7,
	"month": 30,
	"year":  365,
}

// Statistics returns totals for period ("week", "month", "year" or a number of days)
func (c *Client) Statistics(ctx context.Context, period string) (*Statistics, error) {
	v := url.Values{}
	if period != "" {
		v.Set("period", period)
		if days, ok := PeriodDays[period]; ok {
			v.Set("days", itoa(days))
		} else if _, err := strconv.Atoi(period); err == nil {
			v.Set("days", period)
		}
	}

	var s Statistics
	if err := c.doJSON(ctx, http.MethodGet, "/api/statistics", v, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// TopCategories returns the categories with the most spending over the last days
func (c *Client) TopCategories(ctx context.Context, limit, days int) ([]CategoryAmount, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", itoa(limit))
	}
	if days > 0 {
		v.Set("days", itoa(days))
	}

	var out []CategoryAmount
	if err := c.doJSON(ctx, http.MethodGet, "/api/statistics/top-categories", v, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Debts returns the active debts
func (c *Client) Debts(ctx context.Context) ([]Debt, error) {
	var out []Debt
	if err := c.doJSON(ctx, http.MethodGet, "/api/debts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reminders returns up to limit reminders; zero uses the backend default
func (c *Client) Reminders(ctx context.Context, limit int) ([]Reminder, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", itoa(limit))
	}

	var out []Reminder
	if err := c.doJSON(ctx, http.MethodGet, "/api/reminders", v, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddTransaction records an income or expense
func (c *Client) AddTransaction(ctx context.Context, t NewTransaction) error {
	return c.doJSON(ctx, http.MethodPost, "/api/transactions", nil, t, nil)
}

// AddDebt records money lent or borrowed
func (c *Client) AddDebt(ctx context.Context, d NewDebt) error {
	return c.doJSON(ctx, http.MethodPost, "/api/debts", nil, d, nil)
}

// AddReminder creates a reminder
func (c *Client) AddReminder(ctx context.Context, r NewReminder) error {
	return c.doJSON(ctx, http.MethodPost, "/api/reminders", nil, r, nil)
}

// SetReminderCompleted marks a reminder done or not done
func (c *Client) SetReminderCompleted(ctx context.Context, id int64, completed bool) error {
	body := struct {
		IsCompleted bool `json:"is_completed"`
	}{completed}
	return c.doJSON(ctx, http.MethodPatch, "/api/reminders/"+strconv.FormatInt(id, 10), nil, body, nil)
}
