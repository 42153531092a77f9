package wallet

import (
	"context"

	"github.com/balansai/walletkit/api"
)

// AddTransaction records a transaction and drops everything derived from transactions
func (s *Service) AddTransaction(ctx context.Context, t api.NewTransaction) error {
	return s.mutate(ctx, ResourceTransactions, func(ctx context.Context) error {
		return s.backend.AddTransaction(ctx, t)
	})
}

// AddDebt records a debt and invalidates debts, user and balance
func (s *Service) AddDebt(ctx context.Context, d api.NewDebt) error {
	return s.mutate(ctx, ResourceDebts, func(ctx context.Context) error {
		return s.backend.AddDebt(ctx, d)
	})
}

// AddReminder creates a reminder and invalidates reminders
func (s *Service) AddReminder(ctx context.Context, r api.NewReminder) error {
	return s.mutate(ctx, ResourceReminders, func(ctx context.Context) error {
		return s.backend.AddReminder(ctx, r)
	})
}

// CompleteReminder marks a reminder done or not done
func (s *Service) CompleteReminder(ctx context.Context, id int64, completed bool) error {
	return s.mutate(ctx, ResourceReminders, func(ctx context.Context) error {
		return s.backend.SetReminderCompleted(ctx, id, completed)
	})
}

// mutate runs call and, only if it succeeded, invalidates resource locally
// and announces it to other sessions
func (s *Service) mutate(ctx context.Context, resource string, call func(context.Context) error) error {
	err := call(ctx)
	s.logMutation(resource, err)
	if err != nil {
		return err
	}

	s.inv.Mutated(resource)
	s.announce(ctx, resource)
	return nil
}
