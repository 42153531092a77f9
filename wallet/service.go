// Package wallet is the data layer of the wallet Mini App: cached reads of the
// backend resources, pagination, and mutations that invalidate what they change.
package wallet

import (
	"context"

	"github.com/balansai/walletkit/api"
	"github.com/balansai/walletkit/cache"
	"github.com/balansai/walletkit/kafka"
	"github.com/balansai/walletkit/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PageSize is the number of transactions per page
	PageSize = 20
	// HomeTransactions is the number of transactions on the home page
	HomeTransactions = 5
	// DefaultTopCategories and DefaultCategoryDays shape the categories list
	DefaultTopCategories = 10
	DefaultCategoryDays  = 30
	// DefaultPeriod is used for statistics when no period is given
	DefaultPeriod = "month"
)

// Backend is the subset of *api.Client the service calls
type Backend interface {
	User(ctx context.Context) (*api.User, error)
	Transactions(ctx context.Context, q api.TransactionQuery) ([]api.Transaction, error)
	Balance(ctx context.Context) (*api.Balance, error)
	Statistics(ctx context.Context, period string) (*api.Statistics, error)
	TopCategories(ctx context.Context, limit, days int) ([]api.CategoryAmount, error)
	Debts(ctx context.Context) ([]api.Debt, error)
	Reminders(ctx context.Context, limit int) ([]api.Reminder, error)

	AddTransaction(ctx context.Context, t api.NewTransaction) error
	AddDebt(ctx context.Context, d api.NewDebt) error
	AddReminder(ctx context.Context, r api.NewReminder) error
	SetReminderCompleted(ctx context.Context, id int64, completed bool) error
}

// Service serves cached wallet data for one session
type Service struct {
	backend Backend
	cache   cache.Cache
	inv     *cache.Invalidator
	log     logger.Logger

	publisher kafka.Publisher
	userID    int64
	// origin tags events published by this service so it can skip its own
	origin string
}

type options struct {
	log       logger.Logger
	cache     cache.Cache
	cacheCfg  *cache.Config
	rules     cache.Rules
	publisher kafka.Publisher
	userID    int64
}

// Option configures a Service
type Option func(*options)

// WithLogger sets the logger; the default is logger.Default
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithCache uses c instead of creating a cache; the service still closes it
func WithCache(c cache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithCacheConfig configures the cache the service creates
func WithCacheConfig(cfg *cache.Config) Option {
	return func(o *options) { o.cacheCfg = cfg }
}

// WithRules replaces DefaultRules
func WithRules(r cache.Rules) Option {
	return func(o *options) { o.rules = r }
}

// WithPublisher announces mutations on p
func WithPublisher(p kafka.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithUserID tags published events and filters received ones
func WithUserID(id int64) Option {
	return func(o *options) { o.userID = id }
}

// New creates a service reading from backend through a read-through cache
func New(backend Backend, opts ...Option) (*Service, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}

	o := options{rules: DefaultRules()}
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.Named(logger.OrDefault(o.log), "wallet")

	c := o.cache
	if c == nil {
		cfg := o.cacheCfg
		if cfg == nil {
			cfg = &cache.Config{Name: "wallet"}
		}
		var err error
		if c, err = cache.New(log, cfg); err != nil {
			return nil, err
		}
	}

	return &Service{
		backend:   backend,
		cache:     c,
		inv:       cache.NewInvalidator(c, o.rules, log),
		log:       log,
		publisher: o.publisher,
		userID:    o.userID,
		origin:    uuid.NewString(),
	}, nil
}

// Cache exposes the underlying cache
func (s *Service) Cache() cache.Cache {
	return s.cache
}

// Logout forgets everything cached for the session
func (s *Service) Logout() {
	s.cache.InvalidateAll()
	s.log.Info("session cleared")
}

// Close stops background refreshes
func (s *Service) Close() {
	s.cache.Close()
}

// User returns the user profile with the current balance
func (s *Service) User(ctx context.Context) (*api.User, error) {
	return cache.Fetch(ctx, s.cache, KeyUser, s.backend.User)
}

// Balance returns the balance summary
func (s *Service) Balance(ctx context.Context) (*api.Balance, error) {
	return cache.Fetch(ctx, s.cache, KeyBalance, s.backend.Balance)
}

// RecentTransactions returns the first page of all transactions
func (s *Service) RecentTransactions(ctx context.Context) ([]api.Transaction, error) {
	return s.firstPage(ctx, "")
}

func (s *Service) firstPage(ctx context.Context, txType string) ([]api.Transaction, error) {
	return cache.Fetch(ctx, s.cache, TransactionsKey(txType), func(ctx context.Context) ([]api.Transaction, error) {
		return s.backend.Transactions(ctx, api.TransactionQuery{Type: txType, Limit: PageSize})
	})
}

// Statistics returns income and expense totals for period ("week", "month", "year" or a
// number of days). An empty period means DefaultPeriod.
func (s *Service) Statistics(ctx context.Context, period string) (*api.Statistics, error) {
	if period == "" {
		period = DefaultPeriod
	}
	return cache.Fetch(ctx, s.cache, StatsKey(period), func(ctx context.Context) (*api.Statistics, error) {
		return s.backend.Statistics(ctx, period)
	})
}

// TopCategories returns the top expense categories over the last days.
// Non-positive arguments mean DefaultTopCategories and DefaultCategoryDays.
func (s *Service) TopCategories(ctx context.Context, limit, days int) ([]api.CategoryAmount, error) {
	if limit <= 0 {
		limit = DefaultTopCategories
	}
	if days <= 0 {
		days = DefaultCategoryDays
	}
	return cache.Fetch(ctx, s.cache, CategoriesKey(limit, days), func(ctx context.Context) ([]api.CategoryAmount, error) {
		return s.backend.TopCategories(ctx, limit, days)
	})
}

// Debts returns the debts lent and borrowed
func (s *Service) Debts(ctx context.Context) ([]api.Debt, error) {
	return cache.Fetch(ctx, s.cache, KeyDebts, s.backend.Debts)
}

// Reminders returns the reminders with the backend's default limit
func (s *Service) Reminders(ctx context.Context) ([]api.Reminder, error) {
	return cache.Fetch(ctx, s.cache, KeyReminders, func(ctx context.Context) ([]api.Reminder, error) {
		return s.backend.Reminders(ctx, 0)
	})
}

// OnUserRefreshed calls fn with each user fetched by a background refresh
func (s *Service) OnUserRefreshed(fn func(*api.User)) (cancel func()) {
	return cache.Listen(s.cache, KeyUser, fn)
}

// OnTransactionsRefreshed calls fn with the first page of all transactions fetched by a background refresh
func (s *Service) OnTransactionsRefreshed(fn func([]api.Transaction)) (cancel func()) {
	return cache.Listen(s.cache, KeyTransactions, fn)
}

// OnStatisticsRefreshed calls fn with the statistics of period fetched by a background refresh.
// An empty period means DefaultPeriod.
func (s *Service) OnStatisticsRefreshed(period string, fn func(*api.Statistics)) (cancel func()) {
	if period == "" {
		period = DefaultPeriod
	}
	return cache.Listen(s.cache, StatsKey(period), fn)
}

// OnDebtsRefreshed calls fn with the debts fetched by a background refresh
func (s *Service) OnDebtsRefreshed(fn func([]api.Debt)) (cancel func()) {
	return cache.Listen(s.cache, KeyDebts, fn)
}

// OnRemindersRefreshed calls fn with the reminders fetched by a background refresh
func (s *Service) OnRemindersRefreshed(fn func([]api.Reminder)) (cancel func()) {
	return cache.Listen(s.cache, KeyReminders, fn)
}

// OnRefreshFailed reports background refresh failures of key, which readers never see
func (s *Service) OnRefreshFailed(key string, fn func(error)) (cancel func()) {
	return s.cache.OnRefreshError(key, fn)
}

func (s *Service) logMutation(resource string, err error) {
	if err != nil {
		s.log.Warn("mutation failed", zap.String("resource", resource), zap.Error(err))
		return
	}
	s.log.Debug("mutation applied", zap.String("resource", resource))
}
