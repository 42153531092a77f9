package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/balansai/walletkit/api"
	"github.com/balansai/walletkit/cache"
	"github.com/balansai/walletkit/cron"
	"github.com/balansai/walletkit/kafka"
	"github.com/balansai/walletkit/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves canned data and counts calls per endpoint
type fakeBackend struct {
	mu      sync.Mutex
	calls   map[string]int
	balance int64
	txTotal int
	failAll error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: make(map[string]int), balance: 100, txTotal: 45}
}

func (f *fakeBackend) hit(endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[endpoint]++
	return f.failAll
}

func (f *fakeBackend) count(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func (f *fakeBackend) User(context.Context) (*api.User, error) {
	if err := f.hit("user"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &api.User{UserID: 1, Name: "Xojayin", Balance: decimal.NewFromInt(f.balance)}, nil
}

func (f *fakeBackend) Transactions(_ context.Context, q api.TransactionQuery) ([]api.Transaction, error) {
	if err := f.hit("transactions"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []api.Transaction
	for i := q.Offset; i < f.txTotal && len(out) < q.Limit; i++ {
		out = append(out, api.Transaction{ID: int64(f.txTotal - i), TransactionType: api.TypeExpense, Category: "food"})
	}
	return out, nil
}

func (f *fakeBackend) Balance(context.Context) (*api.Balance, error) {
	if err := f.hit("balance"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &api.Balance{Balance: decimal.NewFromInt(f.balance)}, nil
}

func (f *fakeBackend) Statistics(_ context.Context, period string) (*api.Statistics, error) {
	if err := f.hit("stats:" + period); err != nil {
		return nil, err
	}
	return &api.Statistics{Income: decimal.NewFromInt(10), Expense: decimal.NewFromInt(4)}, nil
}

func (f *fakeBackend) TopCategories(_ context.Context, limit, days int) ([]api.CategoryAmount, error) {
	if err := f.hit(fmt.Sprintf("categories:%d:%d", limit, days)); err != nil {
		return nil, err
	}
	return []api.CategoryAmount{{Category: "food", Amount: decimal.NewFromInt(4)}}, nil
}

func (f *fakeBackend) Debts(context.Context) ([]api.Debt, error) {
	if err := f.hit("debts"); err != nil {
		return nil, err
	}
	return []api.Debt{{ID: 1, DebtType: api.DebtLent, PersonName: "Aziz"}}, nil
}

func (f *fakeBackend) Reminders(context.Context, int) ([]api.Reminder, error) {
	if err := f.hit("reminders"); err != nil {
		return nil, err
	}
	return []api.Reminder{{ID: 9, Title: "Rent"}}, nil
}

func (f *fakeBackend) AddTransaction(_ context.Context, t api.NewTransaction) error {
	if err := f.hit("add-transaction"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txTotal++
	if t.TransactionType == api.TypeIncome {
		f.balance += t.Amount.IntPart()
	} else {
		f.balance -= t.Amount.IntPart()
	}
	return nil
}

func (f *fakeBackend) AddDebt(context.Context, api.NewDebt) error {
	return f.hit("add-debt")
}

func (f *fakeBackend) AddReminder(context.Context, api.NewReminder) error {
	return f.hit("add-reminder")
}

func (f *fakeBackend) SetReminderCompleted(context.Context, int64, bool) error {
	return f.hit("complete-reminder")
}

// fakePublisher records published messages
type fakePublisher struct {
	mu   sync.Mutex
	msgs []*kafka.Message
}

func (p *fakePublisher) Publish(_ context.Context, msg *kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func newTestService(t *testing.T, backend Backend, opts ...Option) *Service {
	t.Helper()
	s, err := New(backend, append([]Option{WithLogger(logger.Nop())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestNew_NilBackend(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, ErrNilBackend)
}

func TestService_ReadsAreCached(t *testing.T) {
	backend := newFakeBackend()
	s := newTestService(t, backend)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		u, err := s.User(ctx)
		require.NoError(t, err)
		require.True(t, u.Balance.Equal(decimal.NewFromInt(100)))

		_, err = s.Statistics(ctx, "week")
		require.NoError(t, err)
		_, err = s.TopCategories(ctx, 0, 0)
		require.NoError(t, err)
	}

	require.Equal(t, 1, backend.count("user"))
	require.Equal(t, 1, backend.count("stats:week"))
	require.Equal(t, 1, backend.count("categories:10:30"))
}

func TestService_AddTransactionInvalidatesDerivedData(t *testing.T) {
	backend := newFakeBackend()
	s := newTestService(t, backend)
	ctx := context.Background()

	_, err := s.User(ctx)
	require.NoError(t, err)
	_, err = s.RecentTransactions(ctx)
	require.NoError(t, err)
	_, err = s.Statistics(ctx, "month")
	require.NoError(t, err)
	_, err = s.Statistics(ctx, "")
	require.NoError(t, err)
	_, err = s.Debts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, backend.count("stats:month"), "an empty period reads the default period's entry")

	require.NoError(t, s.AddTransaction(ctx, api.NewTransaction{
		TransactionType: api.TypeExpense, Amount: decimal.NewFromInt(30), Currency: "UZS", Category: "taxi",
	}))

	u, err := s.User(ctx)
	require.NoError(t, err)
	require.True(t, u.Balance.Equal(decimal.NewFromInt(70)), "user should be refetched after a transaction")

	txs, err := s.RecentTransactions(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(46), txs[0].ID)

	_, err = s.Statistics(ctx, "")
	require.NoError(t, err)
	_, err = s.Statistics(ctx, "month")
	require.NoError(t, err)
	_, err = s.Debts(ctx)
	require.NoError(t, err)

	require.Equal(t, 2, backend.count("user"))
	require.Equal(t, 2, backend.count("transactions"))
	require.Equal(t, 2, backend.count("stats:month"))
	require.Equal(t, 1, backend.count("debts"), "debts do not depend on transactions")
}

func TestDefaultRules_TransactionClearsEveryStatsKey(t *testing.T) {
	c, err := cache.New(logger.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	keys := []string{StatsKey(""), StatsKey("week"), StatsKey("90"), CategoriesKey(10, 30), TransactionsKey("income")}
	for _, k := range keys {
		c.Set(k, 1)
	}
	c.Set(KeyReminders, 1)

	cache.NewInvalidator(c, DefaultRules(), logger.Nop()).Mutated(ResourceTransactions)

	for _, k := range keys {
		_, state := c.Peek(k)
		assert.Equal(t, cache.StateAbsent, state, "key %q", k)
	}
	_, state := c.Peek(KeyReminders)
	assert.Equal(t, cache.StateFresh, state)
}

func TestService_FailedMutationKeepsCache(t *testing.T) {
	backend := newFakeBackend()
	s := newTestService(t, backend)
	ctx := context.Background()

	_, err := s.Reminders(ctx)
	require.NoError(t, err)

	backend.mu.Lock()
	backend.failAll = errors.New("backend down")
	backend.mu.Unlock()

	require.Error(t, s.CompleteReminder(ctx, 9, true))

	_, state := s.Cache().Peek(KeyReminders)
	require.Equal(t, cache.StateFresh, state)
}

func TestService_AbsentReadErrorPropagates(t *testing.T) {
	backend := newFakeBackend()
	backend.failAll = errors.New("backend down")
	s := newTestService(t, backend)

	_, err := s.Debts(context.Background())
	require.ErrorIs(t, err, backend.failAll)
}

func TestService_Home(t *testing.T) {
	backend := newFakeBackend()
	s := newTestService(t, backend)

	h, err := s.Home(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), h.User.UserID)
	require.Len(t, h.Recent, HomeTransactions)

	// the home page shares the cached first page with the transactions page
	txs, err := s.RecentTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, PageSize)
	require.Equal(t, 1, backend.count("transactions"))
}

func TestService_Logout(t *testing.T) {
	backend := newFakeBackend()
	s := newTestService(t, backend)
	ctx := context.Background()

	_, err := s.User(ctx)
	require.NoError(t, err)
	s.Logout()
	_, err = s.User(ctx)
	require.NoError(t, err)

	require.Equal(t, 2, backend.count("user"))
}

func TestTransactionPager(t *testing.T) {
	backend := newFakeBackend()
	s := newTestService(t, backend)
	ctx := context.Background()

	p := s.Transactions("")
	var sizes []int
	for p.HasMore() {
		page, err := p.Next(ctx)
		require.NoError(t, err)
		sizes = append(sizes, len(page))
	}

	require.Equal(t, []int{20, 20, 5}, sizes)
	require.Len(t, p.Items(), 45)

	page, err := p.Next(ctx)
	require.NoError(t, err)
	require.Empty(t, page)

	// a new pager reuses the cached first page
	p2 := s.Transactions("")
	_, err = p2.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, backend.count("transactions"))

	p.Reset()
	require.True(t, p.HasMore())
	require.Empty(t, p.Items())
}

func TestTransactionPager_ConcurrentNext(t *testing.T) {
	backend := newFakeBackend()
	s := newTestService(t, backend)

	p := s.Transactions(api.TypeExpense)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Next(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, tx := range p.Items() {
		require.False(t, seen[tx.ID], "transaction %d loaded twice", tx.ID)
		seen[tx.ID] = true
	}
	require.NotEmpty(t, seen)
}

func TestInvalidationHandler(t *testing.T) {
	backend := newFakeBackend()
	s := newTestService(t, backend, WithUserID(1))
	ctx := context.Background()
	handle := s.InvalidationHandler()

	event := func(ev MutationEvent) *kafka.Message {
		b, err := json.Marshal(ev)
		require.NoError(t, err)
		return &kafka.Message{Topic: "wallet.mutations", Value: b}
	}

	_, err := s.Debts(ctx)
	require.NoError(t, err)

	require.NoError(t, handle(ctx, event(MutationEvent{Resource: ResourceDebts, UserID: 2})))
	require.NoError(t, handle(ctx, event(MutationEvent{Resource: ResourceDebts, UserID: 1, Origin: s.origin})))
	require.NoError(t, handle(ctx, &kafka.Message{Value: []byte("not json")}))
	_, state := s.Cache().Peek(KeyDebts)
	require.Equal(t, cache.StateFresh, state, "foreign, own and malformed events are ignored")

	require.NoError(t, handle(ctx, event(MutationEvent{Resource: ResourceDebts, UserID: 1, Origin: "bot"})))
	_, state = s.Cache().Peek(KeyDebts)
	require.Equal(t, cache.StateAbsent, state)
}

func TestService_AnnouncesMutations(t *testing.T) {
	pub := &fakePublisher{}
	s := newTestService(t, newFakeBackend(), WithPublisher(pub), WithUserID(7))

	require.NoError(t, s.AddDebt(context.Background(), api.NewDebt{DebtType: api.DebtBorrowed, PersonName: "Aziz"}))

	require.Len(t, pub.msgs, 1)
	require.Equal(t, "7", string(pub.msgs[0].Key))
	ev, err := DecodeMutationEvent(pub.msgs[0].Value)
	require.NoError(t, err)
	require.Equal(t, ResourceDebts, ev.Resource)
	require.Equal(t, s.origin, ev.Origin)
}

func TestDecodeMutationEvent(t *testing.T) {
	_, err := DecodeMutationEvent([]byte(`{"user_id": 1}`))
	require.ErrorIs(t, err, ErrEmptyResource)

	ev, err := DecodeMutationEvent([]byte(`{"resource": "transactions", "user_id": 1}`))
	require.NoError(t, err)
	require.Equal(t, ResourceTransactions, ev.Resource)
}

func TestWarmChain(t *testing.T) {
	backend := newFakeBackend()
	s := newTestService(t, backend)

	c := cron.NewCron(logger.Nop())
	defer c.Close()
	require.NoError(t, s.ScheduleWarm(c, "@every 1m", "week", "month"))

	var warmed []string
	probe := cron.TaskFunc{TaskName: "probe", Fn: func(ctx context.Context) error {
		require.NoError(t, s.WarmTask("week").Run(ctx))
		v, ok := cron.GetSharedData(ctx).Get(SharedWarmed)
		require.True(t, ok)
		warmed = v.([]string)
		return nil
	}}
	require.NoError(t, c.AddTasks("probe", "@every 1h", probe))

	require.NoError(t, c.RunNow(context.Background(), "wallet-warm"))
	require.Equal(t, 1, backend.count("stats:week"))
	require.Equal(t, 1, backend.count("stats:month"))
	require.Equal(t, 1, backend.count("user"))

	// a second run finds everything fresh
	require.NoError(t, c.RunNow(context.Background(), "wallet-warm"))
	require.Equal(t, 1, backend.count("user"))

	require.NoError(t, c.RunNow(context.Background(), "probe"))
	require.Len(t, warmed, 5)
}

func TestWarmTask_AllFailed(t *testing.T) {
	backend := newFakeBackend()
	backend.failAll = errors.New("backend down")
	s := newTestService(t, backend)

	err := s.WarmTask().Run(context.Background())
	require.ErrorIs(t, err, backend.failAll)
}

func TestService_BackgroundRefreshNotifiesListener(t *testing.T) {
	backend := newFakeBackend()
	c, err := cache.New(logger.Nop(), &cache.Config{Name: "wallet", TTL: 20 * time.Millisecond})
	require.NoError(t, err)
	s := newTestService(t, backend, WithCache(c))

	refreshed := make(chan *api.User, 1)
	s.OnUserRefreshed(func(u *api.User) { refreshed <- u })

	_, err = s.User(context.Background())
	require.NoError(t, err)

	backend.mu.Lock()
	backend.balance = 150
	backend.mu.Unlock()
	time.Sleep(30 * time.Millisecond)

	u, err := s.User(context.Background())
	require.NoError(t, err)
	require.True(t, u.Balance.Equal(decimal.NewFromInt(100)), "stale value is served immediately")

	select {
	case u := <-refreshed:
		require.True(t, u.Balance.Equal(decimal.NewFromInt(150)))
	case <-time.After(time.Second):
		t.Fatal("expected refresh notification")
	}
}

func TestService_WithAPIClient(t *testing.T) {
	var userCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/user", func(w http.ResponseWriter, r *http.Request) {
		userCalls.Add(1)
		_, _ = w.Write([]byte(`{"user_id": 1, "name": "Xojayin", "balance": 100}`))
	})
	mux.HandleFunc("POST /api/transactions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := api.New(srv.URL, api.WithInitData("init"))
	require.NoError(t, err)
	s := newTestService(t, client)
	ctx := context.Background()

	_, err = s.User(ctx)
	require.NoError(t, err)
	_, err = s.User(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(1), userCalls.Load())

	require.NoError(t, s.AddTransaction(ctx, api.NewTransaction{TransactionType: api.TypeIncome, Amount: decimal.NewFromInt(5)}))
	_, err = s.User(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(2), userCalls.Load())
}
