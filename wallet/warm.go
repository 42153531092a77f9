package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/balansai/walletkit/cron"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Shared data keys written by WarmTask
const (
	SharedWarmed = "wallet:warmed"
	SharedFailed = "wallet:failed"
)

// WarmTask reads the session's main resources so they stay hot in a long running
// session. Fresh keys cost nothing, stale keys refresh in the background and
// absent keys are fetched. Nothing is ever evicted.
type WarmTask struct {
	s       *Service
	periods []string
}

// WarmTask returns a cron task warming the home data and the statistics of periods
func (s *Service) WarmTask(periods ...string) *WarmTask {
	return &WarmTask{s: s, periods: periods}
}

// Name implements cron.Task
func (t *WarmTask) Name() string { return "warm" }

// Run reads every warmed key concurrently and records the keys that loaded in
// SharedWarmed and the failures in SharedFailed. It fails only when every key failed.
func (t *WarmTask) Run(ctx context.Context) error {
	loaders := map[string]func(context.Context) error{
		KeyUser:         func(ctx context.Context) error { _, err := t.s.User(ctx); return err },
		KeyTransactions: func(ctx context.Context) error { _, err := t.s.RecentTransactions(ctx); return err },
		KeyDebts:        func(ctx context.Context) error { _, err := t.s.Debts(ctx); return err },
		KeyReminders:    func(ctx context.Context) error { _, err := t.s.Reminders(ctx); return err },
	}
	for _, p := range t.periods {
		p := p
		loaders[StatsKey(p)] = func(ctx context.Context) error { _, err := t.s.Statistics(ctx, p); return err }
	}

	var (
		mu     sync.Mutex
		warmed []string
		failed = make(map[string]error)
	)
	var g errgroup.Group
	g.SetLimit(4)
	for key, load := range loaders {
		key, load := key, load
		g.Go(func() error {
			err := load(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[key] = err
			} else {
				warmed = append(warmed, key)
			}
			return nil
		})
	}
	_ = g.Wait()

	if shared := cron.GetSharedData(ctx); shared != nil {
		shared.Set(SharedWarmed, warmed)
		shared.Set(SharedFailed, failed)
	}

	if len(warmed) == 0 && len(failed) > 0 {
		errs := make([]error, 0, len(failed))
		for _, err := range failed {
			errs = append(errs, err)
		}
		return ErrWarm(errors.Join(errs...))
	}
	return nil
}

// ReportTask logs cache activity and the outcome of a preceding WarmTask in the same chain
type ReportTask struct {
	s *Service
}

// ReportTask returns a cron task logging cache stats and warm failures
func (s *Service) ReportTask() *ReportTask {
	return &ReportTask{s: s}
}

// Name implements cron.Task
func (t *ReportTask) Name() string { return "report" }

// Run logs one cache report line and one warning per failed warm key. It never fails.
func (t *ReportTask) Run(ctx context.Context) error {
	st := t.s.cache.Stats()
	fields := []zap.Field{
		zap.Int("entries", st.Entries),
		zap.Uint64("hits", st.Hits),
		zap.Uint64("stale_hits", st.StaleHits),
		zap.Uint64("misses", st.Misses),
		zap.Uint64("refreshes", st.Refreshes),
		zap.Uint64("refresh_errors", st.RefreshErrors),
	}

	if shared := cron.GetSharedData(ctx); shared != nil {
		if v, ok := shared.Get(SharedWarmed); ok {
			fields = append(fields, zap.Int("warmed", len(v.([]string))))
		}
		if v, ok := shared.Get(SharedFailed); ok {
			for key, err := range v.(map[string]error) {
				t.s.log.Warn("warm failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	t.s.log.Info("cache report", fields...)
	return nil
}

// ScheduleWarm registers the warm and report chain on c under spec
func (s *Service) ScheduleWarm(c cron.Cron, spec string, periods ...string) error {
	return c.AddTasks("wallet-warm", spec, s.WarmTask(periods...), s.ReportTask())
}
