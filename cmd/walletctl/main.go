// Command walletctl reads wallet data through the session cache.
//
//	walletctl user|home|balance|debts|reminders
//	walletctl transactions [income|expense|debt]
//	walletctl stats <week|month|year|days>
//	walletctl categories
//	walletctl watch
//
// Settings come from WALLET_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/balansai/walletkit/api"
	"github.com/balansai/walletkit/config"
	"github.com/balansai/walletkit/cron"
	"github.com/balansai/walletkit/kafka"
	"github.com/balansai/walletkit/logger"
	"github.com/balansai/walletkit/wallet"
	"go.uber.org/zap"
)

var errUsage = errors.New("usage: walletctl [-all] <user|home|balance|transactions|stats|categories|debts|reminders|watch> [arg]")

func main() {
	all := flag.Bool("all", false, "transactions: page through everything instead of the first page")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Args(), *all, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, all bool, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Logger())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	client, err := api.New(cfg.APIBaseURL, append(cfg.APIOptions(), api.WithLogger(log))...)
	if err != nil {
		return err
	}

	opts := []wallet.Option{wallet.WithLogger(log), wallet.WithCacheConfig(cfg.Cache())}
	var pub kafka.Publisher
	if cfg.KafkaEnabled() {
		if pub, err = kafka.NewPublisher(log, cfg.Publisher()); err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		opts = append(opts, wallet.WithPublisher(pub))
	}

	svc, err := wallet.New(client, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	arg := ""
	if len(args) > 1 {
		arg = args[1]
	}

	switch args[0] {
	case "user":
		return show(out)(svc.User(ctx))
	case "home":
		return show(out)(svc.Home(ctx))
	case "balance":
		return show(out)(svc.Balance(ctx))
	case "debts":
		return show(out)(svc.Debts(ctx))
	case "reminders":
		return show(out)(svc.Reminders(ctx))
	case "categories":
		return show(out)(svc.TopCategories(ctx, 0, 0))
	case "stats":
		return show(out)(svc.Statistics(ctx, arg))
	case "transactions":
		return transactions(ctx, svc, arg, all, out)
	case "watch":
		return watch(ctx, svc, cfg, log, out)
	default:
		return errUsage
	}
}

// show returns a func writing v as indented JSON unless err is set
func show(out io.Writer) func(v any, err error) error {
	return func(v any, err error) error {
		if err != nil {
			if errors.Is(err, api.ErrUserNotFound) {
				return fmt.Errorf("not registered: open the bot first: %w", err)
			}
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func transactions(ctx context.Context, svc *wallet.Service, txType string, all bool, out io.Writer) error {
	p := svc.Transactions(txType)
	if !all {
		return show(out)(p.Next(ctx))
	}
	for p.HasMore() {
		if _, err := p.Next(ctx); err != nil {
			return err
		}
	}
	return show(out)(p.Items(), nil)
}

// watch keeps the session warm and prints every background refresh until interrupted
func watch(ctx context.Context, svc *wallet.Service, cfg *config.Config, log logger.Logger, out io.Writer) error {
	printer := show(out)
	svc.OnUserRefreshed(func(u *api.User) {
		_ = printer(map[string]any{"refreshed": wallet.KeyUser, "balance": u.Balance}, nil)
	})
	svc.OnTransactionsRefreshed(func(txs []api.Transaction) {
		_ = printer(map[string]any{"refreshed": wallet.KeyTransactions, "count": len(txs)}, nil)
	})
	for _, period := range cfg.WarmPeriods {
		period := period
		svc.OnStatisticsRefreshed(period, func(s *api.Statistics) {
			_ = printer(map[string]any{"refreshed": wallet.StatsKey(period), "net": s.Net()}, nil)
		})
	}
	svc.OnRefreshFailed(wallet.KeyUser, func(err error) {
		log.Warn("user refresh failed", zap.Error(err))
	})

	if _, err := svc.Home(ctx); err != nil {
		return err
	}

	if cfg.WarmSpec != "" {
		c := cron.NewCron(log)
		if err := svc.ScheduleWarm(c, cfg.WarmSpec, cfg.WarmPeriods...); err != nil {
			return err
		}
		c.Start()
		defer c.Close()
	}

	if cfg.KafkaEnabled() {
		sub, err := kafka.NewSubscriber(log, cfg.Subscriber())
		if err != nil {
			return err
		}
		defer func() { _ = sub.Close() }()
		if err := sub.Start(ctx, svc.InvalidationHandler()); err != nil {
			return err
		}
	}

	log.Info("watching; press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}
