package wallet

import (
	"context"

	"github.com/balansai/walletkit/api"
	"golang.org/x/sync/errgroup"
)

// Home is the data behind the home page
type Home struct {
	User   *api.User
	Recent []api.Transaction
}

// Home loads the user and the latest transactions in parallel
func (s *Service) Home(ctx context.Context) (*Home, error) {
	var h Home
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		u, err := s.User(ctx)
		h.User = u
		return err
	})
	g.Go(func() error {
		txs, err := s.RecentTransactions(ctx)
		if len(txs) > HomeTransactions {
			txs = txs[:HomeTransactions]
		}
		h.Recent = txs
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &h, nil
}
