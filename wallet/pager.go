package wallet

import (
	"context"
	"strconv"
	"sync"

	"github.com/balansai/walletkit/api"
	"golang.org/x/sync/singleflight"
)

// TransactionPager loads transactions page by page for infinite scroll.
// The first page goes through the cache; later pages always hit the backend.
type TransactionPager struct {
	s      *Service
	txType string
	size   int

	sf singleflight.Group

	mu      sync.Mutex
	offset  int
	hasMore bool
	items   []api.Transaction
}

// Transactions starts a pager over transactions of txType; empty means all
func (s *Service) Transactions(txType string) *TransactionPager {
	return &TransactionPager{s: s, txType: txType, size: PageSize, hasMore: true}
}

// Next loads the next page and returns it. It returns an empty page once
// HasMore is false. Concurrent calls share one request.
func (p *TransactionPager) Next(ctx context.Context) ([]api.Transaction, error) {
	p.mu.Lock()
	offset, more := p.offset, p.hasMore
	p.mu.Unlock()
	if !more {
		return nil, nil
	}

	v, err, _ := p.sf.Do(strconv.Itoa(offset), func() (any, error) {
		p.mu.Lock()
		loaded := p.offset != offset
		p.mu.Unlock()
		if loaded {
			return []api.Transaction(nil), nil
		}

		page, err := p.load(ctx, offset)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.items = append(p.items, page...)
		p.offset += len(page)
		p.hasMore = len(page) == p.size
		p.mu.Unlock()
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]api.Transaction), nil
}

func (p *TransactionPager) load(ctx context.Context, offset int) ([]api.Transaction, error) {
	if offset == 0 {
		return p.s.firstPage(ctx, p.txType)
	}
	return p.s.backend.Transactions(ctx, api.TransactionQuery{Type: p.txType, Limit: p.size, Offset: offset})
}

// HasMore reports whether Next may return more transactions
func (p *TransactionPager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Items returns everything loaded so far
func (p *TransactionPager) Items() []api.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]api.Transaction(nil), p.items...)
}

// Reset drops loaded pages so the next call starts from the top
func (p *TransactionPager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = 0
	p.hasMore = true
	p.items = nil
}
