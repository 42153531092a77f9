package wallet

import (
	"strconv"

	"github.com/balansai/walletkit/cache"
)

// Cache keys
const (
	KeyUser         = "user"
	KeyTransactions = "transactions"
	KeyBalance      = "balance"
	KeyDebts        = "debts"
	KeyReminders    = "reminders"

	resourceStats      = "stats"
	resourceCategories = "categories"
)

// Mutated resources
const (
	ResourceTransactions = "transactions"
	ResourceDebts        = "debts"
	ResourceReminders    = "reminders"
	// ResourceSession is published on logout or account switch
	ResourceSession = "session"
)

// StatsKey is the key of the statistics for period, e.g. "stats:week".
// An empty period yields the bare "stats" key.
func StatsKey(period string) string {
	return cache.Key(resourceStats, period)
}

// CategoriesKey is the key of the top categories list
func CategoriesKey(limit, days int) string {
	return cache.Key(resourceCategories, strconv.Itoa(limit), strconv.Itoa(days))
}

// TransactionsKey is the key of the first page of transactions of type; empty means all
func TransactionsKey(txType string) string {
	return cache.Key(KeyTransactions, txType)
}

// DefaultRules invalidates everything derived from a mutated resource.
// A transaction moves the balance and every statistic; a debt moves the balance.
func DefaultRules() cache.Rules {
	return cache.Rules{
		ResourceTransactions: {
			KeyTransactions,
			cache.Prefix(KeyTransactions) + cache.Wildcard,
			KeyUser,
			KeyBalance,
			resourceStats,
			cache.Prefix(resourceStats) + cache.Wildcard,
			cache.Prefix(resourceCategories) + cache.Wildcard,
		},
		ResourceDebts:     {KeyDebts, KeyUser, KeyBalance},
		ResourceReminders: {KeyReminders},
		ResourceSession:   {cache.Wildcard},
	}
}
