package cache

import (
	"sort"
	"strings"

	"github.com/balansai/walletkit/logger"
	"go.uber.org/zap"
)

// Wildcard matches every key; as a pattern suffix it turns the pattern into a prefix
const Wildcard = "*"

// Rules maps a mutated resource to the key patterns that depend on it.
// A pattern is an exact key, a prefix ending in "*" such as "stats:*", or "*" alone.
type Rules map[string][]string

// Invalidator removes every key derived from a resource after it is mutated
type Invalidator struct {
	c     Cache
	rules Rules
	log   logger.Logger
}

// NewInvalidator creates an Invalidator applying rules to c
func NewInvalidator(c Cache, rules Rules, log logger.Logger) *Invalidator {
	copied := make(Rules, len(rules))
	for resource, patterns := range rules {
		copied[resource] = append([]string(nil), patterns...)
	}
	return &Invalidator{
		c:     c,
		rules: copied,
		log:   logger.OrDefault(log),
	}
}

// Mutated invalidates the keys of each resource.
// A resource without a rule invalidates the key of the same name.
func (inv *Invalidator) Mutated(resources ...string) {
	var keys []string
	prefixes := make(map[string]struct{})

	for _, resource := range resources {
		patterns, ok := inv.rules[resource]
		if !ok {
			patterns = []string{resource}
		}
		for _, p := range patterns {
			switch {
			case p == Wildcard:
				inv.log.Debug("mutation clears whole cache", zap.String("resource", resource))
				inv.c.InvalidateAll()
				return
			case strings.HasSuffix(p, Wildcard):
				prefixes[strings.TrimSuffix(p, Wildcard)] = struct{}{}
			default:
				keys = append(keys, p)
			}
		}
	}

	if len(keys) > 0 {
		inv.c.Invalidate(keys...)
	}
	for _, prefix := range sortedKeys(prefixes) {
		inv.c.InvalidatePrefix(prefix)
	}

	inv.log.Debug("mutation invalidated",
		zap.Strings("resources", resources),
		zap.Strings("keys", keys),
		zap.Strings("prefixes", sortedKeys(prefixes)),
	)
}

// Patterns returns the patterns registered for resource
func (inv *Invalidator) Patterns(resource string) []string {
	return append([]string(nil), inv.rules[resource]...)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
