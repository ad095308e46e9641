package detect

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultPredicateCacheSize bounds the shared predicate cache. Rule sets
// reuse a small vocabulary of where expressions, so a modest cap covers
// realistic deployments while keeping memory bounded.
const defaultPredicateCacheSize = 4096

// PredicateCache memoizes compiled predicates by their expression source.
// The same where strings recur on every rule reload and every rule-test
// request, so compilation (parsing plus regexp compilation) is paid once per
// distinct expression. Compilation failures are not cached; they are cheap
// and callers surface them immediately.
//
// The cache is safe for concurrent use.
type PredicateCache struct {
	cache *lru.Cache[string, *Predicate]
}

// NewPredicateCache creates a predicate cache holding at most size entries.
// A non-positive size selects the default.
func NewPredicateCache(size int) (*PredicateCache, error) {
	if size <= 0 {
		size = defaultPredicateCacheSize
	}
	cache, err := lru.New[string, *Predicate](size)
	if err != nil {
		return nil, err
	}
	return &PredicateCache{cache: cache}, nil
}

// Compile returns the compiled predicate for an expression, consulting the
// cache first. Cached predicates are immutable and shared between callers.
func (pc *PredicateCache) Compile(expression string) (*Predicate, error) {
	if p, ok := pc.cache.Get(expression); ok {
		return p, nil
	}

	p, err := CompilePredicate(expression)
	if err != nil {
		return nil, err
	}
	pc.cache.Add(expression, p)
	return p, nil
}

// Len reports the number of cached predicates.
func (pc *PredicateCache) Len() int {
	return pc.cache.Len()
}

// Purge drops every cached predicate.
func (pc *PredicateCache) Purge() {
	pc.cache.Purge()
}
