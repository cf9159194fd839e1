package uow

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// AfterCommit is a function that runs after a successful unit of work.
type AfterCommit func(ctx context.Context)

// UoW serializes state transitions by named scope. The stores assume a
// single logical writer: no two transitions touching the same event, or the
// purchase ledger's id counter, may interleave their read-compute-mutate-
// persist cycle. Scopes are free-form names such as "event:3", "events",
// "purchases" or "users"; transitions on disjoint scopes run in parallel.
type UoW struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *UoW {
	return &UoW{locks: make(map[string]*sync.Mutex)}
}

// Do runs fn while holding every named scope. After fn succeeds, it executes
// all registered after-commit hooks (cache invalidation, change
// notification); hooks never run for a failed transition.
//
// Scopes are acquired in sorted order so that two transitions asking for
// overlapping scope sets cannot deadlock.
func (u *UoW) Do(
	ctx context.Context,
	scopes []string,
	fn func(ctx context.Context, after func(AfterCommit)) error,
) error {
	ordered := dedupeSorted(scopes)

	for _, scope := range ordered {
		u.lock(scope).Lock()
	}

	var hooks []AfterCommit

	err := fn(ctx, func(h AfterCommit) {
		hooks = append(hooks, h)
	})

	for i := len(ordered) - 1; i >= 0; i-- {
		u.lock(ordered[i]).Unlock()
	}

	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}

func (u *UoW) lock(scope string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()

	m, ok := u.locks[scope]
	if !ok {
		m = &sync.Mutex{}
		u.locks[scope] = m
	}

	return m
}

// EventScope names the lock covering one event's tier list.
func EventScope(id int64) string {
	return "event:" + strconv.FormatInt(id, 10)
}

const (
	// ScopeEvents covers catalog-level changes: event creation and removal.
	ScopeEvents = "events"
	// ScopePurchases covers the purchase ledger and its id counter.
	ScopePurchases = "purchases"
	// ScopeUsers covers the user directory.
	ScopeUsers = "users"
)

func dedupeSorted(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	seen := make(map[string]struct{}, len(scopes))

	for _, s := range scopes {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	sort.Strings(out)

	return out
}
