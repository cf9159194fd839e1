package uow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SerializesSameScope(t *testing.T) {
	u := New()
	ctx := context.Background()

	var counter int
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = u.Do(ctx, []string{EventScope(1)}, func(ctx context.Context, after func(AfterCommit)) error {
				// Unsynchronized read-modify-write; only the scope lock
				// keeps this race-free.
				v := counter
				counter = v + 1
				return nil
			})
		}()
	}

	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestDo_OverlappingScopeSetsDoNotDeadlock(t *testing.T) {
	u := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = u.Do(ctx, []string{EventScope(1), ScopePurchases}, func(ctx context.Context, after func(AfterCommit)) error {
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			// Same scopes requested in the opposite order.
			_ = u.Do(ctx, []string{ScopePurchases, EventScope(1)}, func(ctx context.Context, after func(AfterCommit)) error {
				return nil
			})
		}()
	}
	wg.Wait()
}

func TestDo_AfterCommitRunsOnSuccessOnly(t *testing.T) {
	u := New()
	ctx := context.Background()

	var ran bool
	err := u.Do(ctx, []string{ScopeEvents}, func(ctx context.Context, after func(AfterCommit)) error {
		after(func(ctx context.Context) { ran = true })
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	ran = false
	boom := errors.New("boom")
	err = u.Do(ctx, []string{ScopeEvents}, func(ctx context.Context, after func(AfterCommit)) error {
		after(func(ctx context.Context) { ran = true })
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran, "hooks must not run for a failed transition")
}

func TestDo_DuplicateScopesAcquireOnce(t *testing.T) {
	u := New()

	err := u.Do(context.Background(), []string{ScopeEvents, ScopeEvents}, func(ctx context.Context, after func(AfterCommit)) error {
		return nil
	})
	require.NoError(t, err)
}

func TestEventScope(t *testing.T) {
	assert.Equal(t, "event:7", EventScope(7))
}
