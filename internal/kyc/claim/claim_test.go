package claim

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presale/pkg/testutil"
)

func TestMemoryClaimer(t *testing.T) {
	ctx := context.Background()

	testutil.Given(t, "a held lease", func(t *testing.T) {
		c := NewMemory(time.Minute)
		release, err := c.Acquire(ctx, "tid-1")
		require.NoError(t, err)

		testutil.Then(t, "a second acquire is refused", func(t *testing.T) {
			_, err := c.Acquire(ctx, "tid-1")
			assert.ErrorIs(t, err, ErrHeld)
		})

		testutil.Then(t, "other keys are independent", func(t *testing.T) {
			r, err := c.Acquire(ctx, "tid-2")
			require.NoError(t, err)
			r(ctx)
		})

		testutil.When(t, "the lease is released", func(t *testing.T) {
			require.NoError(t, release(ctx))

			testutil.Then(t, "the key can be acquired again", func(t *testing.T) {
				r, err := c.Acquire(ctx, "tid-1")
				require.NoError(t, err)
				r(ctx)
			})
		})
	})

	testutil.Given(t, "an expired lease", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		c := NewMemory(time.Minute, WithClock(func() time.Time { return now }))

		stale, err := c.Acquire(ctx, "tid")
		require.NoError(t, err)
		now = now.Add(2 * time.Minute)

		fresh, err := c.Acquire(ctx, "tid")
		require.NoError(t, err)

		testutil.Then(t, "the stale release does not drop the new lease", func(t *testing.T) {
			require.NoError(t, stale(ctx))
			_, err := c.Acquire(ctx, "tid")
			assert.ErrorIs(t, err, ErrHeld)
			fresh(ctx)
		})
	})
}

func TestMemoryClaimer_ConcurrentAcquire(t *testing.T) {
	c := NewMemory(time.Minute)
	var (
		wg      sync.WaitGroup
		granted atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Acquire(context.Background(), "same"); err == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), granted.Load())
}
