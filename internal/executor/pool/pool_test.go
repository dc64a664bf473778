package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/noppelmax/depio-go/internal/domain/task"
)

func TestSubmit_RunsConcurrentlyUpToLimit(t *testing.T) {
	e := New(2, WithRateLimit(rate.Inf, 100))

	var running int32
	var maxSeen int32
	mkTask := func(name string) *task.Task {
		return task.New(name, 0, func(ctx context.Context) error {
			n := atomic.AddInt32(&running, 1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		})
	}

	tasks := []*task.Task{mkTask("a"), mkTask("b"), mkTask("c")}
	for _, tk := range tasks {
		tk.MarkPending()
		require.NoError(t, e.Submit(context.Background(), tk))
	}

	require.NoError(t, e.WaitForAll(context.Background()))
	for _, tk := range tasks {
		assert.Equal(t, task.Finished, tk.State())
	}
	assert.LessOrEqual(t, int(maxSeen), 2)
}

func TestMaxJobsPending_ReflectsPoolSize(t *testing.T) {
	e := New(3)
	assert.True(t, e.JobsPendingLimit())
	assert.Equal(t, 3, e.MaxJobsPending())
	assert.Equal(t, 0, e.PendingCount())
}
