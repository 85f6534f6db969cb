package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSingleFlightCoordinator_CoalescesConcurrentCalls(t *testing.T) {
	c := New()
	var calls int32
	start := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]Result, 10)
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i] = c.Do(context.Background(), "fp-1", func(ctx context.Context) (any, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(20 * time.Millisecond)
				return "produced", nil
			})
		}()
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "underlying fn should be called once")
	for i, r := range results {
		require.NoError(t, r.Err, "result[%d]", i)
		require.Equal(t, "produced", r.Value, "result[%d]", i)
	}
}

func TestSingleFlightCoordinator_DistinctKeysDoNotCoalesce(t *testing.T) {
	c := New()
	var calls int32

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			c.Do(context.Background(), key, func(ctx context.Context) (any, error) {
				atomic.AddInt32(&calls, 1)
				return nil, nil
			})
		}(key)
	}
	wg.Wait()

	require.EqualValues(t, 5, atomic.LoadInt32(&calls), "one call per distinct key")
}

func TestSingleFlightCoordinator_CallerCancelDoesNotAbortLeader(t *testing.T) {
	c := New()
	leaderDone := make(chan struct{})

	waiterCtx, cancel := context.WithCancel(context.Background())

	go func() {
		c.Do(context.Background(), "fp", func(ctx context.Context) (any, error) {
			time.Sleep(30 * time.Millisecond)
			close(leaderDone)
			return "ok", nil
		})
	}()
	time.Sleep(5 * time.Millisecond) // let the leader register the key

	cancel()
	result := c.Do(waiterCtx, "fp", func(ctx context.Context) (any, error) {
		t.Fatal("waiter's fn should never run; a call is already in flight")
		return nil, nil
	})

	require.ErrorIs(t, result.Err, context.Canceled)

	select {
	case <-leaderDone:
	case <-time.After(time.Second):
		t.Fatal("leader call was aborted by the cancelled waiter")
	}
}

func TestSingleFlightCoordinator_Forget(t *testing.T) {
	c := New()
	c.Do(context.Background(), "fp", func(ctx context.Context) (any, error) { return "v1", nil })
	c.Forget("fp")

	result := c.Do(context.Background(), "fp", func(ctx context.Context) (any, error) { return "v2", nil })
	require.Equal(t, "v2", result.Value, "want v2 after Forget")
}
