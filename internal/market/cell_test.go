package market

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellCoalescesConcurrentReaders(t *testing.T) {
	var fetches int32
	gate := make(chan struct{})
	c := newCell("test", time.Minute, time.Second, func(ctx context.Context) (int, error) {
		atomic.AddInt32(&fetches, 1)
		<-gate
		return 42, nil
	})

	const readers = 16
	var wg sync.WaitGroup
	results := make([]int, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background())
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Let every reader either start the fetch or park on the handle.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestCellServesFreshValueWithoutFetching(t *testing.T) {
	var fetches int32
	c := newCell("test", time.Minute, time.Second, func(ctx context.Context) (int, error) {
		atomic.AddInt32(&fetches, 1)
		return 7, nil
	})

	for i := 0; i < 5; i++ {
		v, err := c.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))
}

func TestCellServesStaleValueAfterFailure(t *testing.T) {
	var fail atomic.Bool
	c := newCell("test", time.Duration(0), time.Duration(0), func(ctx context.Context) (int, error) {
		if fail.Load() {
			return 0, errors.New("origin down")
		}
		return 9, nil
	})

	v, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, v)

	fail.Store(true)
	v, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, v, "stale value survives a failed refresh")
}

func TestCellPropagatesErrorWithNoPriorValue(t *testing.T) {
	c := newCell("test", time.Minute, time.Second, func(ctx context.Context) (int, error) {
		return 0, errors.New("origin down")
	})

	_, err := c.Get(context.Background())
	require.Error(t, err)
}

func TestCellUpdateMergesInPlace(t *testing.T) {
	c := newCell("test", time.Minute, time.Second, func(ctx context.Context) (map[string]float64, error) {
		return map[string]float64{"BTC": 1}, nil
	})
	_, err := c.Get(context.Background())
	require.NoError(t, err)

	c.Update(func(cur map[string]float64, has bool) map[string]float64 {
		require.True(t, has)
		cur["ETH"] = 2
		return cur
	})

	v, ok := c.Peek()
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"BTC": 1, "ETH": 2}, v)
}

func TestCellOnStoreMergesAfterStore(t *testing.T) {
	c := newCell("test_onstore", time.Minute, time.Second, func(ctx context.Context) (map[string]float64, error) {
		return map[string]float64{"BTC": 1}, nil
	})
	// The hook merges a follow-up key; because it runs after the store,
	// the stored batch cannot clobber the merge.
	c.onStore = func(v map[string]float64) {
		c.Update(func(cur map[string]float64, has bool) map[string]float64 {
			merged := map[string]float64{"ETH": 2}
			for k, val := range cur {
				merged[k] = val
			}
			return merged
		})
	}

	got, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, got["BTC"])

	v, ok := c.Peek()
	require.True(t, ok)
	assert.Equal(t, 1.0, v["BTC"])
	assert.Equal(t, 2.0, v["ETH"])
}

func TestCellOnStoreSkippedOnFailure(t *testing.T) {
	fired := false
	c := newCell("test_onstore_fail", time.Minute, time.Second, func(ctx context.Context) (int, error) {
		return 0, errors.New("down")
	})
	c.onStore = func(int) { fired = true }

	_, err := c.Get(context.Background())
	require.Error(t, err)
	assert.False(t, fired)
}
