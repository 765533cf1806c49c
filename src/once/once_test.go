package once

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireOnlyOnce(t *testing.T) {
	var got []int
	c := New(func(v int) { got = append(got, v) })

	require.True(t, c.Pending())
	assert.True(t, c.Fire(1))
	assert.False(t, c.Fire(2))
	assert.False(t, c.Pending())
	assert.Equal(t, []int{1}, got)
}

func TestTakeClears(t *testing.T) {
	c := New(func(string) {})
	fn, ok := c.Take()
	require.True(t, ok)
	require.NotNil(t, fn)

	_, ok = c.Take()
	assert.False(t, ok)
	assert.False(t, c.Fire("late"))
}

func TestNilCallbackIsConsumed(t *testing.T) {
	c := New[int](nil)
	assert.False(t, c.Pending())
	assert.False(t, c.Fire(1))
}

func TestConcurrentFire(t *testing.T) {
	var calls atomic.Int32
	c := New(func(int) { calls.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Fire(i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}
