package atomic_clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSwap(t *testing.T) {
	t.Parallel()

	var c Clock
	assert.Equal(t, time.Duration(0), c.Swap())
	time.Sleep(time.Millisecond)
	assert.True(t, c.Swap() >= time.Millisecond)
}

func TestSwapConcurrent(t *testing.T) {
	t.Parallel()

	var c Clock
	var zeros int32
	var mu sync.Mutex
	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Swap() == 0 {
				mu.Lock()
				zeros++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	// only first Swap sees zero clock
	assert.Equal(t, int32(1), zeros)
}
